package lever

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// ListResponse is one page of a Lever list endpoint. Entries are kept raw so
// a single undecodable entry does not fail the whole page.
type ListResponse struct {
	Data    []json.RawMessage `json:"data"`
	HasNext bool              `json:"hasNext"`
	Next    string            `json:"next"`
}

// Posting is a job posting.
type Posting struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	State string `json:"state"`
}

// Opportunity is a candidate's application as returned by /opportunities.
type Opportunity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Headline  string    `json:"headline"`
	Location  string    `json:"location"`
	Emails    []string  `json:"emails"`
	Phones    []Phone   `json:"phones"`
	Links     Links     `json:"links"`
	Tags      []string  `json:"tags"`
	Sources   []string  `json:"sources"`
	Stage     StageRef  `json:"stage"`
	Origin    string    `json:"origin"`
	Archived  *Archived `json:"archived"`
	CreatedAt Millis    `json:"createdAt"`
	UpdatedAt Millis    `json:"updatedAt"`
}

// Phone is a phone entry.
type Phone struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Archived is present when the opportunity has been archived.
type Archived struct {
	ArchivedAt *Millis `json:"archivedAt"`
	Reason     string  `json:"reason"`
}

// IsArchived reports whether a is set with an archive timestamp.
func (a *Archived) IsArchived() bool {
	return a != nil && a.ArchivedAt != nil
}

// Millis is a Lever timestamp in epoch milliseconds.
type Millis int64

// Time converts m to UTC, the zero time when unset.
func (m Millis) Time() time.Time {
	if m == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(m)).UTC()
}

// Links accepts both plain URL strings and {"url": ...} objects.
type Links []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *Links) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*l = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return eris.Wrap(err, "lever: decode links")
	}
	out := make(Links, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s != "" {
				out = append(out, s)
			}
			continue
		}
		var obj struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			continue
		}
		if obj.URL != "" {
			out = append(out, obj.URL)
		}
	}
	*l = out
	return nil
}

// StageRef is a stage id, or an expanded {"id","text"} object.
type StageRef struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *StageRef) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*s = StageRef{}
		return nil
	}
	var id string
	if err := json.Unmarshal(b, &id); err == nil {
		*s = StageRef{ID: id}
		return nil
	}
	type plain StageRef
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return eris.Wrap(err, "lever: decode stage")
	}
	*s = StageRef(p)
	return nil
}

// String returns the stage text when expanded, else its id.
func (s StageRef) String() string {
	if s.Text != "" {
		return s.Text
	}
	return s.ID
}

// DecodeOpportunity decodes one raw list entry.
func DecodeOpportunity(raw json.RawMessage) (Opportunity, error) {
	var o Opportunity
	if err := json.Unmarshal(raw, &o); err != nil {
		return Opportunity{}, eris.Wrap(err, "lever: decode opportunity")
	}
	return o, nil
}
