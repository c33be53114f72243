// Package destination implements the append-only stores candidates are
// reconciled into: a Google Sheets worksheet, a local xlsx workbook and a
// Notion database.
package destination

import (
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/talent-sync/internal/model"
)

// None marks a column the layout does not use.
const None = -1

// Layout maps row fields onto zero-based column indices.
type Layout struct {
	HeaderRows  int
	FirstName   int
	LastName    int
	Emails      []int
	Location    int
	ProfileURL  int
	LastSynced  int
	SyncStatus  int
	CandidateID int
}

// DefaultLayout is the recruiting sheet's historical layout: first name C,
// last name D, emails E-G, location I, profile K, last synced R.
func DefaultLayout() Layout {
	return Layout{
		HeaderRows:  1,
		FirstName:   2,
		LastName:    3,
		Emails:      []int{4, 5, 6},
		Location:    8,
		ProfileURL:  10,
		LastSynced:  17,
		SyncStatus:  None,
		CandidateID: None,
	}
}

// LayoutFile is the YAML form of a layout. Columns are spreadsheet letters.
//
//	header_rows: 1
//	columns:
//	  first_name: C
//	  emails: [E, F, G]
type LayoutFile struct {
	HeaderRows *int `yaml:"header_rows"`
	Columns    struct {
		FirstName   string   `yaml:"first_name"`
		LastName    string   `yaml:"last_name"`
		Emails      []string `yaml:"emails"`
		Location    string   `yaml:"location"`
		ProfileURL  string   `yaml:"profile_url"`
		LastSynced  string   `yaml:"last_synced"`
		SyncStatus  string   `yaml:"sync_status"`
		CandidateID string   `yaml:"candidate_id"`
	} `yaml:"columns"`
}

// LoadLayoutFile reads a layout file. An empty path returns nil.
func LoadLayoutFile(path string) (*LayoutFile, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "destination: read layout %s", path)
	}
	var lf LayoutFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, eris.Wrap(err, "destination: parse layout")
	}
	if _, err := lf.overrides(); err != nil {
		return nil, err
	}
	return &lf, nil
}

type override struct {
	header      *int
	firstName   *int
	lastName    *int
	emails      []int
	location    *int
	profileURL  *int
	lastSynced  *int
	syncStatus  *int
	candidateID *int
}

func (lf *LayoutFile) overrides() (override, error) {
	var o override
	if lf == nil {
		return o, nil
	}
	if lf.HeaderRows != nil {
		if *lf.HeaderRows < 0 {
			return o, eris.New("destination: header_rows must be >= 0")
		}
		o.header = lf.HeaderRows
	}

	c := lf.Columns
	single := []struct {
		name string
		ref  string
		dst  **int
	}{
		{"first_name", c.FirstName, &o.firstName},
		{"last_name", c.LastName, &o.lastName},
		{"location", c.Location, &o.location},
		{"profile_url", c.ProfileURL, &o.profileURL},
		{"last_synced", c.LastSynced, &o.lastSynced},
		{"sync_status", c.SyncStatus, &o.syncStatus},
		{"candidate_id", c.CandidateID, &o.candidateID},
	}
	used := map[int]string{}
	claim := func(name string, idx int) error {
		if prev, ok := used[idx]; ok {
			return eris.Errorf("destination: column %s assigned to both %s and %s", ColumnLetter(idx), prev, name)
		}
		used[idx] = name
		return nil
	}
	for _, f := range single {
		if f.ref == "" {
			continue
		}
		idx, err := ColumnIndex(f.ref)
		if err != nil {
			return o, eris.Wrapf(err, "destination: layout %s", f.name)
		}
		if err := claim(f.name, idx); err != nil {
			return o, err
		}
		*f.dst = &idx
	}
	for _, ref := range c.Emails {
		idx, err := ColumnIndex(ref)
		if err != nil {
			return o, eris.Wrap(err, "destination: layout emails")
		}
		if err := claim("emails", idx); err != nil {
			return o, err
		}
		o.emails = append(o.emails, idx)
	}
	return o, nil
}

var headerAliases = map[string][]string{
	"first_name":   {"first name", "firstname", "first"},
	"last_name":    {"last name", "lastname", "last", "surname"},
	"location":     {"location", "city", "address"},
	"profile_url":  {"linkedin url", "linkedin", "linkedin profile", "profile url", "social"},
	"last_synced":  {"join date", "last synced", "date added", "added", "date"},
	"sync_status":  {"sync status"},
	"candidate_id": {"candidate id", "lever id", "opportunity id"},
}

func normalizeHeader(h string) string {
	h = strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(h))
	return strings.Join(strings.Fields(h), " ")
}

func isEmailHeader(h string) bool {
	return strings.HasPrefix(h, "email") || strings.HasPrefix(h, "e mail") ||
		strings.HasSuffix(h, " email") || h == "email address"
}

// detect finds columns by header name. Only exact alias matches count.
func detect(header []string) (map[string]int, []int) {
	found := map[string]int{}
	var emails []int
	for i, raw := range header {
		h := normalizeHeader(raw)
		if h == "" {
			continue
		}
		if isEmailHeader(h) {
			emails = append(emails, i)
			continue
		}
		for field, aliases := range headerAliases {
			if _, ok := found[field]; ok {
				continue
			}
			for _, a := range aliases {
				if h == a {
					found[field] = i
					break
				}
			}
		}
	}
	return found, emails
}

// ResolveLayout builds the effective layout: explicit file entries win over
// columns detected from header, which win over DefaultLayout. A column is
// assigned to at most one field. A detected column already claimed by the
// file is ignored, and a default column claimed by either is dropped (None).
func ResolveLayout(lf *LayoutFile, header []string) (Layout, error) {
	o, err := lf.overrides()
	if err != nil {
		return Layout{}, err
	}
	def := DefaultLayout()
	found, detectedEmails := detect(header)

	l := Layout{HeaderRows: def.HeaderRows}
	if o.header != nil {
		l.HeaderRows = *o.header
	}

	fields := []struct {
		name     string
		dst      *int
		explicit *int
		fallback int
	}{
		{"first_name", &l.FirstName, o.firstName, def.FirstName},
		{"last_name", &l.LastName, o.lastName, def.LastName},
		{"location", &l.Location, o.location, def.Location},
		{"profile_url", &l.ProfileURL, o.profileURL, def.ProfileURL},
		{"last_synced", &l.LastSynced, o.lastSynced, def.LastSynced},
		{"sync_status", &l.SyncStatus, o.syncStatus, def.SyncStatus},
		{"candidate_id", &l.CandidateID, o.candidateID, def.CandidateID},
	}
	resolved := make([]bool, len(fields))
	claimed := map[int]bool{}
	free := func(idx int) bool { return idx >= 0 && !claimed[idx] }

	// Explicit entries are already checked for overlap by overrides.
	for i, f := range fields {
		if f.explicit != nil {
			*f.dst = *f.explicit
			claimed[*f.explicit] = true
			resolved[i] = true
		}
	}
	for _, idx := range o.emails {
		claimed[idx] = true
	}
	l.Emails = o.emails
	emailsResolved := len(o.emails) > 0

	for i, f := range fields {
		if resolved[i] {
			continue
		}
		if idx, ok := found[f.name]; ok && free(idx) {
			*f.dst = idx
			claimed[idx] = true
			resolved[i] = true
		}
	}
	if !emailsResolved {
		for _, idx := range detectedEmails {
			if free(idx) {
				l.Emails = append(l.Emails, idx)
				claimed[idx] = true
			}
		}
		emailsResolved = len(l.Emails) > 0
	}

	for i, f := range fields {
		if resolved[i] {
			continue
		}
		*f.dst = None
		if free(f.fallback) {
			*f.dst = f.fallback
			claimed[f.fallback] = true
		}
	}
	if !emailsResolved {
		for _, idx := range def.Emails {
			if free(idx) {
				l.Emails = append(l.Emails, idx)
				claimed[idx] = true
			}
		}
	}
	return l, nil
}

// Width is one past the highest column the layout uses.
func (l Layout) Width() int {
	w := 0
	for _, c := range l.columns() {
		if c+1 > w {
			w = c + 1
		}
	}
	return w
}

func (l Layout) columns() []int {
	cols := []int{l.FirstName, l.LastName, l.Location, l.ProfileURL, l.LastSynced, l.SyncStatus, l.CandidateID}
	return append(cols, l.Emails...)
}

// Header returns a header row naming each used column.
func (l Layout) Header() []string {
	out := make([]string, l.Width())
	set := func(i int, v string) {
		if i >= 0 {
			out[i] = v
		}
	}
	set(l.FirstName, "first_name")
	set(l.LastName, "last_name")
	for n, i := range l.Emails {
		if n == 0 {
			set(i, "email")
		} else {
			set(i, "email_"+strconv.Itoa(n+1))
		}
	}
	set(l.Location, "location")
	set(l.ProfileURL, "linkedin_url")
	set(l.LastSynced, "join_date")
	set(l.SyncStatus, "sync_status")
	set(l.CandidateID, "candidate_id")
	return out
}

// Encode renders row as cells. Emails beyond the layout's email columns are
// dropped.
func (l Layout) Encode(row model.DestinationRow) []string {
	out := make([]string, l.Width())
	set := func(i int, v string) {
		if i >= 0 {
			out[i] = v
		}
	}
	set(l.FirstName, row.FirstName)
	set(l.LastName, row.LastName)
	for n, i := range l.Emails {
		if n < len(row.Emails) {
			set(i, row.Emails[n])
		}
	}
	set(l.Location, row.Location)
	set(l.ProfileURL, row.ProfileURL)
	set(l.LastSynced, model.FormatSheetDate(row.LastSyncedAt))
	set(l.SyncStatus, string(row.SyncStatus))
	set(l.CandidateID, row.CandidateID)
	return out
}

// Decode reads a row of cells. rowNumber is the 1-based position in the
// sheet. ok is false for a row with no identifying content.
func (l Layout) Decode(cells []string, rowNumber int) (model.DestinationRow, bool) {
	get := func(i int) string {
		if i < 0 || i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[i])
	}
	r := model.DestinationRow{
		CandidateID: get(l.CandidateID),
		FirstName:   get(l.FirstName),
		LastName:    get(l.LastName),
		Location:    get(l.Location),
		ProfileURL:  get(l.ProfileURL),
		SyncStatus:  model.SyncStatus(get(l.SyncStatus)),
		RowNumber:   rowNumber,
	}
	for _, i := range l.Emails {
		if e := get(i); e != "" {
			r.Emails = append(r.Emails, e)
		}
	}
	if t, ok := model.ParseSheetDate(get(l.LastSynced)); ok {
		r.LastSyncedAt = t
	}
	if r.FullName() == "" && len(r.Emails) == 0 && r.ProfileURL == "" && r.CandidateID == "" {
		return r, false
	}
	return r, true
}

// ColumnIndex converts a column reference ("A", "r", "AA") to a zero-based
// index.
func ColumnIndex(ref string) (int, error) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if ref == "" {
		return 0, eris.New("empty column reference")
	}
	n := 0
	for _, ch := range ref {
		if ch < 'A' || ch > 'Z' {
			return 0, eris.Errorf("invalid column reference %q", ref)
		}
		n = n*26 + int(ch-'A'+1)
	}
	return n - 1, nil
}

// ColumnLetter converts a zero-based index to a column reference.
func ColumnLetter(idx int) string {
	var b []byte
	for n := idx + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}
