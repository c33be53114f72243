// Package source pulls the current candidate set for one posting from Lever
// and normalizes it into model.Candidate.
package source

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/talent-sync/internal/model"
	"github.com/sells-group/talent-sync/internal/resilience"
	"github.com/sells-group/talent-sync/pkg/lever"
)

// maxPages bounds pagination in case the upstream keeps returning a cursor.
const maxPages = 10000

// Result is one full fetch.
type Result struct {
	PostingID    string
	PostingTitle string
	Candidates   []model.Candidate
	Pages        int
	Malformed    []*resilience.MalformedRecordError
}

// Fetcher lists every opportunity for a posting.
type Fetcher struct {
	client lever.Client
	retry  resilience.RetryConfig
	log    *zap.Logger
}

// NewFetcher creates a fetcher that retries each page request under retry.
func NewFetcher(client lever.Client, retry resilience.RetryConfig) *Fetcher {
	return &Fetcher{
		client: client,
		retry:  retry.WithOnRetry(resilience.RetryLogger("lever", "list_opportunities")),
		log:    zap.L().With(zap.String("stage", "fetch")),
	}
}

// ResolvePosting returns postingID when set, else looks a posting up by
// title.
func (f *Fetcher) ResolvePosting(ctx context.Context, postingID, title string) (id, resolvedTitle string, err error) {
	if postingID != "" {
		return postingID, title, nil
	}
	if title == "" {
		return "", "", eris.New("source: posting id or title required")
	}
	p, err := resilience.DoVal(ctx, f.retry, func(ctx context.Context) (*lever.Posting, error) {
		return f.client.FindPosting(ctx, title)
	})
	if err != nil {
		return "", "", eris.Wrap(err, "source: resolve posting")
	}
	f.log.Info("resolved posting",
		zap.String("posting_id", p.ID),
		zap.String("posting_title", p.Text),
	)
	return p.ID, p.Text, nil
}

// Fetch returns the complete current set of candidates for postingID,
// following the pagination cursor until exhausted. Malformed entries are
// skipped and reported in the result. A page that still fails after the
// retry policy yields resilience.ErrSourceUnavailable; an auth failure is
// returned as is.
func (f *Fetcher) Fetch(ctx context.Context, postingID, postingTitle string) (*Result, error) {
	res := &Result{PostingID: postingID, PostingTitle: postingTitle}
	cursor := ""
	index := 0

	for res.Pages < maxPages {
		page, err := resilience.DoVal(ctx, f.retry, func(ctx context.Context) (*lever.ListResponse, error) {
			return f.client.ListOpportunities(ctx, postingID, cursor)
		})
		if err != nil {
			return res, classifyFetchError(err, res.Pages+1)
		}
		res.Pages++

		for _, raw := range page.Data {
			c, merr := Normalize(raw, index, postingID, postingTitle)
			index++
			if merr != nil {
				res.Malformed = append(res.Malformed, merr)
				f.log.Warn("skipping malformed record",
					zap.Int("index", merr.Index),
					zap.String("candidate_id", merr.ID),
					zap.String("reason", merr.Reason),
				)
				continue
			}
			res.Candidates = append(res.Candidates, c)
		}

		f.log.Debug("fetched page",
			zap.Int("page", res.Pages),
			zap.Int("entries", len(page.Data)),
			zap.Bool("has_next", page.Next != ""),
		)

		if page.Next == "" || page.Next == cursor {
			break
		}
		cursor = page.Next
	}

	f.log.Info("fetch complete",
		zap.String("posting_id", postingID),
		zap.Int("pages", res.Pages),
		zap.Int("candidates", len(res.Candidates)),
		zap.Int("malformed", len(res.Malformed)),
	)
	return res, nil
}

func classifyFetchError(err error, page int) error {
	switch {
	case resilience.IsAuth(err):
		return eris.Wrapf(err, "source: fetch page %d", page)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return eris.Wrapf(err, "source: fetch page %d", page)
	case resilience.IsTransient(err), errors.Is(err, resilience.ErrCircuitOpen):
		return eris.Wrapf(resilience.ErrSourceUnavailable, "source: fetch page %d: %v", page, err)
	default:
		return eris.Wrapf(err, "source: fetch page %d", page)
	}
}

// Normalize decodes one raw list entry into a Candidate.
func Normalize(raw json.RawMessage, index int, postingID, postingTitle string) (model.Candidate, *resilience.MalformedRecordError) {
	o, err := lever.DecodeOpportunity(raw)
	if err != nil {
		return model.Candidate{}, &resilience.MalformedRecordError{Index: index, Reason: "decode", Err: err}
	}
	if o.ID == "" {
		return model.Candidate{}, &resilience.MalformedRecordError{Index: index, Reason: "missing id"}
	}
	return FromOpportunity(o, postingID, postingTitle), nil
}

// FromOpportunity maps a decoded opportunity onto a Candidate. Enrichment
// fields are left at their zero values.
func FromOpportunity(o lever.Opportunity, postingID, postingTitle string) model.Candidate {
	return model.Candidate{
		ID:           o.ID,
		Name:         o.Name,
		Headline:     o.Headline,
		Location:     o.Location,
		Emails:       model.MergeEmails(nil, o.Emails...),
		Links:        []string(o.Links),
		Tags:         o.Tags,
		Stage:        o.Stage.String(),
		Origin:       o.Origin,
		Archived:     o.Archived.IsArchived(),
		PostingID:    postingID,
		PostingTitle: postingTitle,
		CreatedAt:    o.CreatedAt.Time(),
		UpdatedAt:    o.UpdatedAt.Time(),
	}
}
