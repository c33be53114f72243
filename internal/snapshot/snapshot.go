// Package snapshot is the durable local record of every candidate seen
// upstream. Fetched batches are merged into it by id, the enrichment engine
// reads and writes back its pending subset, and the reconciler projects it
// into the destination.
package snapshot

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/talent-sync/internal/model"
)

// Persister loads and saves the full record set. Save must be atomic: a
// reader never observes a partially written snapshot.
type Persister interface {
	Load(ctx context.Context) ([]model.Candidate, error)
	Save(ctx context.Context, records []model.Candidate) error
}

// ErrUnknownCandidate is returned by Update for an id not in the snapshot.
var ErrUnknownCandidate = eris.New("snapshot: unknown candidate")

// Stats summarizes the snapshot contents.
type Stats struct {
	Total          int       `json:"total"`
	Pending        int       `json:"pending"`
	Enriched       int       `json:"enriched"`
	NoProfileFound int       `json:"no_profile_found"`
	WithProfileURL int       `json:"with_profile_url"`
	Archived       int       `json:"archived"`
	LastSeenAt     time.Time `json:"last_seen_at,omitempty"`
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock used for first/last seen stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store holds the snapshot in memory. All methods are safe for concurrent
// use; mutations are serialized under one mutex.
type Store struct {
	mu        sync.Mutex
	persister Persister
	records   map[string]*model.Candidate
	order     []string
	now       func() time.Time
}

// New returns an empty store backed by p.
func New(p Persister, opts ...Option) *Store {
	s := &Store{
		persister: p,
		records:   make(map[string]*model.Candidate),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads the persisted snapshot. A missing snapshot yields an empty store.
func Open(ctx context.Context, p Persister, opts ...Option) (*Store, error) {
	s := New(p, opts...)
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload discards the in-memory state and re-reads the persisted snapshot.
// On error the in-memory state is left as it was.
func (s *Store) Reload(ctx context.Context) error {
	records, err := s.persister.Load(ctx)
	if err != nil {
		return eris.Wrap(err, "snapshot: load")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*model.Candidate, len(records))
	s.order = nil
	for i := range records {
		c := records[i]
		if c.ID == "" {
			zap.L().Warn("snapshot: dropping stored record without id", zap.Int("index", i))
			continue
		}
		if _, dup := s.records[c.ID]; dup {
			continue
		}
		if c.EnrichmentStatus == "" {
			c.EnrichmentStatus = model.EnrichmentPending
		}
		s.put(c)
	}
	return nil
}

func (s *Store) put(c model.Candidate) {
	if _, ok := s.records[c.ID]; !ok {
		s.order = append(s.order, c.ID)
	}
	cp := c.Clone()
	s.records[c.ID] = &cp
}

// Merge folds a fetched batch into the snapshot and classifies each id as
// new, updated or preserved. Repeated ids in one batch are applied in order
// but counted once, by their first occurrence. Records absent from the batch
// are left alone. Merge only mutates memory; call Save to persist.
func (s *Store) Merge(fetched []model.Candidate) model.MergeSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sum := model.MergeSummary{Fetched: len(fetched)}
	classified := make(map[string]bool, len(fetched))

	for i, f := range fetched {
		if f.ID == "" {
			sum.Malformed++
			sum.Skipped = append(sum.Skipped, model.SkippedEntry{Index: i, Reason: "missing id"})
			continue
		}
		counted := classified[f.ID]
		classified[f.ID] = true

		existing, ok := s.records[f.ID]
		if !ok {
			c := f.Clone()
			c.Emails = model.MergeEmails(nil, f.Emails...)
			c.EnrichmentStatus = model.EnrichmentPending
			c.ProfileURL = ""
			c.EnrichedAt = nil
			c.EnrichedUpdatedAt = nil
			c.EnrichAttempts = 0
			c.LastEnrichError = ""
			c.FirstSeenAt = now
			c.LastSeenAt = now
			s.put(c)
			if !counted {
				sum.New++
				sum.NewIDs = append(sum.NewIDs, f.ID)
			}
			continue
		}

		if !f.UpdatedAt.After(existing.UpdatedAt) {
			if !counted {
				sum.Preserved++
			}
			continue
		}

		requeued := applyUpdate(existing, f, now)
		if !counted {
			sum.Updated++
			sum.UpdatedIDs = append(sum.UpdatedIDs, f.ID)
			if requeued {
				sum.Requeued++
			}
		}
	}

	sum.Total = len(s.records)
	return sum
}

// applyUpdate overwrites the mutable upstream fields of dst with src and
// reports whether dst was reset to pending.
func applyUpdate(dst *model.Candidate, src model.Candidate, now time.Time) bool {
	profileChanged := model.NormalizeKey(dst.Name) != model.NormalizeKey(src.Name) ||
		model.NormalizeKey(dst.Headline) != model.NormalizeKey(src.Headline)

	dst.Name = src.Name
	dst.Headline = src.Headline
	dst.Location = src.Location
	dst.Emails = model.MergeEmails(dst.Emails, src.Emails...)
	dst.Links = append([]string(nil), src.Links...)
	dst.Tags = append([]string(nil), src.Tags...)
	dst.Stage = src.Stage
	dst.Origin = src.Origin
	dst.Archived = src.Archived
	if src.PostingID != "" {
		dst.PostingID = src.PostingID
		dst.PostingTitle = src.PostingTitle
	}
	if !src.CreatedAt.IsZero() {
		dst.CreatedAt = src.CreatedAt
	}
	dst.UpdatedAt = src.UpdatedAt
	dst.LastSeenAt = now

	if profileChanged && !dst.IsPending() && dst.NeedsReenrichment(src.UpdatedAt) {
		dst.EnrichmentStatus = model.EnrichmentPending
		dst.EnrichAttempts = 0
		dst.LastEnrichError = ""
		return true
	}
	return false
}

// Pending returns copies of the records awaiting enrichment, in snapshot order.
func (s *Store) Pending() []model.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Candidate
	for _, id := range s.order {
		if c := s.records[id]; c.IsPending() {
			out = append(out, c.Clone())
		}
	}
	return out
}

// All returns copies of every record, in snapshot order.
func (s *Store) All() []model.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allLocked()
}

func (s *Store) allLocked() []model.Candidate {
	out := make([]model.Candidate, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Clone())
	}
	return out
}

// Get returns a copy of the record with id.
func (s *Store) Get(id string) (model.Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[id]
	if !ok {
		return model.Candidate{}, false
	}
	return c.Clone(), true
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Update replaces the stored record with c as a whole. Emails are unioned so
// the stored set never shrinks.
func (s *Store) Update(c model.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[c.ID]
	if !ok {
		return eris.Wrapf(ErrUnknownCandidate, "id %s", c.ID)
	}
	next := c.Clone()
	next.Emails = model.MergeEmails(existing.Emails, c.Emails...)
	*existing = next
	return nil
}

// Save persists the whole snapshot.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	records := s.allLocked()
	s.mu.Unlock()

	if err := s.persister.Save(ctx, records); err != nil {
		return eris.Wrap(err, "snapshot: save")
	}
	return nil
}

// Stats counts records by enrichment status.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Total: len(s.records)}
	for _, c := range s.records {
		switch {
		case c.IsPending():
			st.Pending++
		case c.EnrichmentStatus == model.EnrichmentEnriched:
			st.Enriched++
		case c.EnrichmentStatus == model.EnrichmentNoProfileFound:
			st.NoProfileFound++
		}
		if c.ProfileURL != "" {
			st.WithProfileURL++
		}
		if c.Archived {
			st.Archived++
		}
		if c.LastSeenAt.After(st.LastSeenAt) {
			st.LastSeenAt = c.LastSeenAt
		}
	}
	return st
}

// Filter selects records for listing.
type Filter struct {
	Status model.EnrichmentStatus
	Limit  int
	Offset int
}

// List returns records matching f, most recently updated first.
func (s *Store) List(f Filter) []model.Candidate {
	all := s.All()
	out := all[:0]
	for _, c := range all {
		if f.Status != "" {
			if f.Status == model.EnrichmentPending {
				if !c.IsPending() {
					continue
				}
			} else if c.EnrichmentStatus != f.Status {
				continue
			}
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out
}
