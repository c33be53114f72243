package model

import "time"

// SkippedEntry identifies an upstream entry dropped during normalization.
type SkippedEntry struct {
	ID     string `json:"id,omitempty"`
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// MergeSummary is the three-way classification of one fetched batch against
// the snapshot. Requeued is the subset of Updated reset to pending.
type MergeSummary struct {
	Fetched   int `json:"fetched"`
	New       int `json:"new"`
	Updated   int `json:"updated"`
	Preserved int `json:"preserved"`
	Requeued  int `json:"requeued"`
	Malformed int `json:"malformed"`
	Total     int `json:"total"`

	NewIDs     []string       `json:"new_ids,omitempty"`
	UpdatedIDs []string       `json:"updated_ids,omitempty"`
	Skipped    []SkippedEntry `json:"skipped,omitempty"`
}

// EnrichSummary reports one enrichment pass.
type EnrichSummary struct {
	Pending        int      `json:"pending"`
	Processed      int      `json:"processed"`
	Enriched       int      `json:"enriched"`
	NoProfileFound int      `json:"no_profile_found"`
	Failed         int      `json:"failed"`
	FailedIDs      []string `json:"failed_ids,omitempty"`
}

// FailureRatio is Failed over Processed, 0 when nothing was processed.
func (s EnrichSummary) FailureRatio() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Processed)
}

// MatchReason names the signal that classified a candidate as a duplicate.
type MatchReason string

const (
	MatchEmail      MatchReason = "email"
	MatchName       MatchReason = "name"
	MatchProfileURL MatchReason = "profile_url"
	// MatchBatch means the candidate matched another candidate accepted
	// earlier in the same run.
	MatchBatch MatchReason = "batch"
)

// DuplicateMatch records why a candidate was not appended.
type DuplicateMatch struct {
	CandidateID string      `json:"candidate_id"`
	Reason      MatchReason `json:"reason"`
	Value       string      `json:"value,omitempty"`
	RowNumber   int         `json:"row_number,omitempty"`
}

// RowFailure is a row the destination rejected.
type RowFailure struct {
	CandidateID string `json:"candidate_id"`
	Error       string `json:"error"`
}

// ReconcileSummary reports one reconciliation pass.
type ReconcileSummary struct {
	ExistingRows     int  `json:"existing_rows"`
	Considered       int  `json:"considered"`
	Inserted         int  `json:"inserted"`
	DuplicateSkipped int  `json:"duplicate_skipped"`
	SkippedPending   int  `json:"skipped_pending"`
	SkippedNoEmail   int  `json:"skipped_no_email"`
	Failed           int  `json:"failed"`
	DryRun           bool `json:"dry_run,omitempty"`

	InsertedIDs []string         `json:"inserted_ids,omitempty"`
	Duplicates  []DuplicateMatch `json:"duplicates,omitempty"`
	Failures    []RowFailure     `json:"failures,omitempty"`
}

// RunSummary aggregates the stage summaries of one pipeline invocation.
type RunSummary struct {
	RunID       string            `json:"run_id"`
	Status      RunStatus         `json:"status"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
	Merge       *MergeSummary     `json:"merge,omitempty"`
	Enrich      *EnrichSummary    `json:"enrich,omitempty"`
	Reconcile   *ReconcileSummary `json:"reconcile,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Duration returns how long the run took.
func (s RunSummary) Duration() time.Duration {
	if s.CompletedAt.IsZero() {
		return 0
	}
	return s.CompletedAt.Sub(s.StartedAt)
}

// HasRecordFailures reports whether any stage left per-record failures.
func (s RunSummary) HasRecordFailures() bool {
	if s.Enrich != nil && s.Enrich.Failed > 0 {
		return true
	}
	if s.Reconcile != nil && s.Reconcile.Failed > 0 {
		return true
	}
	return false
}
