package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/talent-sync/internal/model"
	"github.com/sells-group/talent-sync/internal/store"
)

// maxWindowRuns caps how many runs a single collection reads.
const maxWindowRuns = 10000

// MetricsSnapshot holds a point-in-time view of sync health.
type MetricsSnapshot struct {
	RunsTotal    int `json:"runs_total"`
	RunsComplete int `json:"runs_complete"`
	RunsPartial  int `json:"runs_partial"`
	RunsFailed   int `json:"runs_failed"`
	RunsRunning  int `json:"runs_running"`

	CandidatesNew     int `json:"candidates_new"`
	CandidatesUpdated int `json:"candidates_updated"`

	EnrichProcessed int     `json:"enrich_processed"`
	EnrichEnriched  int     `json:"enrich_enriched"`
	EnrichNoProfile int     `json:"enrich_no_profile"`
	EnrichFailed    int     `json:"enrich_failed"`
	EnrichFailRate  float64 `json:"enrich_fail_rate"`

	RowsInserted    int `json:"rows_inserted"`
	RowsDuplicate   int `json:"rows_duplicate"`
	ReconcileFailed int `json:"reconcile_failed"`

	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LookbackHours int        `json:"lookback_hours"`
	CollectedAt   time.Time  `json:"collected_at"`
}

// RunLister is the subset of store.Store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector aggregates run history over a lookback window.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: func() time.Time { return time.Now().UTC() }}
}

// Collect gathers a snapshot of run metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{
		Since: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit: maxWindowRuns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	for i := range runs {
		r := &runs[i]
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusPartial:
			snap.RunsPartial++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
		if snap.LastRunAt == nil || r.CreatedAt.After(*snap.LastRunAt) {
			t := r.CreatedAt
			snap.LastRunAt = &t
		}

		s := r.Summary
		if s == nil {
			continue
		}
		if s.Merge != nil {
			snap.CandidatesNew += s.Merge.New
			snap.CandidatesUpdated += s.Merge.Updated
		}
		if s.Enrich != nil {
			snap.EnrichProcessed += s.Enrich.Processed
			snap.EnrichEnriched += s.Enrich.Enriched
			snap.EnrichNoProfile += s.Enrich.NoProfileFound
			snap.EnrichFailed += s.Enrich.Failed
		}
		if s.Reconcile != nil && !s.Reconcile.DryRun {
			snap.RowsInserted += s.Reconcile.Inserted
			snap.RowsDuplicate += s.Reconcile.DuplicateSkipped
			snap.ReconcileFailed += s.Reconcile.Failed
		}
	}

	if snap.EnrichProcessed > 0 {
		snap.EnrichFailRate = float64(snap.EnrichFailed) / float64(snap.EnrichProcessed)
	}
	return snap, nil
}
