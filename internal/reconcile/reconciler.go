// Package reconcile appends enriched candidates that are not yet present in
// the destination. It never rewrites or deletes existing rows.
package reconcile

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/talent-sync/internal/model"
	"github.com/sells-group/talent-sync/internal/resilience"
)

// AppendResult reports the per-row outcome of one Append call.
type AppendResult struct {
	Written []string           // candidate ids appended
	Failed  []model.RowFailure // rows the destination rejected
}

// Destination is an append-only row store.
type Destination interface {
	// ReadExisting returns every row currently in the destination.
	ReadExisting(ctx context.Context) ([]model.DestinationRow, error)
	// Append adds rows after the existing content. A non-nil error means
	// nothing in the call is known to have been written.
	Append(ctx context.Context, rows []model.DestinationRow) (AppendResult, error)
}

// Config tunes a reconciliation pass.
type Config struct {
	// ChunkSize bounds rows per Append call. Default: 200.
	ChunkSize int
	// RequireEmail skips candidates without any email address.
	RequireEmail bool
	// SyncStatus is stamped on appended rows. Default: "new".
	SyncStatus model.SyncStatus
	// DryRun classifies without writing.
	DryRun bool
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 200
	}
	if c.SyncStatus == "" {
		c.SyncStatus = model.SyncStatusNew
	}
	return c
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock overrides the clock used for the last-synced stamp.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// Reconciler compares candidates against a destination and appends the new
// ones.
type Reconciler struct {
	dest  Destination
	retry resilience.RetryConfig
	cfg   Config
	now   func() time.Time
	log   *zap.Logger
}

// New creates a Reconciler writing to dest.
func New(dest Destination, retry resilience.RetryConfig, cfg Config, opts ...Option) *Reconciler {
	r := &Reconciler{
		dest:  dest,
		retry: retry.WithOnRetry(resilience.RetryLogger("destination", "append")),
		cfg:   cfg.withDefaults(),
		now:   time.Now,
		log:   zap.L().With(zap.String("stage", "reconcile")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Plan is the outcome of classification before any write.
type Plan struct {
	Rows    []model.DestinationRow
	Summary model.ReconcileSummary
	// Indexed is the number of rows the duplicate index covered once
	// classification finished: existing rows plus the accepted ones.
	Indexed int
}

// Classify reads the destination and decides, for every candidate, whether it
// would be appended. Nothing is written.
func (r *Reconciler) Classify(ctx context.Context, candidates []model.Candidate) (*Plan, error) {
	existing, err := resilience.DoVal(ctx, r.retry, r.dest.ReadExisting)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: read destination")
	}

	plan := &Plan{}
	sum := &plan.Summary
	sum.ExistingRows = len(existing)
	sum.Considered = len(candidates)

	ix := NewIndex(existing)
	syncedAt := r.now()

	for _, c := range candidates {
		if c.IsPending() {
			sum.SkippedPending++
			continue
		}
		row := model.NewDestinationRow(c, r.cfg.SyncStatus, syncedAt)
		if r.cfg.RequireEmail && len(row.Emails) == 0 {
			sum.SkippedNoEmail++
			continue
		}
		if m, dup := ix.Match(row); dup {
			sum.DuplicateSkipped++
			sum.Duplicates = append(sum.Duplicates, m)
			continue
		}
		ix.Add(row)
		plan.Rows = append(plan.Rows, row)
	}
	plan.Indexed = ix.Len()
	return plan, nil
}

// Run classifies candidates then appends the new rows in chunks. Per-row and
// per-chunk failures are reported in the summary; only an unreadable
// destination, an auth failure or cancellation returns an error. The summary
// is returned even when err is non-nil.
func (r *Reconciler) Run(ctx context.Context, candidates []model.Candidate) (model.ReconcileSummary, error) {
	plan, err := r.Classify(ctx, candidates)
	if err != nil {
		return model.ReconcileSummary{Considered: len(candidates), DryRun: r.cfg.DryRun}, err
	}
	sum := plan.Summary
	sum.DryRun = r.cfg.DryRun

	r.log.Info("reconcile classified",
		zap.Int("existing_rows", sum.ExistingRows),
		zap.Int("to_insert", len(plan.Rows)),
		zap.Int("indexed_rows", plan.Indexed),
		zap.Int("duplicates", sum.DuplicateSkipped),
		zap.Int("skipped_pending", sum.SkippedPending),
		zap.Int("skipped_no_email", sum.SkippedNoEmail),
	)

	if r.cfg.DryRun {
		for _, row := range plan.Rows {
			sum.InsertedIDs = append(sum.InsertedIDs, row.CandidateID)
		}
		sum.Inserted = len(plan.Rows)
		return sum, nil
	}

	for start := 0; start < len(plan.Rows); start += r.cfg.ChunkSize {
		end := min(start+r.cfg.ChunkSize, len(plan.Rows))
		chunk := plan.Rows[start:end]

		written, failed, err := r.writeChunk(ctx, chunk)
		sum.InsertedIDs = append(sum.InsertedIDs, written...)
		sum.Failures = append(sum.Failures, failed...)
		sum.Inserted = len(sum.InsertedIDs)
		sum.Failed = len(sum.Failures)
		if err != nil {
			return sum, err
		}
	}

	r.log.Info("reconcile complete",
		zap.Int("inserted", sum.Inserted),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}

// writeChunk appends one chunk under the retry policy. Before each retry the
// destination is re-read and rows that already landed are dropped from the
// resubmission so a lost response never produces a double append.
func (r *Reconciler) writeChunk(ctx context.Context, chunk []model.DestinationRow) ([]string, []model.RowFailure, error) {
	remaining := chunk
	var landed []string
	attempt := 0

	res, err := resilience.DoVal(ctx, r.retry, func(ctx context.Context) (AppendResult, error) {
		attempt++
		if attempt > 1 {
			existing, rerr := r.dest.ReadExisting(ctx)
			if rerr != nil {
				return AppendResult{}, rerr
			}
			ix := NewIndex(existing)
			var still []model.DestinationRow
			for _, row := range remaining {
				if _, present := ix.Match(row); present {
					landed = append(landed, row.CandidateID)
					continue
				}
				still = append(still, row)
			}
			remaining = still
			if len(remaining) == 0 {
				return AppendResult{}, nil
			}
		}
		return r.dest.Append(ctx, remaining)
	})

	written := append(landed, res.Written...)
	if err == nil {
		for _, f := range res.Failed {
			r.log.Warn("row rejected",
				zap.String("candidate_id", f.CandidateID),
				zap.String("error", f.Error),
			)
		}
		return written, res.Failed, nil
	}

	if resilience.IsAuth(err) || ctx.Err() != nil {
		return written, nil, eris.Wrap(err, "reconcile: append")
	}

	r.log.Warn("chunk append failed",
		zap.Int("rows", len(remaining)),
		zap.Int("attempts", attempt),
		zap.Error(err),
	)
	failed := make([]model.RowFailure, 0, len(remaining))
	for _, row := range remaining {
		failed = append(failed, model.RowFailure{CandidateID: row.CandidateID, Error: err.Error()})
	}
	return written, failed, nil
}
