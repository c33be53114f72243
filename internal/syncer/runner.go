// Package syncer runs the fetch, enrich and reconcile stages in order and
// records each invocation in the run history.
package syncer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/talent-sync/internal/model"
	"github.com/sells-group/talent-sync/internal/monitoring"
	"github.com/sells-group/talent-sync/internal/snapshot"
	"github.com/sells-group/talent-sync/internal/source"
	"github.com/sells-group/talent-sync/internal/store"
)

// Stage names as recorded in run history.
const (
	StageFetch     = "fetch"
	StageEnrich    = "enrich"
	StageReconcile = "reconcile"
)

// ErrRunInProgress is returned when a run is started while another is active.
var ErrRunInProgress = eris.New("syncer: run in progress")

// Fetcher is the source side of a run.
type Fetcher interface {
	ResolvePosting(ctx context.Context, postingID, title string) (string, string, error)
	Fetch(ctx context.Context, postingID, postingTitle string) (*source.Result, error)
}

// Enricher runs one enrichment pass over the pending snapshot records.
type Enricher interface {
	Run(ctx context.Context) (model.EnrichSummary, error)
}

// Reconciler appends the new candidates to the destination.
type Reconciler interface {
	Run(ctx context.Context, candidates []model.Candidate) (model.ReconcileSummary, error)
}

// Deps wires a Runner. Runs, Alerter and the stage dependencies a command
// does not use may be nil.
type Deps struct {
	Snapshot     *snapshot.Store
	Fetcher      Fetcher
	Enricher     Enricher
	Reconciler   Reconciler
	Runs         store.Store
	Alerter      *monitoring.Alerter
	PostingID    string
	PostingTitle string
}

// Runner executes stages and keeps run history.
type Runner struct {
	deps    Deps
	running atomic.Bool
	now     func() time.Time
	log     *zap.Logger
}

// New creates a Runner.
func New(deps Deps) *Runner {
	return &Runner{
		deps: deps,
		now:  func() time.Time { return time.Now().UTC() },
		log:  zap.L().With(zap.String("component", "syncer")),
	}
}

// Running reports whether a run is active.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Sync runs fetch, enrich and reconcile.
func (r *Runner) Sync(ctx context.Context) (*model.RunSummary, error) {
	return r.run(ctx, "sync", StageFetch, StageEnrich, StageReconcile)
}

// Fetch runs only the fetch-and-merge stage.
func (r *Runner) Fetch(ctx context.Context) (*model.RunSummary, error) {
	return r.run(ctx, StageFetch, StageFetch)
}

// Enrich runs only the enrichment stage.
func (r *Runner) Enrich(ctx context.Context) (*model.RunSummary, error) {
	return r.run(ctx, StageEnrich, StageEnrich)
}

// Reconcile runs only the reconciliation stage.
func (r *Runner) Reconcile(ctx context.Context) (*model.RunSummary, error) {
	return r.run(ctx, StageReconcile, StageReconcile)
}

func (r *Runner) run(ctx context.Context, command string, stages ...string) (*model.RunSummary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)

	summary := &model.RunSummary{StartedAt: r.now()}
	// History writes outlive a cancelled run so the failure is recorded.
	histCtx := context.WithoutCancel(ctx)

	if r.deps.Runs != nil {
		run, err := r.deps.Runs.CreateRun(ctx, command, r.postingLabel())
		if err != nil {
			return nil, eris.Wrap(err, "syncer: create run")
		}
		summary.RunID = run.ID
	} else {
		summary.RunID = uuid.New().String()
	}

	log := r.log.With(zap.String("run_id", summary.RunID), zap.String("command", command))
	log.Info("syncer: run started", zap.Strings("stages", stages))

	var runErr error
	for _, name := range stages {
		if runErr != nil {
			r.skipStage(histCtx, summary.RunID, name, log)
			continue
		}
		runErr = r.trackStage(histCtx, summary.RunID, name, log, func() (map[string]any, error) {
			return r.execStage(ctx, name, summary)
		})
	}

	summary.CompletedAt = r.now()
	switch {
	case runErr != nil:
		summary.Status = model.RunStatusFailed
		summary.Error = runErr.Error()
	case summary.HasRecordFailures():
		summary.Status = model.RunStatusPartial
	default:
		summary.Status = model.RunStatusComplete
	}

	if r.deps.Runs != nil {
		if err := r.deps.Runs.CompleteRun(histCtx, summary.RunID, summary); err != nil {
			log.Warn("syncer: failed to save run summary", zap.Error(err))
		}
	}
	if r.deps.Alerter != nil {
		if alerts := r.deps.Alerter.EvaluateRun(summary); len(alerts) > 0 {
			r.deps.Alerter.SendAlerts(histCtx, alerts)
		}
	}

	log.Info("syncer: run finished",
		zap.String("status", string(summary.Status)),
		zap.Duration("duration", summary.Duration()),
	)
	if runErr != nil {
		return summary, eris.Wrapf(runErr, "syncer: %s", command)
	}
	return summary, nil
}

// trackStage records a stage around fn.
func (r *Runner) trackStage(histCtx context.Context, runID, name string, log *zap.Logger, fn func() (map[string]any, error)) error {
	var stage *model.RunStage
	if r.deps.Runs != nil {
		var err error
		stage, err = r.deps.Runs.CreateStage(histCtx, runID, name)
		if err != nil {
			log.Warn("syncer: failed to create stage", zap.String("stage", name), zap.Error(err))
		}
	}

	start := time.Now()
	meta, fnErr := fn()
	result := &model.StageResult{
		Name:     name,
		Duration: time.Since(start).Milliseconds(),
		Metadata: meta,
	}

	if fnErr != nil {
		result.Status = model.StageStatusFailed
		result.Error = fnErr.Error()
		log.Error("syncer: stage failed",
			zap.String("stage", name),
			zap.Int64("duration_ms", result.Duration),
			zap.Error(fnErr),
		)
	} else {
		result.Status = model.StageStatusComplete
		log.Info("syncer: stage complete",
			zap.String("stage", name),
			zap.Int64("duration_ms", result.Duration),
		)
	}

	if stage != nil {
		if err := r.deps.Runs.CompleteStage(histCtx, stage.ID, result); err != nil {
			log.Warn("syncer: failed to complete stage", zap.String("stage", name), zap.Error(err))
		}
	}
	return fnErr
}

func (r *Runner) skipStage(ctx context.Context, runID, name string, log *zap.Logger) {
	log.Info("syncer: stage skipped", zap.String("stage", name))
	if r.deps.Runs == nil {
		return
	}
	stage, err := r.deps.Runs.CreateStage(ctx, runID, name)
	if err != nil {
		log.Warn("syncer: failed to create stage", zap.String("stage", name), zap.Error(err))
		return
	}
	_ = r.deps.Runs.CompleteStage(ctx, stage.ID, &model.StageResult{Name: name, Status: model.StageStatusSkipped})
}

func (r *Runner) execStage(ctx context.Context, name string, summary *model.RunSummary) (map[string]any, error) {
	switch name {
	case StageFetch:
		merge, err := r.fetchAndMerge(ctx)
		if merge != nil {
			summary.Merge = merge
			return map[string]any{
				"fetched":   merge.Fetched,
				"new":       merge.New,
				"updated":   merge.Updated,
				"preserved": merge.Preserved,
				"malformed": merge.Malformed,
			}, err
		}
		return nil, err
	case StageEnrich:
		if r.deps.Enricher == nil {
			return nil, eris.New("syncer: no enricher configured")
		}
		es, err := r.deps.Enricher.Run(ctx)
		summary.Enrich = &es
		return map[string]any{
			"pending":          es.Pending,
			"processed":        es.Processed,
			"enriched":         es.Enriched,
			"no_profile_found": es.NoProfileFound,
			"failed":           es.Failed,
		}, err
	case StageReconcile:
		if r.deps.Reconciler == nil {
			return nil, eris.New("syncer: no reconciler configured")
		}
		rs, err := r.deps.Reconciler.Run(ctx, r.deps.Snapshot.All())
		summary.Reconcile = &rs
		return map[string]any{
			"existing_rows":     rs.ExistingRows,
			"inserted":          rs.Inserted,
			"duplicate_skipped": rs.DuplicateSkipped,
			"failed":            rs.Failed,
			"dry_run":           rs.DryRun,
		}, err
	}
	return nil, eris.Errorf("syncer: unknown stage %q", name)
}

// fetchAndMerge fetches the posting and merges the batch into the snapshot.
// A failed fetch or save leaves the snapshot as it is on disk.
func (r *Runner) fetchAndMerge(ctx context.Context) (*model.MergeSummary, error) {
	if r.deps.Fetcher == nil {
		return nil, eris.New("syncer: no fetcher configured")
	}
	postingID, title, err := r.deps.Fetcher.ResolvePosting(ctx, r.deps.PostingID, r.deps.PostingTitle)
	if err != nil {
		return nil, err
	}
	res, err := r.deps.Fetcher.Fetch(ctx, postingID, title)
	if err != nil {
		return nil, err
	}

	merge := r.deps.Snapshot.Merge(res.Candidates)
	for _, m := range res.Malformed {
		merge.Malformed++
		merge.Skipped = append(merge.Skipped, model.SkippedEntry{ID: m.ID, Index: m.Index, Reason: m.Reason})
	}
	merge.Fetched += len(res.Malformed)

	saveCtx := context.WithoutCancel(ctx)
	if err := r.deps.Snapshot.Save(saveCtx); err != nil {
		// Roll memory back to what is on disk so the next merge classifies
		// against persisted state.
		if rerr := r.deps.Snapshot.Reload(saveCtx); rerr != nil {
			zap.L().Error("syncer: reload snapshot after failed save", zap.Error(rerr))
		}
		return &merge, err
	}
	return &merge, nil
}

func (r *Runner) postingLabel() string {
	if r.deps.PostingID != "" {
		return r.deps.PostingID
	}
	return r.deps.PostingTitle
}
