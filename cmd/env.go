package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/talent-sync/internal/config"
	"github.com/sells-group/talent-sync/internal/destination"
	"github.com/sells-group/talent-sync/internal/enrich"
	"github.com/sells-group/talent-sync/internal/model"
	"github.com/sells-group/talent-sync/internal/monitoring"
	"github.com/sells-group/talent-sync/internal/reconcile"
	"github.com/sells-group/talent-sync/internal/resilience"
	"github.com/sells-group/talent-sync/internal/snapshot"
	"github.com/sells-group/talent-sync/internal/source"
	"github.com/sells-group/talent-sync/internal/store"
	"github.com/sells-group/talent-sync/internal/syncer"
	"github.com/sells-group/talent-sync/pkg/lever"
	"github.com/sells-group/talent-sync/pkg/notion"
	"github.com/sells-group/talent-sync/pkg/sheets"
)

// envOptions carries per-invocation flags into initSyncEnv.
type envOptions struct {
	DryRun      bool
	EnrichLimit int
}

// syncEnv holds the initialized snapshot, clients and runner used by the
// sync, fetch, enrich, reconcile and serve commands.
type syncEnv struct {
	Store    store.Store
	Snapshot *snapshot.Store
	Runner   *syncer.Runner
	closers  []func() error
}

// Close releases resources held by the environment.
func (e *syncEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			zap.L().Warn("close resource", zap.Error(err))
		}
	}
}

// initSyncEnv validates configuration for mode, opens the snapshot and run
// store, and builds only the clients mode needs. Callers should defer
// env.Close().
func initSyncEnv(ctx context.Context, mode config.Mode, opts envOptions) (*syncEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &syncEnv{}
	fail := func(err error) (*syncEnv, error) {
		env.Close()
		return nil, err
	}

	snap, closeSnap, err := initSnapshot(ctx)
	if err != nil {
		return fail(err)
	}
	env.Snapshot = snap
	if closeSnap != nil {
		env.closers = append(env.closers, closeSnap)
	}

	st, err := initStore(ctx)
	if err != nil {
		return fail(err)
	}
	env.Store = st
	env.closers = append(env.closers, st.Close)

	retry := retryPolicy()
	deps := syncer.Deps{
		Snapshot:     snap,
		Runs:         st,
		Alerter:      monitoring.NewAlerter(cfg.Monitoring),
		PostingID:    cfg.Lever.PostingID,
		PostingTitle: cfg.Lever.PostingTitle,
	}

	if mode == config.ModeFetch || mode == config.ModeEnrich || mode == config.ModeSync || mode == config.ModeServe {
		client := initLever()
		deps.Fetcher = source.NewFetcher(client, retry)
		deps.Enricher = enrich.NewEngine(client, snap, retry, enrich.Config{
			Concurrency:     cfg.Enrich.Concurrency,
			CheckpointEvery: cfg.Enrich.CheckpointEvery,
			Limit:           opts.EnrichLimit,
		})
	}

	if mode == config.ModeReconcile || mode == config.ModeSync || mode == config.ModeServe {
		dest, err := initDestination(ctx)
		if err != nil {
			return fail(err)
		}
		deps.Reconciler = reconcile.New(dest, retry, reconcile.Config{
			ChunkSize:    cfg.Reconcile.ChunkSize,
			RequireEmail: cfg.Reconcile.RequireEmail,
			SyncStatus:   model.SyncStatus(cfg.Reconcile.SyncStatus),
			DryRun:       opts.DryRun,
		})
	}

	env.Runner = syncer.New(deps)
	return env, nil
}

// initSnapshot opens the configured snapshot backend. The returned closer
// may be nil.
func initSnapshot(ctx context.Context) (*snapshot.Store, func() error, error) {
	var (
		p       snapshot.Persister
		closeFn func() error
	)
	switch cfg.Snapshot.Driver {
	case "file":
		p = snapshot.NewFilePersister(cfg.Snapshot.Path)
	case "sqlite":
		sp, err := snapshot.NewSQLitePersister(ctx, cfg.Snapshot.Path)
		if err != nil {
			return nil, nil, err
		}
		p, closeFn = sp, sp.Close
	case "postgres":
		pp, err := snapshot.OpenPostgresPersister(ctx, cfg.Snapshot.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		p, closeFn = pp, pp.Close
	default:
		return nil, nil, eris.Errorf("unsupported snapshot driver: %s", cfg.Snapshot.Driver)
	}

	snap, err := snapshot.Open(ctx, p)
	if err != nil {
		if closeFn != nil {
			_ = closeFn()
		}
		return nil, nil, err
	}
	return snap, closeFn, nil
}

func initLever() lever.Client {
	breaker := resilience.NewNamedCircuitBreaker("lever",
		resilience.FromCircuitConfig(cfg.Circuit.FailureThreshold, cfg.Circuit.ResetTimeoutSecs))
	return lever.NewClient(cfg.Lever.APIKey,
		lever.WithBaseURL(cfg.Lever.BaseURL),
		lever.WithPageSize(cfg.Lever.PageSize),
		lever.WithRateLimit(cfg.Lever.RateLimitRPS),
		lever.WithTimeout(time.Duration(cfg.Lever.TimeoutSecs)*time.Second),
		lever.WithCircuitBreaker(breaker),
	)
}

func initDestination(ctx context.Context) (reconcile.Destination, error) {
	d := cfg.Destination
	layout, err := destination.LoadLayoutFile(d.LayoutFile)
	if err != nil {
		return nil, err
	}

	switch d.Driver {
	case "sheets":
		client, err := sheets.NewClient(ctx,
			sheets.WithCredentialsFile(d.Sheets.CredentialsFile),
			sheets.WithTimeout(time.Duration(d.Sheets.TimeoutSecs)*time.Second),
		)
		if err != nil {
			return nil, err
		}
		return destination.NewSheets(client, d.Sheets.SpreadsheetID, d.Sheets.Worksheet, layout), nil
	case "xlsx":
		return destination.NewWorkbook(d.XLSX.Path, d.XLSX.Sheet, layout), nil
	case "notion":
		client := notion.NewClient(d.Notion.Token, notion.WithRateLimit(d.Notion.RateLimitRPS))
		return destination.NewNotion(client, d.Notion.DatabaseID), nil
	default:
		return nil, eris.Errorf("unsupported destination driver: %s", d.Driver)
	}
}

func retryPolicy() resilience.RetryConfig {
	r := cfg.Retry
	return resilience.FromRetryConfig(r.MaxAttempts, r.InitialBackoffMs, r.MaxBackoffMs, r.Multiplier, r.JitterFraction)
}
