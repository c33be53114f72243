// Package enrich looks up every pending candidate's detail record and
// resolves its LinkedIn profile URL and full email set.
package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/talent-sync/internal/model"
	"github.com/sells-group/talent-sync/internal/profile"
	"github.com/sells-group/talent-sync/internal/resilience"
	"github.com/sells-group/talent-sync/internal/snapshot"
	"github.com/sells-group/talent-sync/pkg/lever"
)

// Config tunes an enrichment pass.
type Config struct {
	// Concurrency bounds in-flight detail lookups. Default: 4.
	Concurrency int
	// CheckpointEvery saves the snapshot after this many applied results.
	// Default: 25. Negative disables checkpoints.
	CheckpointEvery int
	// Limit caps how many pending records one pass processes. 0 means all.
	Limit int
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.CheckpointEvery == 0 {
		c.CheckpointEvery = 25
	}
	return c
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for enriched_at stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine runs enrichment passes over a snapshot.
type Engine struct {
	client lever.Client
	store  *snapshot.Store
	retry  resilience.RetryConfig
	cfg    Config
	now    func() time.Time
	log    *zap.Logger
}

// NewEngine creates an enrichment engine.
func NewEngine(client lever.Client, store *snapshot.Store, retry resilience.RetryConfig, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		client: client,
		store:  store,
		retry:  retry.WithOnRetry(resilience.RetryLogger("lever", "get_opportunity")),
		cfg:    cfg.withDefaults(),
		now:    func() time.Time { return time.Now().UTC() },
		log:    zap.L().With(zap.String("stage", "enrich")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// pass holds the mutable state of one Run.
type pass struct {
	mu      sync.Mutex
	sum     model.EnrichSummary
	applied int
}

// Run enriches every pending record. Lookup failures leave the record pending
// and are reported in the summary. An auth failure or cancellation stops the
// pass; results applied so far are saved either way. The summary is returned
// even when err is non-nil.
func (e *Engine) Run(ctx context.Context) (model.EnrichSummary, error) {
	pending := e.store.Pending()
	if e.cfg.Limit > 0 && len(pending) > e.cfg.Limit {
		pending = pending[:e.cfg.Limit]
	}

	p := &pass{}
	p.sum.Pending = len(pending)
	if len(pending) == 0 {
		e.log.Info("no pending candidates")
		return p.sum, nil
	}

	e.log.Info("enrichment starting",
		zap.Int("pending", len(pending)),
		zap.Int("concurrency", e.cfg.Concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for _, c := range pending {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return e.enrichOne(gctx, ctx, p, c)
		})
	}
	runErr := g.Wait()

	// Saves must survive the cancellation that may have ended the pass.
	saveCtx := context.WithoutCancel(ctx)
	if err := e.store.Save(saveCtx); err != nil {
		return p.sum, eris.Wrap(err, "enrich: save snapshot")
	}

	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}

	e.log.Info("enrichment complete",
		zap.Int("processed", p.sum.Processed),
		zap.Int("enriched", p.sum.Enriched),
		zap.Int("no_profile_found", p.sum.NoProfileFound),
		zap.Int("failed", p.sum.Failed),
	)
	if runErr != nil {
		return p.sum, eris.Wrap(runErr, "enrich: run")
	}
	return p.sum, nil
}

func (e *Engine) enrichOne(gctx, parent context.Context, p *pass, c model.Candidate) error {
	if gctx.Err() != nil {
		return nil
	}
	detail, err := resilience.DoVal(gctx, e.retry, func(ctx context.Context) (*lever.Opportunity, error) {
		return e.client.GetOpportunity(ctx, c.ID)
	})

	switch {
	case err == nil:
	case resilience.IsAuth(err):
		// Abort the pass; siblings see gctx cancelled.
		return err
	case gctx.Err() != nil:
		// Cancelled mid-lookup: leave the record exactly as it was.
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cur, ok := e.store.Get(c.ID)
	if !ok || !cur.IsPending() {
		return nil
	}

	cur.EnrichAttempts++
	p.sum.Processed++

	if err != nil {
		cur.LastEnrichError = err.Error()
		p.sum.Failed++
		p.sum.FailedIDs = append(p.sum.FailedIDs, c.ID)
		e.log.Warn("lookup failed",
			zap.String("candidate_id", c.ID),
			zap.Int("attempts", cur.EnrichAttempts),
			zap.Error(err),
		)
	} else {
		e.apply(&cur, detail)
		switch cur.EnrichmentStatus {
		case model.EnrichmentEnriched:
			p.sum.Enriched++
		case model.EnrichmentNoProfileFound:
			p.sum.NoProfileFound++
		}
	}

	if uerr := e.store.Update(cur); uerr != nil {
		return eris.Wrap(uerr, "enrich: apply")
	}

	p.applied++
	if e.cfg.CheckpointEvery > 0 && p.applied%e.cfg.CheckpointEvery == 0 {
		if serr := e.store.Save(context.WithoutCancel(parent)); serr != nil {
			e.log.Warn("checkpoint save failed", zap.Error(serr))
		} else {
			e.log.Debug("checkpoint saved", zap.Int("applied", p.applied))
		}
	}
	return nil
}

// apply sets the enrichment outcome on c from its detail record.
func (e *Engine) apply(c *model.Candidate, detail *lever.Opportunity) {
	c.Emails = model.MergeEmails(c.Emails, detail.Emails...)

	links := append([]string(nil), detail.Links...)
	links = append(links, c.Links...)
	texts := append([]string{detail.Headline, c.Headline}, detail.Tags...)
	texts = append(texts, c.Tags...)

	if u, ok := profile.Find(links, texts...); ok {
		c.EnrichmentStatus = model.EnrichmentEnriched
		c.ProfileURL = u
	} else {
		c.EnrichmentStatus = model.EnrichmentNoProfileFound
		c.ProfileURL = ""
	}

	now := e.now()
	updated := c.UpdatedAt
	c.EnrichedAt = &now
	c.EnrichedUpdatedAt = &updated
	c.LastEnrichError = ""
}
