package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/talent-sync/internal/config"
	"github.com/sells-group/talent-sync/internal/model"
	"github.com/sells-group/talent-sync/internal/monitoring"
	"github.com/sells-group/talent-sync/internal/snapshot"
	"github.com/sells-group/talent-sync/internal/store"
	"github.com/sells-group/talent-sync/internal/syncer"
)

var servePort int

// syncTrigger is the part of syncer.Runner the server drives.
type syncTrigger interface {
	Sync(ctx context.Context) (*model.RunSummary, error)
	Running() bool
}

// server holds the handlers' dependencies. ctx outlives individual requests
// so that a sync accepted over HTTP keeps running after the response.
type server struct {
	ctx       context.Context
	runs      store.Store
	snap      *snapshot.Store
	runner    syncTrigger
	collector *monitoring.Collector
	lookback  int
	wg        sync.WaitGroup
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server for triggering syncs and reading history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initSyncEnv(ctx, config.ModeServe, envOptions{})
		if err != nil {
			return err
		}
		defer env.Close()

		collector := monitoring.NewCollector(env.Store)
		srv := &server{
			ctx:       ctx,
			runs:      env.Store,
			snap:      env.Snapshot,
			runner:    env.Runner,
			collector: collector,
			lookback:  cfg.Monitoring.LookbackHours,
		}
		defer srv.wg.Wait()

		checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
		go checker.Run(ctx)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srv.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/sync", s.handleSync)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Get("/{id}", s.handleGetRun)
	})

	r.Route("/snapshot", func(r chi.Router) {
		r.Get("/stats", s.handleSnapshotStats)
		r.Get("/candidates", s.handleListCandidates)
		r.Get("/candidates/{id}", s.handleGetCandidate)
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{"status": "ok", "sync_running": s.runner.Running()}
	if err := s.runs.Ping(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["error"] = err.Error()
	}
	respondJSON(w, status, body)
}

// handleSync starts a full sync in the background. Only one sync may run at
// a time.
func (s *server) handleSync(w http.ResponseWriter, _ *http.Request) {
	if s.runner.Running() {
		respondError(w, http.StatusConflict, syncer.ErrRunInProgress.Error())
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		summary, err := s.runner.Sync(s.ctx)
		if err != nil {
			zap.L().Error("triggered sync failed", zap.Error(err))
			return
		}
		zap.L().Info("triggered sync complete",
			zap.String("run_id", summary.RunID),
			zap.String("status", string(summary.Status)),
		)
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	lookback := s.lookback
	if v := r.URL.Query().Get("lookback_hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "lookback_hours must be a positive integer")
			return
		}
		lookback = n
	}

	snap, err := s.collector.Collect(r.Context(), lookback)
	if err != nil {
		zap.L().Error("collect metrics", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to collect metrics")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}

	runs, err := s.runs.ListRuns(r.Context(), store.RunFilter{
		Status:  model.RunStatus(q.Get("status")),
		Command: q.Get("command"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		zap.L().Error("list runs", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	respondJSON(w, http.StatusOK, runs)
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("get run", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func (s *server) handleSnapshotStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.snap.Stats())
}

func (s *server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}
	status := model.EnrichmentStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		respondError(w, http.StatusBadRequest, "unknown enrichment status")
		return
	}

	records := s.snap.List(snapshot.Filter{Status: status, Limit: limit, Offset: offset})
	if records == nil {
		records = []model.Candidate{}
	}
	respondJSON(w, http.StatusOK, records)
}

func (s *server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	c, ok := s.snap.Get(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "candidate not found")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// pageParams parses limit and offset, writing a 400 on bad input.
func pageParams(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &limit}, {"offset", &offset}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, p.name+" must be a non-negative integer")
			return 0, 0, false
		}
		*p.dst = n
	}
	return limit, offset, true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
