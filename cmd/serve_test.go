//go:build !integration

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/talent-sync/internal/model"
	"github.com/sells-group/talent-sync/internal/monitoring"
	"github.com/sells-group/talent-sync/internal/store"
)

type fakeTrigger struct {
	running atomic.Bool
	calls   atomic.Int32
	done    chan struct{}
}

func (f *fakeTrigger) Sync(_ context.Context) (*model.RunSummary, error) {
	f.calls.Add(1)
	defer close(f.done)
	return &model.RunSummary{RunID: "r1", Status: model.RunStatusComplete}, nil
}

func (f *fakeTrigger) Running() bool { return f.running.Load() }

func newTestServer(t *testing.T) (*server, *fakeTrigger) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	snap := testSnapshot(t,
		testCandidate("c1", "Ada Lovelace", "ada@example.com", now),
		testCandidate("c2", "Grace Hopper", "grace@example.com", now.Add(time.Minute)),
	)
	enriched, ok := snap.Get("c1")
	require.True(t, ok)
	enriched.EnrichmentStatus = model.EnrichmentEnriched
	enriched.ProfileURL = "https://www.linkedin.com/in/ada"
	require.NoError(t, snap.Update(enriched))

	trigger := &fakeTrigger{done: make(chan struct{})}
	return &server{
		ctx:       context.Background(),
		runs:      st,
		snap:      snap,
		runner:    trigger,
		collector: monitoring.NewCollector(st),
		lookback:  24,
	}, trigger
}

func doRequest(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv.routes(), http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["sync_running"])
}

func TestServer_HealthDegradedWhenStoreClosed(t *testing.T) {
	srv, _ := newTestServer(t)
	require.NoError(t, srv.runs.Close())

	rr := doRequest(t, srv.routes(), http.MethodGet, "/health")

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "degraded")
}

func TestServer_SyncAccepted(t *testing.T) {
	srv, trigger := newTestServer(t)

	rr := doRequest(t, srv.routes(), http.MethodPost, "/sync")

	assert.Equal(t, http.StatusAccepted, rr.Code)
	select {
	case <-trigger.done:
	case <-time.After(2 * time.Second):
		t.Fatal("sync was not started")
	}
	srv.wg.Wait()
	assert.Equal(t, int32(1), trigger.calls.Load())
}

func TestServer_SyncConflictWhileRunning(t *testing.T) {
	srv, trigger := newTestServer(t)
	trigger.running.Store(true)

	rr := doRequest(t, srv.routes(), http.MethodPost, "/sync")

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "in progress")
	assert.Equal(t, int32(0), trigger.calls.Load())
}

func TestServer_SyncRejectsGet(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doRequest(t, srv.routes(), http.MethodGet, "/sync")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestServer_RunsListAndGet(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	run, err := srv.runs.CreateRun(ctx, "sync", "posting-1")
	require.NoError(t, err)
	_, err = srv.runs.CreateRun(ctx, "fetch", "posting-1")
	require.NoError(t, err)

	h := srv.routes()

	rr := doRequest(t, h, http.MethodGet, "/runs?command=sync")
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	rr = doRequest(t, h, http.MethodGet, "/runs/"+run.ID)
	require.Equal(t, http.StatusOK, rr.Code)
	var got model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "sync", got.Command)

	rr = doRequest(t, h, http.MethodGet, "/runs/does-not-exist")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_RunsEmptyListIsArray(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doRequest(t, srv.routes(), http.MethodGet, "/runs")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestServer_BadPageParams(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.routes()

	for _, path := range []string{"/runs?limit=abc", "/runs?offset=-1", "/snapshot/candidates?limit=x"} {
		rr := doRequest(t, h, http.MethodGet, path)
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
	}
}

func TestServer_SnapshotStats(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv.routes(), http.MethodGet, "/snapshot/stats")

	require.Equal(t, http.StatusOK, rr.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.EqualValues(t, 2, stats["total"])
	assert.EqualValues(t, 1, stats["pending"])
	assert.EqualValues(t, 1, stats["enriched"])
}

func TestServer_SnapshotCandidates(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.routes()

	rr := doRequest(t, h, http.MethodGet, "/snapshot/candidates?status=pending")
	require.Equal(t, http.StatusOK, rr.Code)
	var records []model.Candidate
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "c2", records[0].ID)

	rr = doRequest(t, h, http.MethodGet, "/snapshot/candidates?status=bogus")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, h, http.MethodGet, "/snapshot/candidates/c1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "linkedin.com/in/ada")

	rr = doRequest(t, h, http.MethodGet, "/snapshot/candidates/missing")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_Metrics(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	run, err := srv.runs.CreateRun(ctx, "sync", "posting-1")
	require.NoError(t, err)
	require.NoError(t, srv.runs.CompleteRun(ctx, run.ID, &model.RunSummary{
		RunID:     run.ID,
		Status:    model.RunStatusComplete,
		Reconcile: &model.ReconcileSummary{Inserted: 3},
	}))

	h := srv.routes()
	rr := doRequest(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	var snap monitoring.MetricsSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.RunsTotal)
	assert.Equal(t, 3, snap.RowsInserted)
	assert.Equal(t, 24, snap.LookbackHours)

	rr = doRequest(t, h, http.MethodGet, "/metrics?lookback_hours=0")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/runs", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	srv.routes().ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
