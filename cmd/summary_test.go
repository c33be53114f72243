package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/talent-sync/internal/model"
	"github.com/sells-group/talent-sync/internal/snapshot"
)

func testSnapshot(t *testing.T, candidates ...model.Candidate) *snapshot.Store {
	t.Helper()
	snap := snapshot.New(snapshot.NewFilePersister(filepath.Join(t.TempDir(), "candidates.json")))
	snap.Merge(candidates)
	return snap
}

func testCandidate(id, name, email string, updated time.Time) model.Candidate {
	return model.Candidate{
		ID:        id,
		Name:      name,
		Emails:    []string{email},
		CreatedAt: updated.Add(-time.Hour),
		UpdatedAt: updated,
	}
}

func TestFormatRunSummary(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := &model.RunSummary{
		RunID:       "run-1",
		Status:      model.RunStatusPartial,
		StartedAt:   start,
		CompletedAt: start.Add(1500 * time.Millisecond),
		Merge:       &model.MergeSummary{Fetched: 10, New: 2, Updated: 1, Preserved: 7, Total: 40},
		Enrich:      &model.EnrichSummary{Pending: 3, Processed: 3, Enriched: 1, NoProfileFound: 1, Failed: 1},
		Reconcile:   &model.ReconcileSummary{Inserted: 2, DuplicateSkipped: 5, Failed: 1, ExistingRows: 12},
		Error:       "",
	}

	var buf bytes.Buffer
	formatRunSummary(&buf, s)
	out := buf.String()

	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "partial")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "new 2, updated 1, preserved 7")
	assert.Contains(t, out, "1 of 3 processed")
	assert.Contains(t, out, "Inserted:")
	assert.Contains(t, out, "duplicates 5")
	assert.NotContains(t, out, "Error:")
}

func TestFormatRunSummary_DryRunAndError(t *testing.T) {
	s := &model.RunSummary{
		RunID:     "run-2",
		Status:    model.RunStatusFailed,
		Reconcile: &model.ReconcileSummary{Inserted: 4, DryRun: true},
		Error:     "destination unavailable",
	}

	var buf bytes.Buffer
	formatRunSummary(&buf, s)
	out := buf.String()

	assert.Contains(t, out, "Would insert:")
	assert.Contains(t, out, "destination unavailable")
	assert.NotContains(t, out, "Fetched:")
}

func TestFormatPreview(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	snap := testSnapshot(t,
		testCandidate("c1", "Ada Lovelace", "ada@example.com", now),
		testCandidate("c2", "Grace Hopper", "grace@example.com", now),
		testCandidate("c3", "Alan Turing", "alan@example.com", now),
		testCandidate("c4", "Edsger Dijkstra", "edsger@example.com", now),
	)

	var buf bytes.Buffer
	formatPreview(&buf, "New candidates", []string{"c1", "c2", "c3", "c4"}, snap)
	out := buf.String()

	assert.Contains(t, out, "New candidates (4):")
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "alan@example.com")
	assert.NotContains(t, out, "Dijkstra")
	assert.Contains(t, out, "... and 1 more")
}

func TestFormatPreview_NoIDs(t *testing.T) {
	var buf bytes.Buffer
	formatPreview(&buf, "Updated candidates", nil, nil)
	assert.Empty(t, buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]int{"inserted": 2}))
	assert.JSONEq(t, `{"inserted":2}`, buf.String())
	assert.Contains(t, buf.String(), "\n  ")
}
