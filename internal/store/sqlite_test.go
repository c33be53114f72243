package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLite_InvalidPath(t *testing.T) {
	_, err := NewSQLite(filepath.Join(t.TempDir(), "missing", "dir", "runs.db"))
	require.Error(t, err)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Migrate(context.Background()))
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	run, err := s.CreateRun(ctx, "sync", "posting-1")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := NewSQLite(dbPath)
	require.NoError(t, err)
	defer s2.Close() //nolint:errcheck

	got, err := s2.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "sync", got.Command)
}

func TestSQLite_StageRequiresRun(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.CreateStage(context.Background(), "no-such-run", "fetch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert stage")
}

func TestSQLite_ClosedDatabase(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.CreateRun(context.Background(), "sync", "")
	require.Error(t, err)
	_, err = s.ListRuns(context.Background(), RunFilter{})
	require.Error(t, err)
}
