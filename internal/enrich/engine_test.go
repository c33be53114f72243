package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/talent-sync/internal/model"
	"github.com/sells-group/talent-sync/internal/resilience"
	"github.com/sells-group/talent-sync/internal/snapshot"
	"github.com/sells-group/talent-sync/pkg/lever"
	"github.com/sells-group/talent-sync/pkg/lever/mocks"
)

var (
	updated = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now     = time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
)

type memPersister struct {
	mu      sync.Mutex
	records []model.Candidate
	saves   int
}

func (m *memPersister) Load(context.Context) ([]model.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records, nil
}

func (m *memPersister) Save(_ context.Context, records []model.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.records = records
	return nil
}

func (m *memPersister) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func noSleep(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts: attempts,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

func seed(t *testing.T, ids ...string) (*snapshot.Store, *memPersister) {
	t.Helper()
	p := &memPersister{}
	s := snapshot.New(p)
	var batch []model.Candidate
	for _, id := range ids {
		batch = append(batch, model.Candidate{
			ID:        id,
			Name:      "Person " + id,
			Emails:    []string{id + "@list.example"},
			UpdatedAt: updated,
		})
	}
	sum := s.Merge(batch)
	require.Equal(t, len(ids), sum.New)
	return s, p
}

func fixed() func() time.Time { return func() time.Time { return now } }

func TestRun_NoPendingMakesNoCalls(t *testing.T) {
	s, p := seed(t)
	mc := new(mocks.MockClient)

	sum, err := NewEngine(mc, s, noSleep(3), Config{}).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, sum.Pending)
	assert.Zero(t, sum.Processed)
	mc.AssertNotCalled(t, "GetOpportunity", mock.Anything, mock.Anything)
	assert.Zero(t, p.saveCount())
}

func TestRun_AppliesOutcomes(t *testing.T) {
	s, p := seed(t, "a", "b", "c", "d")
	mc := new(mocks.MockClient)

	mc.On("GetOpportunity", mock.Anything, "a").Return(&lever.Opportunity{
		ID:     "a",
		Emails: []string{"a@list.example", "a.alt@work.example"},
		Links:  lever.Links{"https://github.com/a", "https://www.linkedin.com/in/Person-A/"},
	}, nil).Once()
	mc.On("GetOpportunity", mock.Anything, "b").Return(&lever.Opportunity{
		ID:       "b",
		Headline: "Engineer, see linkedin.com/in/person-b.",
	}, nil).Once()
	mc.On("GetOpportunity", mock.Anything, "c").Return(&lever.Opportunity{
		ID:    "c",
		Links: lever.Links{"https://portfolio.example/c"},
	}, nil).Once()
	mc.On("GetOpportunity", mock.Anything, "d").
		Return(nil, resilience.NewTransientError(errors.New("bad gateway"), 502)).Twice()

	e := NewEngine(mc, s, noSleep(2), Config{Concurrency: 2}, WithClock(fixed()))
	sum, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Pending)
	assert.Equal(t, 4, sum.Processed)
	assert.Equal(t, 2, sum.Enriched)
	assert.Equal(t, 1, sum.NoProfileFound)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, []string{"d"}, sum.FailedIDs)
	assert.InDelta(t, 0.25, sum.FailureRatio(), 1e-9)

	a, _ := s.Get("a")
	assert.Equal(t, model.EnrichmentEnriched, a.EnrichmentStatus)
	assert.Equal(t, "https://www.linkedin.com/in/Person-A", a.ProfileURL)
	assert.Equal(t, []string{"a@list.example", "a.alt@work.example"}, a.Emails)
	require.NotNil(t, a.EnrichedAt)
	assert.Equal(t, now, *a.EnrichedAt)
	require.NotNil(t, a.EnrichedUpdatedAt)
	assert.Equal(t, updated, *a.EnrichedUpdatedAt)
	assert.Equal(t, 1, a.EnrichAttempts)

	b, _ := s.Get("b")
	assert.Equal(t, model.EnrichmentEnriched, b.EnrichmentStatus)
	assert.Equal(t, "https://linkedin.com/in/person-b", b.ProfileURL)

	c, _ := s.Get("c")
	assert.Equal(t, model.EnrichmentNoProfileFound, c.EnrichmentStatus)
	assert.Empty(t, c.ProfileURL)
	assert.NotNil(t, c.EnrichedAt)

	d, _ := s.Get("d")
	assert.True(t, d.IsPending())
	assert.Equal(t, 1, d.EnrichAttempts)
	assert.Contains(t, d.LastEnrichError, "bad gateway")
	assert.Nil(t, d.EnrichedAt)

	assert.Len(t, s.Pending(), 1)
	assert.GreaterOrEqual(t, p.saveCount(), 1)
	mc.AssertExpectations(t)
}

func TestRun_SecondPassOnlyRetriesFailures(t *testing.T) {
	s, _ := seed(t, "a", "b")
	mc := new(mocks.MockClient)
	mc.On("GetOpportunity", mock.Anything, "a").Return(&lever.Opportunity{ID: "a"}, nil).Once()
	mc.On("GetOpportunity", mock.Anything, "b").
		Return(nil, resilience.NewTransientError(errors.New("timeout"), 0)).Once()

	e := NewEngine(mc, s, noSleep(1), Config{Concurrency: 1})
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	mc.On("GetOpportunity", mock.Anything, "b").Return(&lever.Opportunity{ID: "b"}, nil).Once()
	sum, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Pending)
	assert.Equal(t, 1, sum.NoProfileFound)
	b, _ := s.Get("b")
	assert.Equal(t, 2, b.EnrichAttempts)
	assert.Empty(t, b.LastEnrichError)
	mc.AssertNumberOfCalls(t, "GetOpportunity", 3)
}

func TestRun_AuthFailureAbortsAndSaves(t *testing.T) {
	s, p := seed(t, "a", "b", "c")
	mc := new(mocks.MockClient)
	mc.On("GetOpportunity", mock.Anything, "a").
		Return(&lever.Opportunity{ID: "a", Links: lever.Links{"linkedin.com/in/aa"}}, nil).Once()
	mc.On("GetOpportunity", mock.Anything, "b").
		Return(nil, &resilience.AuthError{Service: "lever", StatusCode: 401}).Once()

	e := NewEngine(mc, s, noSleep(3), Config{Concurrency: 1}, WithClock(fixed()))
	sum, err := e.Run(context.Background())
	require.Error(t, err)
	assert.True(t, resilience.IsAuth(err))

	assert.Equal(t, 1, sum.Enriched)
	a, _ := s.Get("a")
	assert.Equal(t, model.EnrichmentEnriched, a.EnrichmentStatus)
	b, _ := s.Get("b")
	assert.True(t, b.IsPending())
	assert.Zero(t, b.EnrichAttempts)

	mc.AssertNotCalled(t, "GetOpportunity", mock.Anything, "c")
	mc.AssertNumberOfCalls(t, "GetOpportunity", 2)
	require.Equal(t, 1, p.saveCount())
	assert.Len(t, p.records, 3)
}

func TestRun_CheckpointsAndLimit(t *testing.T) {
	s, p := seed(t, "a", "b", "c", "d", "e")
	mc := new(mocks.MockClient)
	mc.On("GetOpportunity", mock.Anything, mock.Anything).Return(&lever.Opportunity{}, nil)

	e := NewEngine(mc, s, noSleep(1), Config{Concurrency: 1, CheckpointEvery: 2, Limit: 4})
	sum, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Pending)
	assert.Equal(t, 4, sum.Processed)
	// Two checkpoints plus the final save.
	assert.Equal(t, 3, p.saveCount())
	assert.Len(t, s.Pending(), 1)
}

func TestRun_CancelledContext(t *testing.T) {
	s, p := seed(t, "a", "b")
	mc := new(mocks.MockClient)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := NewEngine(mc, s, noSleep(1), Config{}).Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, sum.Processed)
	assert.Len(t, s.Pending(), 2)
	assert.Equal(t, 1, p.saveCount())
}
