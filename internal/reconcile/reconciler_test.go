package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/talent-sync/internal/model"
	"github.com/sells-group/talent-sync/internal/resilience"
)

var syncedAt = time.Date(2025, 4, 7, 10, 0, 0, 0, time.UTC)

// memDest is an in-memory Destination. appendErrs are returned by successive
// Append calls; when landOnErr is set the rows are stored before the error is
// returned, simulating a lost response.
type memDest struct {
	rows       []model.DestinationRow
	reads      int
	appends    [][]model.DestinationRow
	appendErrs []error
	landOnErr  bool
	rejectID   string
	readErr    error
}

func (d *memDest) ReadExisting(context.Context) ([]model.DestinationRow, error) {
	d.reads++
	if d.readErr != nil {
		return nil, d.readErr
	}
	out := make([]model.DestinationRow, len(d.rows))
	copy(out, d.rows)
	return out, nil
}

func (d *memDest) Append(_ context.Context, rows []model.DestinationRow) (AppendResult, error) {
	d.appends = append(d.appends, rows)
	if len(d.appendErrs) > 0 {
		err := d.appendErrs[0]
		d.appendErrs = d.appendErrs[1:]
		if err != nil {
			if d.landOnErr {
				d.rows = append(d.rows, rows...)
			}
			return AppendResult{}, err
		}
	}
	var res AppendResult
	for _, r := range rows {
		if r.CandidateID == d.rejectID {
			res.Failed = append(res.Failed, model.RowFailure{CandidateID: r.CandidateID, Error: "invalid row"})
			continue
		}
		d.rows = append(d.rows, r)
		res.Written = append(res.Written, r.CandidateID)
	}
	return res, nil
}

func policy(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts: attempts,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

func enriched(id, name string, emails ...string) model.Candidate {
	return model.Candidate{ID: id, Name: name, Emails: emails, EnrichmentStatus: model.EnrichmentEnriched}
}

func newReconciler(d Destination, attempts int, cfg Config) *Reconciler {
	return New(d, policy(attempts), cfg, WithClock(func() time.Time { return syncedAt }))
}

func TestRun_EmailDuplicateIsNotInserted(t *testing.T) {
	d := &memDest{rows: []model.DestinationRow{{FirstName: "Existing", Emails: []string{"a@x.com"}}}}

	sum, err := newReconciler(d, 1, Config{RequireEmail: true}).Run(context.Background(), []model.Candidate{
		enriched("c1", "New Person", "A@X.com", "b@x.com"),
	})
	require.NoError(t, err)

	assert.Zero(t, sum.Inserted)
	assert.Equal(t, 1, sum.DuplicateSkipped)
	require.Len(t, sum.Duplicates, 1)
	assert.Equal(t, model.MatchEmail, sum.Duplicates[0].Reason)
	assert.Empty(t, d.appends)
	assert.Len(t, d.rows, 1)
}

func TestRun_SelectsAndAppendsOnlyNew(t *testing.T) {
	d := &memDest{rows: []model.DestinationRow{
		{FirstName: "Ada", LastName: "Lovelace", Emails: []string{"ada@x.com"}},
	}}
	pending := model.Candidate{ID: "p", Name: "Pending Person", Emails: []string{"p@x.com"}, EnrichmentStatus: model.EnrichmentPending}
	noEmail := enriched("n", "No Email")
	byName := enriched("dupname", "ada  LOVELACE", "other@x.com")
	fresh := enriched("f", "Fresh Face", "fresh@x.com")
	fresh.ProfileURL = "https://linkedin.com/in/fresh"
	fresh.Location = "Austin, TX"
	again := enriched("f2", "Fresh Twin", "FRESH@x.com")
	noProfile := model.Candidate{ID: "np", Name: "No Profile", Emails: []string{"np@x.com"}, EnrichmentStatus: model.EnrichmentNoProfileFound}

	sum, err := newReconciler(d, 1, Config{RequireEmail: true}).Run(context.Background(),
		[]model.Candidate{pending, noEmail, byName, fresh, again, noProfile})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.ExistingRows)
	assert.Equal(t, 6, sum.Considered)
	assert.Equal(t, 1, sum.SkippedPending)
	assert.Equal(t, 1, sum.SkippedNoEmail)
	assert.Equal(t, 2, sum.DuplicateSkipped)
	assert.Equal(t, 2, sum.Inserted)
	assert.Equal(t, []string{"f", "np"}, sum.InsertedIDs)

	reasons := map[string]model.MatchReason{}
	for _, m := range sum.Duplicates {
		reasons[m.CandidateID] = m.Reason
	}
	assert.Equal(t, model.MatchName, reasons["dupname"])
	assert.Equal(t, model.MatchBatch, reasons["f2"])

	// Existing rows are untouched and the new ones follow them.
	require.Len(t, d.rows, 3)
	assert.Equal(t, "Ada", d.rows[0].FirstName)
	got := d.rows[1]
	assert.Equal(t, "Fresh", got.FirstName)
	assert.Equal(t, "Face", got.LastName)
	assert.Equal(t, "https://linkedin.com/in/fresh", got.ProfileURL)
	assert.Equal(t, model.SyncStatusNew, got.SyncStatus)
	assert.Equal(t, syncedAt, got.LastSyncedAt)
	require.Len(t, d.appends, 1, "filtering finishes before the first write")
}

func TestClassify_IndexCoversExistingAndAccepted(t *testing.T) {
	d := &memDest{rows: []model.DestinationRow{
		{FirstName: "Ada", LastName: "Lovelace", Emails: []string{"ada@x.com"}},
		{FirstName: "Alan", LastName: "Turing", Emails: []string{"alan@x.com"}},
	}}
	r := newReconciler(d, 1, Config{RequireEmail: true})

	plan, err := r.Classify(context.Background(), []model.Candidate{
		enriched("c1", "Grace Hopper", "grace@x.com"),
		enriched("c2", "Ada Lovelace", "other@x.com"),
		enriched("c3", "Edsger Dijkstra", "edsger@x.com"),
		{ID: "c4", Name: "Pending Person", Emails: []string{"p@x.com"}},
	})
	require.NoError(t, err)

	assert.Len(t, plan.Rows, 2)
	assert.Equal(t, 4, plan.Indexed)
	assert.Empty(t, d.appends)
}

func TestRun_NoEmailAllowedWhenNotRequired(t *testing.T) {
	d := &memDest{}
	sum, err := newReconciler(d, 1, Config{RequireEmail: false}).Run(context.Background(),
		[]model.Candidate{enriched("n", "No Email")})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.Zero(t, sum.SkippedNoEmail)
}

func TestRun_Chunks(t *testing.T) {
	d := &memDest{}
	var cs []model.Candidate
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		cs = append(cs, enriched(id, "Person "+id, id+"@x.com"))
	}
	sum, err := newReconciler(d, 1, Config{ChunkSize: 2}).Run(context.Background(), cs)
	require.NoError(t, err)

	assert.Equal(t, 5, sum.Inserted)
	require.Len(t, d.appends, 3)
	assert.Len(t, d.appends[0], 2)
	assert.Len(t, d.appends[2], 1)
}

func TestRun_RetryDoesNotResubmitLandedRows(t *testing.T) {
	d := &memDest{
		appendErrs: []error{resilience.NewTransientError(errors.New("gateway timeout"), 504)},
		landOnErr:  true,
	}
	sum, err := newReconciler(d, 3, Config{}).Run(context.Background(), []model.Candidate{
		enriched("a", "Ann One", "a@x.com"),
		enriched("b", "Bob Two", "b@x.com"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Inserted)
	assert.ElementsMatch(t, []string{"a", "b"}, sum.InsertedIDs)
	assert.Len(t, d.appends, 1, "second attempt found both rows present")
	assert.Len(t, d.rows, 2)
	assert.Equal(t, 2, d.reads)
}

func TestRun_RetryResubmitsWhenNothingLanded(t *testing.T) {
	d := &memDest{appendErrs: []error{resilience.NewTransientError(errors.New("rate limited"), 429)}}
	sum, err := newReconciler(d, 3, Config{}).Run(context.Background(), []model.Candidate{
		enriched("a", "Ann One", "a@x.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.Len(t, d.appends, 2)
	assert.Len(t, d.rows, 1)
}

func TestRun_ChunkFailureContinues(t *testing.T) {
	d := &memDest{appendErrs: []error{errors.New("invalid range"), nil}}
	sum, err := newReconciler(d, 3, Config{ChunkSize: 1}).Run(context.Background(), []model.Candidate{
		enriched("a", "Ann One", "a@x.com"),
		enriched("b", "Bob Two", "b@x.com"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, []string{"b"}, sum.InsertedIDs)
	require.Equal(t, 1, sum.Failed)
	assert.Equal(t, "a", sum.Failures[0].CandidateID)
	assert.Contains(t, sum.Failures[0].Error, "invalid range")
}

func TestRun_RowRejection(t *testing.T) {
	d := &memDest{rejectID: "b"}
	sum, err := newReconciler(d, 1, Config{}).Run(context.Background(), []model.Candidate{
		enriched("a", "Ann One", "a@x.com"),
		enriched("b", "Bob Two", "b@x.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, []model.RowFailure{{CandidateID: "b", Error: "invalid row"}}, sum.Failures)
}

func TestRun_AuthAborts(t *testing.T) {
	d := &memDest{appendErrs: []error{&resilience.AuthError{Service: "sheets", StatusCode: 403}}}
	sum, err := newReconciler(d, 3, Config{ChunkSize: 1}).Run(context.Background(), []model.Candidate{
		enriched("a", "Ann One", "a@x.com"),
		enriched("b", "Bob Two", "b@x.com"),
	})
	require.Error(t, err)
	assert.True(t, resilience.IsAuth(err))
	assert.Zero(t, sum.Inserted)
	assert.Len(t, d.appends, 1)
}

func TestRun_UnreadableDestination(t *testing.T) {
	d := &memDest{readErr: errors.New("spreadsheet not found")}
	_, err := newReconciler(d, 3, Config{}).Run(context.Background(), []model.Candidate{enriched("a", "A", "a@x.com")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconcile: read destination")
	assert.Equal(t, 1, d.reads)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	d := &memDest{}
	sum, err := newReconciler(d, 1, Config{DryRun: true}).Run(context.Background(), []model.Candidate{
		enriched("a", "Ann One", "a@x.com"),
	})
	require.NoError(t, err)
	assert.True(t, sum.DryRun)
	assert.Equal(t, []string{"a"}, sum.InsertedIDs)
	assert.Empty(t, d.appends)
}

func TestRun_RepeatedRunIsNoop(t *testing.T) {
	d := &memDest{}
	cs := []model.Candidate{enriched("a", "Ann One", "a@x.com"), enriched("b", "Bob Two", "b@x.com")}
	r := newReconciler(d, 1, Config{})

	_, err := r.Run(context.Background(), cs)
	require.NoError(t, err)
	sum, err := r.Run(context.Background(), cs)
	require.NoError(t, err)

	assert.Zero(t, sum.Inserted)
	assert.Equal(t, 2, sum.DuplicateSkipped)
	assert.Len(t, d.rows, 2)
}
