package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDestinationRow(t *testing.T) {
	at := time.Date(2026, 4, 7, 12, 0, 0, 0, time.UTC)
	c := Candidate{
		ID:         "c1",
		Name:       "Jane Q Doe",
		Emails:     []string{"jane@x.com", "JANE@x.com", "j@y.com"},
		Location:   "Austin, TX",
		ProfileURL: "https://www.linkedin.com/in/janedoe",
	}

	row := NewDestinationRow(c, SyncStatusNew, at)
	assert.Equal(t, "c1", row.CandidateID)
	assert.Equal(t, "Jane", row.FirstName)
	assert.Equal(t, "Q Doe", row.LastName)
	assert.Equal(t, []string{"jane@x.com", "j@y.com"}, row.Emails)
	assert.Equal(t, "Austin, TX", row.Location)
	assert.Equal(t, c.ProfileURL, row.ProfileURL)
	assert.Equal(t, SyncStatusNew, row.SyncStatus)
	assert.Equal(t, at, row.LastSyncedAt)
	assert.Equal(t, "Jane Q Doe", row.FullName())
}

func TestFormatSheetDate(t *testing.T) {
	assert.Equal(t, "4/7/26", FormatSheetDate(time.Date(2026, 4, 7, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "12/31/05", FormatSheetDate(time.Date(2005, 12, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "", FormatSheetDate(time.Time{}))
}

func TestParseSheetDate(t *testing.T) {
	for _, s := range []string{"4/7/26", "4/7/2026", "2026-04-07", "2026-04-07T00:00:00Z"} {
		got, ok := ParseSheetDate(s)
		require.True(t, ok, s)
		assert.Equal(t, 2026, got.Year(), s)
		assert.Equal(t, time.April, got.Month(), s)
		assert.Equal(t, 7, got.Day(), s)
	}

	_, ok := ParseSheetDate("not a date")
	assert.False(t, ok)
}
