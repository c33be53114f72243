package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/talent-sync/internal/model"
)

func TestIndex_Match(t *testing.T) {
	ix := NewIndex([]model.DestinationRow{
		{FirstName: "Ada", LastName: "Lovelace", Emails: []string{"a@x.com"}},
		{FirstName: "Grace", LastName: "Hopper", ProfileURL: "https://www.linkedin.com/in/GHopper/"},
		{FirstName: "Alan", LastName: "Turing", ProfileURL: "https://example.com/alan", RowNumber: 9},
	})

	tests := []struct {
		name   string
		row    model.DestinationRow
		reason model.MatchReason
		rowNum int
		dup    bool
	}{
		{
			name:   "email case-insensitive",
			row:    model.DestinationRow{FirstName: "Someone", Emails: []string{"b@x.com", " A@X.COM "}},
			reason: model.MatchEmail, rowNum: 1, dup: true,
		},
		{
			name:   "name whitespace and case",
			row:    model.DestinationRow{FirstName: "ADA", LastName: "  lovelace"},
			reason: model.MatchName, rowNum: 1, dup: true,
		},
		{
			name:   "profile by handle",
			row:    model.DestinationRow{FirstName: "G", ProfileURL: "linkedin.com/in/ghopper"},
			reason: model.MatchProfileURL, rowNum: 2, dup: true,
		},
		{
			name:   "non-linkedin url by text",
			row:    model.DestinationRow{FirstName: "A", ProfileURL: "HTTPS://EXAMPLE.COM/ALAN"},
			reason: model.MatchProfileURL, rowNum: 9, dup: true,
		},
		{
			name: "no signal matches",
			row:  model.DestinationRow{FirstName: "Ada", LastName: "Byron", Emails: []string{"c@x.com"}, ProfileURL: "https://linkedin.com/in/adab"},
		},
		{
			name: "empty row never matches",
			row:  model.DestinationRow{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, dup := ix.Match(tt.row)
			assert.Equal(t, tt.dup, dup)
			if tt.dup {
				assert.Equal(t, tt.reason, m.Reason)
				assert.Equal(t, tt.rowNum, m.RowNumber)
			}
		})
	}
}

func TestIndex_AddMarksBatch(t *testing.T) {
	ix := NewIndex(nil)
	ix.Add(model.DestinationRow{CandidateID: "1", FirstName: "Ann", Emails: []string{"ann@x.com"}})
	assert.Equal(t, 1, ix.Len())

	m, dup := ix.Match(model.DestinationRow{CandidateID: "2", FirstName: "Other", Emails: []string{"ANN@x.com"}})
	assert.True(t, dup)
	assert.Equal(t, model.MatchBatch, m.Reason)
	assert.Equal(t, "2", m.CandidateID)
	assert.Zero(t, m.RowNumber)
}
