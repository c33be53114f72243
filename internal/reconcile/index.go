package reconcile

import (
	"github.com/sells-group/talent-sync/internal/model"
	"github.com/sells-group/talent-sync/internal/profile"
)

// hit is an index entry pointing back at the row that produced a key.
type hit struct {
	rowNumber   int
	candidateID string
	batch       bool
}

// Index answers "is this person already in the destination" over three
// independent keys. A row matches when any key matches.
type Index struct {
	emails   map[string]hit
	names    map[string]hit
	profiles map[string]hit
	size     int
}

// NewIndex builds an index over rows read from the destination.
func NewIndex(rows []model.DestinationRow) *Index {
	ix := &Index{
		emails:   make(map[string]hit),
		names:    make(map[string]hit),
		profiles: make(map[string]hit),
	}
	for i, r := range rows {
		n := r.RowNumber
		if n == 0 {
			n = i + 1
		}
		ix.add(r, hit{rowNumber: n, candidateID: r.CandidateID})
	}
	return ix
}

// Len returns how many rows have been added.
func (ix *Index) Len() int {
	return ix.size
}

// Add records a row accepted during the current run.
func (ix *Index) Add(r model.DestinationRow) {
	ix.add(r, hit{candidateID: r.CandidateID, batch: true})
}

func (ix *Index) add(r model.DestinationRow, h hit) {
	ix.size++
	for _, k := range model.EmailKeys(r.Emails) {
		if _, ok := ix.emails[k]; !ok {
			ix.emails[k] = h
		}
	}
	if k := model.NormalizeKey(r.FullName()); k != "" {
		if _, ok := ix.names[k]; !ok {
			ix.names[k] = h
		}
	}
	if k := profileKey(r.ProfileURL); k != "" {
		if _, ok := ix.profiles[k]; !ok {
			ix.profiles[k] = h
		}
	}
}

// Match reports the first signal on which r duplicates an indexed row,
// checking email, then name, then profile URL.
func (ix *Index) Match(r model.DestinationRow) (model.DuplicateMatch, bool) {
	for _, k := range model.EmailKeys(r.Emails) {
		if h, ok := ix.emails[k]; ok {
			return h.match(r.CandidateID, model.MatchEmail, k), true
		}
	}
	if k := model.NormalizeKey(r.FullName()); k != "" {
		if h, ok := ix.names[k]; ok {
			return h.match(r.CandidateID, model.MatchName, k), true
		}
	}
	if k := profileKey(r.ProfileURL); k != "" {
		if h, ok := ix.profiles[k]; ok {
			return h.match(r.CandidateID, model.MatchProfileURL, r.ProfileURL), true
		}
	}
	return model.DuplicateMatch{}, false
}

func (h hit) match(candidateID string, reason model.MatchReason, value string) model.DuplicateMatch {
	m := model.DuplicateMatch{
		CandidateID: candidateID,
		Reason:      reason,
		Value:       value,
		RowNumber:   h.rowNumber,
	}
	if h.batch {
		m.Reason = model.MatchBatch
		m.RowNumber = 0
	}
	return m
}

// profileKey compares LinkedIn URLs by handle and anything else by its
// normalized text.
func profileKey(u string) string {
	if u == "" {
		return ""
	}
	if h := profile.Username(u); h != "" {
		return "in:" + h
	}
	if k := model.NormalizeKey(u); k != "" {
		return "url:" + k
	}
	return ""
}
