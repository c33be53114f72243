package model

import (
	"fmt"
	"time"
)

// SyncStatus is written to the destination alongside each appended row.
type SyncStatus string

const (
	SyncStatusNew    SyncStatus = "new"
	SyncStatusSynced SyncStatus = "synced"
)

// DestinationRow is a candidate as materialized in the destination store. Rows
// read back from the destination may have any subset of fields populated.
type DestinationRow struct {
	CandidateID  string     `json:"candidate_id,omitempty"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Emails       []string   `json:"emails"`
	Location     string     `json:"location,omitempty"`
	ProfileURL   string     `json:"profile_url,omitempty"`
	SyncStatus   SyncStatus `json:"sync_status,omitempty"`
	LastSyncedAt time.Time  `json:"last_synced_at"`

	// RowNumber is the 1-based position in the destination, 0 when unknown.
	RowNumber int `json:"row_number,omitempty"`
}

// FullName joins the name columns.
func (r DestinationRow) FullName() string {
	return JoinName(r.FirstName, r.LastName)
}

// NewDestinationRow projects a candidate into a row stamped at syncedAt.
func NewDestinationRow(c Candidate, status SyncStatus, syncedAt time.Time) DestinationRow {
	first, last := SplitName(c.Name)
	return DestinationRow{
		CandidateID:  c.ID,
		FirstName:    first,
		LastName:     last,
		Emails:       MergeEmails(nil, c.Emails...),
		Location:     c.Location,
		ProfileURL:   c.ProfileURL,
		SyncStatus:   status,
		LastSyncedAt: syncedAt,
	}
}

// FormatSheetDate renders t as M/D/YY, the date format used by the recruiting
// sheet's join-date column.
func FormatSheetDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d/%d/%02d", int(t.Month()), t.Day(), t.Year()%100)
}

// ParseSheetDate parses M/D/YY, falling back to M/D/YYYY and RFC 3339.
func ParseSheetDate(s string) (time.Time, bool) {
	for _, layout := range []string{"1/2/06", "1/2/2006", time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
