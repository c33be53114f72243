package model

import (
	"time"
)

// EnrichmentStatus tracks where a candidate is in the enrichment lifecycle.
type EnrichmentStatus string

const (
	EnrichmentPending        EnrichmentStatus = "pending"
	EnrichmentEnriched       EnrichmentStatus = "enriched"
	EnrichmentNoProfileFound EnrichmentStatus = "no_profile_found"
)

// Valid reports whether s is one of the known statuses.
func (s EnrichmentStatus) Valid() bool {
	switch s {
	case EnrichmentPending, EnrichmentEnriched, EnrichmentNoProfileFound:
		return true
	default:
		return false
	}
}

// Candidate is the canonical record for one upstream candidate. It is created
// on first fetch, merged on later fetches and enriched at most once per change.
type Candidate struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Headline string   `json:"headline,omitempty"`
	Location string   `json:"location,omitempty"`
	Emails   []string `json:"emails"`
	Links    []string `json:"links,omitempty"`
	Tags     []string `json:"tags,omitempty"`

	ProfileURL string `json:"profile_url,omitempty"`

	Stage        string `json:"stage,omitempty"`
	Origin       string `json:"origin,omitempty"`
	Archived     bool   `json:"archived"`
	PostingID    string `json:"posting_id,omitempty"`
	PostingTitle string `json:"posting_title,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	EnrichmentStatus  EnrichmentStatus `json:"enrichment_status"`
	EnrichedAt        *time.Time       `json:"enriched_at,omitempty"`
	EnrichedUpdatedAt *time.Time       `json:"enriched_updated_at,omitempty"`
	EnrichAttempts    int              `json:"enrich_attempts,omitempty"`
	LastEnrichError   string           `json:"last_enrich_error,omitempty"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// Clone returns a deep copy so callers can hand records across goroutines
// without sharing slices.
func (c Candidate) Clone() Candidate {
	out := c
	out.Emails = cloneStrings(c.Emails)
	out.Links = cloneStrings(c.Links)
	out.Tags = cloneStrings(c.Tags)
	if c.EnrichedAt != nil {
		t := *c.EnrichedAt
		out.EnrichedAt = &t
	}
	if c.EnrichedUpdatedAt != nil {
		t := *c.EnrichedUpdatedAt
		out.EnrichedUpdatedAt = &t
	}
	return out
}

// IsPending reports whether the candidate still needs enrichment.
func (c Candidate) IsPending() bool {
	return c.EnrichmentStatus == EnrichmentPending || c.EnrichmentStatus == ""
}

// NeedsReenrichment reports whether updatedAt is newer than the timestamp the
// record was last enriched at. Records never enriched always need it.
func (c Candidate) NeedsReenrichment(updatedAt time.Time) bool {
	if c.EnrichedUpdatedAt == nil {
		return true
	}
	return updatedAt.After(*c.EnrichedUpdatedAt)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
