package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sells-group/talent-sync/internal/model"
	"github.com/sells-group/talent-sync/internal/snapshot"
)

// previewLimit is how many new/updated candidates fetch prints.
const previewLimit = 3

// formatRunSummary writes a human-readable run summary to out.
func formatRunSummary(out io.Writer, s *model.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", s.RunID)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", s.Status)
	_, _ = fmt.Fprintf(w, "Duration:\t%s\n", s.Duration().Round(time.Millisecond))
	if s.Merge != nil {
		m := s.Merge
		_, _ = fmt.Fprintf(w, "Fetched:\t%d (new %d, updated %d, preserved %d, malformed %d)\n",
			m.Fetched, m.New, m.Updated, m.Preserved, m.Malformed)
		_, _ = fmt.Fprintf(w, "Snapshot total:\t%d\n", m.Total)
	}
	if s.Enrich != nil {
		e := s.Enrich
		_, _ = fmt.Fprintf(w, "Enriched:\t%d of %d processed (no profile %d, failed %d, pending before %d)\n",
			e.Enriched, e.Processed, e.NoProfileFound, e.Failed, e.Pending)
	}
	if s.Reconcile != nil {
		r := s.Reconcile
		label := "Inserted:"
		if r.DryRun {
			label = "Would insert:"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d (duplicates %d, pending %d, no email %d, failed %d, existing rows %d)\n",
			label, r.Inserted, r.DuplicateSkipped, r.SkippedPending, r.SkippedNoEmail, r.Failed, r.ExistingRows)
	}
	if s.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:\t%s\n", s.Error)
	}
	_ = w.Flush()
}

// formatPreview writes up to previewLimit candidates from ids.
func formatPreview(out io.Writer, label string, ids []string, snap *snapshot.Store) {
	if len(ids) == 0 {
		return
	}
	_, _ = fmt.Fprintf(out, "\n%s (%d):\n", label, len(ids))
	for i, id := range ids {
		if i == previewLimit {
			_, _ = fmt.Fprintf(out, "  ... and %d more\n", len(ids)-previewLimit)
			break
		}
		c, ok := snap.Get(id)
		if !ok {
			continue
		}
		email := ""
		if len(c.Emails) > 0 {
			email = c.Emails[0]
		}
		_, _ = fmt.Fprintf(out, "  %s  %s  %s\n", c.ID, c.Name, email)
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
