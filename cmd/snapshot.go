package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/talent-sync/internal/config"
	"github.com/sells-group/talent-sync/internal/model"
	"github.com/sells-group/talent-sync/internal/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect the local candidate snapshot",
}

// openSnapshotForRead validates config and opens the snapshot.
func openSnapshotForRead(cmd *cobra.Command) (*snapshot.Store, func(), error) {
	if err := cfg.Validate(config.ModeSnapshot); err != nil {
		return nil, nil, err
	}
	snap, closeFn, err := initSnapshot(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return snap, func() {
		if closeFn != nil {
			_ = closeFn()
		}
	}, nil
}

// -- snapshot stats --

var snapshotStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count snapshot records by enrichment status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		snap, done, err := openSnapshotForRead(cmd)
		if err != nil {
			return err
		}
		defer done()

		formatSnapshotStats(os.Stdout, snap.Stats())
		return nil
	},
}

// -- snapshot list --

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshot records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		snap, done, err := openSnapshotForRead(cmd)
		if err != nil {
			return err
		}
		defer done()

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		st := model.EnrichmentStatus(status)
		if st != "" && !st.Valid() {
			return eris.Errorf("snapshot list: unknown status %q", status)
		}

		records := snap.List(snapshot.Filter{Status: st, Limit: limit, Offset: offset})
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No records found.")
			return nil
		}
		formatCandidateList(os.Stdout, records)
		return nil
	},
}

// -- snapshot show --

var snapshotShowCmd = &cobra.Command{
	Use:   "show <candidate-id>",
	Short: "Show one snapshot record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, done, err := openSnapshotForRead(cmd)
		if err != nil {
			return err
		}
		defer done()

		c, ok := snap.Get(args[0])
		if !ok {
			return eris.Errorf("snapshot show: candidate %s not found", args[0])
		}
		return writeJSON(os.Stdout, c)
	},
}

func init() {
	snapshotListCmd.Flags().String("status", "", "filter by enrichment status (pending, enriched, no_profile_found)")
	snapshotListCmd.Flags().Int("limit", 50, "max number of records to display")
	snapshotListCmd.Flags().Int("offset", 0, "number of records to skip")

	snapshotCmd.AddCommand(snapshotStatsCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func formatSnapshotStats(out io.Writer, s snapshot.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Pending:\t%d\n", s.Pending)
	_, _ = fmt.Fprintf(w, "Enriched:\t%d\n", s.Enriched)
	_, _ = fmt.Fprintf(w, "No profile found:\t%d\n", s.NoProfileFound)
	_, _ = fmt.Fprintf(w, "With profile URL:\t%d\n", s.WithProfileURL)
	_, _ = fmt.Fprintf(w, "Archived:\t%d\n", s.Archived)
	if !s.LastSeenAt.IsZero() {
		_, _ = fmt.Fprintf(w, "Last seen:\t%s\n", s.LastSeenAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

func formatCandidateList(out io.Writer, records []model.Candidate) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tEMAIL\tSTATUS\tPROFILE\tUPDATED")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t------\t-------\t-------")
	for _, c := range records {
		email := ""
		if len(c.Emails) > 0 {
			email = c.Emails[0]
			if len(c.Emails) > 1 {
				email += fmt.Sprintf(" (+%d)", len(c.Emails)-1)
			}
		}
		status := string(c.EnrichmentStatus)
		if c.IsPending() {
			status = string(model.EnrichmentPending)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, truncate(c.Name, 30), email, status, c.ProfileURL,
			c.UpdatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
