package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/talent-sync/internal/config"
)

var (
	syncDryRun bool
	syncJSON   bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch, enrich and reconcile in one run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initSyncEnv(ctx, config.ModeSync, envOptions{DryRun: syncDryRun})
		if err != nil {
			return err
		}
		defer env.Close()

		summary, runErr := env.Runner.Sync(ctx)
		if summary != nil {
			if syncJSON {
				_ = writeJSON(os.Stdout, summary)
			} else {
				formatRunSummary(os.Stdout, summary)
			}
		}
		return runErr
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "classify candidates without writing to the destination")
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "print the run summary as JSON")
	rootCmd.AddCommand(syncCmd)
}
