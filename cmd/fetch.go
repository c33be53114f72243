package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/talent-sync/internal/config"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the posting's candidates and merge them into the snapshot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initSyncEnv(ctx, config.ModeFetch, envOptions{})
		if err != nil {
			return err
		}
		defer env.Close()

		summary, runErr := env.Runner.Fetch(ctx)
		if summary != nil {
			formatRunSummary(os.Stdout, summary)
			if summary.Merge != nil {
				formatPreview(os.Stdout, "New", summary.Merge.NewIDs, env.Snapshot)
				formatPreview(os.Stdout, "Updated", summary.Merge.UpdatedIDs, env.Snapshot)
			}
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
