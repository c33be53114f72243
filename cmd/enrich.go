package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/talent-sync/internal/config"
)

var enrichLimit int

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Look up profile URLs for pending snapshot records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initSyncEnv(ctx, config.ModeEnrich, envOptions{EnrichLimit: enrichLimit})
		if err != nil {
			return err
		}
		defer env.Close()

		summary, runErr := env.Runner.Enrich(ctx)
		if summary != nil {
			formatRunSummary(os.Stdout, summary)
		}
		return runErr
	},
}

func init() {
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "max pending records to process (0 = all)")
	rootCmd.AddCommand(enrichCmd)
}
