package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/talent-sync/internal/config"
)

var reconcileDryRun bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Append snapshot candidates missing from the destination",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initSyncEnv(ctx, config.ModeReconcile, envOptions{DryRun: reconcileDryRun})
		if err != nil {
			return err
		}
		defer env.Close()

		summary, runErr := env.Runner.Reconcile(ctx)
		if summary != nil {
			formatRunSummary(os.Stdout, summary)
		}
		return runErr
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "report what would be appended without writing")
	rootCmd.AddCommand(reconcileCmd)
}
