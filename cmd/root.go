package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/talent-sync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "talent-sync",
	Short: "Sync ATS candidates into a recruiting spreadsheet",
	Long:  "Fetches candidates for a Lever posting, keeps a local snapshot, enriches new records with LinkedIn profile URLs and appends unseen candidates to a spreadsheet, workbook or Notion database.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
