package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marketbrief/premarket-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "premarket-cli",
	Short: "Pre-market research brief generator",
	Long:  "Scrapes quotes, AI analysis, news, and research knowledge for a ticker watchlist through isolated browser sessions, tolerating partial failure, and folds the results into a report snapshot.",
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
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
