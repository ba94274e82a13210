package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rhermens/s3-dedupe/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "s3-dedupe",
	Short: "Deduplicate JSON records collected from S3 and other document stores",
	Long: "Lists JSON documents under an s3://, file://, ftp:// or http(s):// location, merges their records, " +
		"keeps the last record for every identifier value, optionally sorts the result, and writes it to stdout.",
	SilenceUsage: true,
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
