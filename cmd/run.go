package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rhermens/s3-dedupe/internal/config"
	"github.com/rhermens/s3-dedupe/internal/fetcher"
	"github.com/rhermens/s3-dedupe/internal/pipeline"
	"github.com/rhermens/s3-dedupe/internal/record"
	"github.com/rhermens/s3-dedupe/internal/resilience"
)

var (
	runPattern          string
	runIdentifier       string
	runSortBy           string
	runFormat           string
	runOutput           string
	runExtrasOutput     string
	runTolerateFailures bool
	runConcurrency      int
)

var runCmd = &cobra.Command{
	Use:   "run <location>",
	Short: "Deduplicate the records of every matching document",
	Long: "Fetches every document under location whose name matches --pattern and prints one record per " +
		"--identifier value. When an identifier occurs more than once the last occurrence wins.\n\n" +
		"Supported locations: s3://bucket/prefix, file:///dir, ftp://host/dir, https://host/doc.json",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyRunFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		format, err := pipeline.ParseFormat(cfg.Output.Format)
		if err != nil {
			return err
		}

		if err := checkOutputs(runOutput, runExtrasOutput); err != nil {
			return err
		}

		if !strings.HasSuffix(runPattern, ".json") {
			return eris.Errorf("pattern %q must end with .json", runPattern)
		}
		pattern, err := fetcher.NewPattern(runPattern)
		if err != nil {
			return err
		}

		src, err := fetcher.Open(ctx, args[0], pattern, sourceOptions(cfg))
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		p := pipeline.New(fetcher.New(fetchOptions(cfg)), st)
		result, err := p.Run(ctx, src, pipeline.Options{
			Pattern:    runPattern,
			Identifier: runIdentifier,
			SortBy:     runSortBy,
		})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		if failed := len(result.Report.Failures); failed > 0 {
			zap.L().Warn("some documents could not be fetched",
				zap.Int("failed", failed),
				zap.Int("listed", result.Report.Listed),
			)
		}

		if err := writeRecords(cmd.OutOrStdout(), runOutput, result.Records, format); err != nil {
			return err
		}
		if runExtrasOutput != "" {
			if err := writeRecords(cmd.OutOrStdout(), runExtrasOutput, result.Extras, format); err != nil {
				return err
			}
		}

		zap.L().Info("dedupe complete",
			zap.String("run_id", result.RunID),
			zap.Int("records", len(result.Records)),
			zap.Int("duplicates", result.Duplicates()),
		)
		return nil
	},
}

// applyRunFlags lets explicitly set flags override the loaded config.
func applyRunFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		c.Output.Format = runFormat
	}
	if flags.Changed("concurrency") {
		c.Fetch.Concurrency = runConcurrency
	}
	if flags.Changed("tolerate-failures") {
		c.Fetch.TolerateFailures = runTolerateFailures
	}
}

func sourceOptions(c *config.Config) fetcher.SourceOptions {
	return fetcher.SourceOptions{
		S3: fetcher.S3Options{
			Region:       c.S3.Region,
			Endpoint:     c.S3.Endpoint,
			UsePathStyle: c.S3.UsePathStyle,
		},
		FTP: fetcher.FTPOptions{
			User:     c.FTP.User,
			Password: c.FTP.Password,
			Timeout:  time.Duration(c.FTP.TimeoutSecs) * time.Second,
		},
		HTTP: fetcher.HTTPOptions{
			UserAgent: c.HTTP.UserAgent,
			Timeout:   time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		},
	}
}

func fetchOptions(c *config.Config) fetcher.Options {
	policy := resilience.DefaultPolicy()
	policy.Attempts = c.Fetch.RetryAttempts
	return fetcher.Options{
		Concurrency:      c.Fetch.Concurrency,
		RateLimit:        c.Fetch.RateLimit,
		Retry:            policy,
		TolerateFailures: c.Fetch.TolerateFailures,
	}
}

// checkOutputs rejects an extras destination that would share a stream with
// the records.
func checkOutputs(output, extras string) error {
	if extras == "" {
		return nil
	}
	if extras == "-" {
		return eris.New("--extras-output must be a file, stdout is reserved for records")
	}
	if output != "" && output != "-" && filepath.Clean(output) == filepath.Clean(extras) {
		return eris.Errorf("--extras-output %q is the same file as --output", extras)
	}
	return nil
}

// writeRecords encodes records to path, or to stdout when path is empty
// or "-".
func writeRecords(stdout io.Writer, path string, records []record.Value, format pipeline.Format) error {
	if path == "" || path == "-" {
		return pipeline.Encode(stdout, records, format)
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create output %s", path)
	}
	if err := pipeline.Encode(f, records, format); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "close output %s", path)
}

func init() {
	runCmd.Flags().StringVar(&runPattern, "pattern", "*.json", "glob matched against document names (must end with .json)")
	runCmd.Flags().StringVar(&runIdentifier, "identifier", "id", "dotted path of the field identifying a record")
	runCmd.Flags().StringVar(&runSortBy, "sort-by", "", "dotted path to sort the result by, ascending")
	runCmd.Flags().StringVar(&runFormat, "format", "json", "output format (json, ndjson, yaml)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "write records to this file instead of stdout")
	runCmd.Flags().StringVar(&runExtrasOutput, "extras-output", "", "write the removed duplicate occurrences to this file")
	runCmd.Flags().BoolVar(&runTolerateFailures, "tolerate-failures", false, "continue when a document cannot be fetched")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 16, "max concurrent downloads (0 = unbounded)")
	rootCmd.AddCommand(runCmd)
}
