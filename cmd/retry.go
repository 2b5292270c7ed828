package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marketbrief/premarket-cli/internal/extract"
	"github.com/marketbrief/premarket-cli/internal/gate"
	"github.com/marketbrief/premarket-cli/internal/model"
	"github.com/marketbrief/premarket-cli/internal/resilience"
	"github.com/marketbrief/premarket-cli/internal/runner"
)

var runsRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-scrape failed units from the dead letter queue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{
			ErrorType: "transient",
			Limit:     limit,
		})
		if err != nil {
			return eris.Wrap(err, "retry dequeue")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "Nothing to retry.")
			return nil
		}

		summarizer := initSummarizer()
		provider, err := initProvider(summarizer)
		if err != nil {
			return err
		}
		g, err := gate.New(cfg.Concurrency.MaxSessions)
		if err != nil {
			return err
		}

		var fallbackSummarizer runner.Summarizer
		if summarizer != nil {
			fallbackSummarizer = summarizer
		}
		run := runner.New(g, provider, runner.NewFallback(fallbackSummarizer, 0), runner.Config{
			SessionCeiling: time.Duration(cfg.Session.CeilingSecs) * time.Second,
			PerCallTimeout: time.Duration(cfg.Session.PerCallTimeoutSecs) * time.Second,
			OpenRetry: resilience.FromRetryConfig(
				cfg.Retry.MaxAttempts,
				cfg.Retry.InitialBackoffMs,
				cfg.Retry.MaxBackoffMs,
				cfg.Retry.Multiplier,
				cfg.Retry.JitterFraction,
			),
			Breaker: resilience.FromCircuitConfig(cfg.Breaker.FailureThreshold, cfg.Breaker.ResetTimeoutSecs),
		})

		var recovered, failed, skipped int
		for _, entry := range entries {
			ex := extractorFor(entry.Kind)
			if ex == nil {
				// Knowledge units are batch-only and cannot be replayed in
				// isolation; leave them for the next full run.
				skipped++
				continue
			}

			res := run.Run(ctx, ex, entry.Ticker)
			if res.Status == model.StatusFailure {
				failed++
				next := time.Now().Add(time.Duration(entry.RetryCount+1) * 5 * time.Minute)
				if err := st.IncrementDLQRetry(ctx, entry.ID, next, res.Detail); err != nil {
					zap.L().Warn("dlq increment failed", zap.String("id", entry.ID), zap.Error(err))
				}
				continue
			}

			recovered++
			if err := st.RemoveDLQ(ctx, entry.ID); err != nil {
				zap.L().Warn("dlq remove failed", zap.String("id", entry.ID), zap.Error(err))
			}
		}

		zap.L().Info("retry pass complete",
			zap.Int("recovered", recovered),
			zap.Int("failed", failed),
			zap.Int("skipped", skipped),
		)
		fmt.Fprintf(os.Stderr, "Recovered %d, failed %d, skipped %d.\n", recovered, failed, skipped)
		return nil
	},
}

func init() {
	runsRetryCmd.Flags().Int("limit", 20, "max number of entries to retry")
	runsCmd.AddCommand(runsRetryCmd)
}

// extractorFor builds the per-unit extractor for a retryable source kind.
// Returns nil for kinds that only run as part of a full pass.
func extractorFor(kind model.SourceKind) extract.Extractor {
	switch kind {
	case model.SourceQuote:
		return extract.NewQuote(cfg.Sources.Quote.BaseURL)
	case model.SourceAIAnalysis:
		return extract.NewAnalysis(cfg.Sources.Analysis.BaseURL)
	case model.SourceNews:
		return extract.NewNews(cfg.Sources.News.BaseURL, cfg.Sources.News.EarlyExitCount)
	case model.SourceMacro:
		return extract.NewMacro(cfg.Sources.Macro.URL)
	default:
		return nil
	}
}
