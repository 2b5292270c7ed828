package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/marketbrief/premarket-cli/internal/resilience"
	"github.com/marketbrief/premarket-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect scrape run history",
	Long:  "Commands for listing runs, viewing snapshots, and inspecting the dead letter queue.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scrape runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.RunFilter{Limit: limit}
		if since > 0 {
			filter.Since = time.Now().Add(-since)
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the full snapshot of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := st.GetSnapshot(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		if snap == nil {
			return eris.Errorf("run %s not found", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

// -- runs dlq --

var runsDLQCmd = &cobra.Command{
	Use:   "dlq",
	Short: "List failed scrape units awaiting retry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		errType, _ := cmd.Flags().GetString("error-type")
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{
			ErrorType: errType,
			Limit:     limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs dlq")
		}

		total, err := st.CountDLQ(ctx)
		if err != nil {
			return eris.Wrap(err, "runs dlq count")
		}

		if len(entries) == 0 {
			fmt.Fprintf(os.Stderr, "No retryable entries (%d total in queue).\n", total)
			return nil
		}

		formatDLQ(os.Stdout, entries)
		fmt.Fprintf(os.Stderr, "%d retryable of %d total.\n", len(entries), total)
		return nil
	},
}

func init() {
	runsListCmd.Flags().Duration("since", 0, "only show runs newer than this window (e.g. 24h)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsDLQCmd.Flags().String("error-type", "", "filter by error type (transient, permanent)")
	runsDLQCmd.Flags().Int("limit", 50, "max number of entries to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDLQCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of run summaries to w.
func formatRunsList(out io.Writer, runs []store.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN\tGENERATED\tTICKERS\tDEGRADED")
	_, _ = fmt.Fprintln(w, "---\t---------\t-------\t--------")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\n",
			truncateID(r.RunID),
			r.GeneratedAt.Format("2006-01-02 15:04"),
			r.TickerCount,
			r.DegradedUnits,
		)
	}
	_ = w.Flush()
}

// formatDLQ writes a tabular list of dead letter entries to w.
func formatDLQ(out io.Writer, entries []resilience.DLQEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTICKER\tSOURCE\tTYPE\tRETRIES\tLAST_FAILED\tERROR")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t----\t-------\t-----------\t-----")
	for _, e := range entries {
		errMsg := e.Error
		if len(errMsg) > 50 {
			errMsg = errMsg[:47] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			truncateID(e.ID),
			e.Ticker,
			e.Kind,
			e.ErrorType,
			e.RetryCount,
			e.MaxRetries,
			e.LastFailedAt.Format("2006-01-02 15:04"),
			errMsg,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
