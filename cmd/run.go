package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marketbrief/premarket-cli/internal/model"
)

var (
	runTickers   []string
	runWatchlist string
	runQuiet     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pre-market scrape for the watchlist",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if runWatchlist != "" {
			cfg.Watchlist.Path = runWatchlist
		}

		var watchlist []model.Ticker
		for _, s := range runTickers {
			if t := model.NewTicker(s); t != "" {
				watchlist = append(watchlist, t)
			}
		}

		env, err := initRun(ctx, watchlist)
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := env.Coordinator.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "run")
		}

		zap.L().Info("run complete",
			zap.String("run_id", snap.RunID),
			zap.Int("tickers", len(snap.Tickers)),
			zap.Int("degraded_units", len(snap.Degraded)),
			zap.Bool("succeeded_anywhere", snap.SucceededAnywhere()),
		)

		if len(snap.Degraded) > 0 {
			formatDegradations(os.Stderr, snap.Degraded)
		}

		if runQuiet {
			fmt.Println(snap.RunID)
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&runTickers, "tickers", nil, "ticker symbols to scrape (default: watchlist file)")
	runCmd.Flags().StringVar(&runWatchlist, "watchlist", "", "path to watchlist JSON (default from config)")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "print only the run ID instead of the full snapshot")
	rootCmd.AddCommand(runCmd)
}

// formatDegradations writes a tabular degradation summary to w.
func formatDegradations(out io.Writer, degraded []model.Degradation) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TICKER\tSOURCE\tERROR\tDETAIL")
	_, _ = fmt.Fprintln(w, "------\t------\t-----\t------")
	for _, d := range degraded {
		ticker := d.Ticker.String()
		if ticker == "" {
			ticker = "-"
		}
		detail := d.Detail
		if len(detail) > 60 {
			detail = detail[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ticker, d.Kind, d.ErrorKind, detail)
	}
	_ = w.Flush()
}
