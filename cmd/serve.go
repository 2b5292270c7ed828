package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marketbrief/premarket-cli/internal/model"
	"github.com/marketbrief/premarket-cli/internal/monitoring"
	"github.com/marketbrief/premarket-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve snapshots and accept scrape triggers over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		collector := monitoring.NewCollector(st)
		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
			lookback := cfg.Monitoring.LookbackWindowHours
			if lookback <= 0 {
				lookback = 24
			}
			snap, err := collector.Collect(r.Context(), lookback)
			if err != nil {
				http.Error(w, `{"error":"metrics collection failed"}`, http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, snap)
		})

		mux.HandleFunc("GET /snapshots/latest", func(w http.ResponseWriter, r *http.Request) {
			snap, err := st.LatestSnapshot(r.Context())
			if err != nil {
				http.Error(w, `{"error":"snapshot lookup failed"}`, http.StatusInternalServerError)
				return
			}
			if snap == nil {
				http.Error(w, `{"error":"no snapshots yet"}`, http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, snap)
		})

		mux.HandleFunc("GET /snapshots/{run_id}", func(w http.ResponseWriter, r *http.Request) {
			snap, err := st.GetSnapshot(r.Context(), r.PathValue("run_id"))
			if err != nil {
				http.Error(w, `{"error":"snapshot lookup failed"}`, http.StatusInternalServerError)
				return
			}
			if snap == nil {
				http.Error(w, `{"error":"run not found"}`, http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, snap)
		})

		mux.HandleFunc("GET /runs", func(w http.ResponseWriter, r *http.Request) {
			runs, err := st.ListRuns(r.Context(), store.RunFilter{Limit: 100})
			if err != nil {
				http.Error(w, `{"error":"run listing failed"}`, http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, runs)
		})

		mux.HandleFunc("POST /webhook/run", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Tickers []string `json:"tickers"`
			}
			if r.ContentLength > 0 {
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
					return
				}
			}

			var watchlist []model.Ticker
			for _, s := range req.Tickers {
				if t := model.NewTicker(s); t != "" {
					watchlist = append(watchlist, t)
				}
			}

			// Run the scrape asynchronously with its own environment; the
			// triggered run outlives this request.
			go func() {
				env, err := initRun(ctx, watchlist)
				if err != nil {
					zap.L().Error("webhook run init failed", zap.Error(err))
					return
				}
				defer env.Close()

				snap, err := env.Coordinator.Run(ctx)
				if err != nil {
					zap.L().Error("webhook run failed", zap.Error(err))
					return
				}
				zap.L().Info("webhook run complete",
					zap.String("run_id", snap.RunID),
					zap.Int("degraded_units", len(snap.Degraded)),
				)
			}()

			writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
