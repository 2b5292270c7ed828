package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/marketbrief/premarket-cli/internal/config"
	"github.com/marketbrief/premarket-cli/internal/extract"
	"github.com/marketbrief/premarket-cli/internal/gate"
	"github.com/marketbrief/premarket-cli/internal/model"
	"github.com/marketbrief/premarket-cli/internal/orchestrate"
	"github.com/marketbrief/premarket-cli/internal/resilience"
	"github.com/marketbrief/premarket-cli/internal/runner"
	"github.com/marketbrief/premarket-cli/internal/session"
	"github.com/marketbrief/premarket-cli/internal/store"
	anthropicpkg "github.com/marketbrief/premarket-cli/pkg/anthropic"
	"github.com/marketbrief/premarket-cli/pkg/browserbase"
)

// runEnv holds the initialized store, watchlist, and run coordinator needed
// by the run/serve commands.
type runEnv struct {
	Store       store.Store
	Watchlist   []model.Ticker
	Coordinator *orchestrate.Coordinator
}

// Close releases resources held by the run environment.
func (e *runEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initSummarizer builds the Anthropic summarizer, or returns nil when no key
// is configured.
func initSummarizer() *anthropicpkg.Summarizer {
	if cfg.Anthropic.Key == "" {
		zap.L().Debug("PREMARKET_ANTHROPIC_KEY not set, fallback summarization disabled")
		return nil
	}
	client := anthropicpkg.NewClient(cfg.Anthropic.Key)
	return anthropicpkg.NewSummarizer(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
}

// initProvider builds the session provider selected by config.
func initProvider(summarizer *anthropicpkg.Summarizer) (session.Provider, error) {
	switch cfg.Session.Provider {
	case "browserbase":
		var opts []browserbase.Option
		if cfg.Browserbase.BaseURL != "" {
			opts = append(opts, browserbase.WithBaseURL(cfg.Browserbase.BaseURL))
		}
		client := browserbase.NewClient(cfg.Browserbase.Key, cfg.Browserbase.ProjectID, opts...)
		return session.NewManaged(client, session.ManagedConfig{
			SessionTTL:      time.Duration(cfg.Session.CeilingSecs) * time.Second,
			AdvancedStealth: cfg.Browserbase.AdvancedStealth,
			SolveCaptchas:   cfg.Browserbase.SolveCaptchas,
			UseProxies:      cfg.Browserbase.UseProxies,
			OpensPerMinute:  cfg.Browserbase.OpensPerMinute,
		}), nil
	case "local":
		if summarizer == nil {
			return nil, eris.New("local provider requires an anthropic key for structured extraction")
		}
		return session.NewLocal(session.LocalConfig{
			DebuggerURL:    cfg.Browser.DebuggerURL,
			Headless:       cfg.Browser.Headless,
			ViewportWidth:  cfg.Browser.ViewportWidth,
			ViewportHeight: cfg.Browser.ViewportHeight,
		}, summarizer.ExtractStructured), nil
	default:
		return nil, eris.Errorf("unsupported session provider: %s", cfg.Session.Provider)
	}
}

// initRun sets up the store, session provider, extractors, and the full run
// coordinator. Callers should defer env.Close().
func initRun(ctx context.Context, watchlist []model.Ticker) (*runEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if len(watchlist) == 0 {
		watchlist, err = config.LoadWatchlist(cfg.Watchlist.Path)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	summarizer := initSummarizer()
	provider, err := initProvider(summarizer)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	g, err := gate.New(cfg.Concurrency.MaxSessions)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	openRetry := resilience.FromRetryConfig(
		cfg.Retry.MaxAttempts,
		cfg.Retry.InitialBackoffMs,
		cfg.Retry.MaxBackoffMs,
		cfg.Retry.Multiplier,
		cfg.Retry.JitterFraction,
	)

	var fallbackSummarizer runner.Summarizer
	if summarizer != nil {
		fallbackSummarizer = summarizer
	}

	run := runner.New(g, provider, runner.NewFallback(fallbackSummarizer, 0), runner.Config{
		SessionCeiling: time.Duration(cfg.Session.CeilingSecs) * time.Second,
		PerCallTimeout: time.Duration(cfg.Session.PerCallTimeoutSecs) * time.Second,
		OpenRetry:      openRetry,
		Breaker:        resilience.FromCircuitConfig(cfg.Breaker.FailureThreshold, cfg.Breaker.ResetTimeoutSecs),
	})

	var perTicker []extract.Extractor
	if cfg.Sources.Quote.Enabled {
		perTicker = append(perTicker, extract.NewQuote(cfg.Sources.Quote.BaseURL))
	}
	if cfg.Sources.Analysis.Enabled {
		perTicker = append(perTicker, extract.NewAnalysis(cfg.Sources.Analysis.BaseURL))
	}
	if cfg.Sources.News.Enabled {
		perTicker = append(perTicker, extract.NewNews(cfg.Sources.News.BaseURL, cfg.Sources.News.EarlyExitCount))
	}

	var batch *orchestrate.BatchKnowledgeCoordinator
	if cfg.Sources.Knowledge.Enabled {
		knowledge := extract.NewKnowledge(cfg.Sources.Knowledge.MorningURL, cfg.Sources.Knowledge.CloseURL)
		batch = orchestrate.NewBatchKnowledgeCoordinator(g, provider, knowledge, orchestrate.KnowledgeConfig{
			SessionCeiling: time.Duration(cfg.Session.CeilingSecs) * time.Second,
			PerCallTimeout: time.Duration(cfg.Session.PerCallTimeoutSecs) * time.Second,
			OpenRetry:      openRetry,
			Login:          session.NewCredential("login", cfg.Sources.Knowledge.Login),
			Password:       session.NewCredential("password", cfg.Sources.Knowledge.Password),
		})
	}

	var macro extract.Extractor
	if cfg.Sources.Macro.Enabled && cfg.Sources.Macro.URL != "" {
		macro = extract.NewMacro(cfg.Sources.Macro.URL)
	}

	coord, err := orchestrate.NewCoordinator(run, watchlist, perTicker, batch, macro, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	zap.L().Info("run environment ready",
		zap.String("provider", provider.Name()),
		zap.Int("watchlist", len(watchlist)),
		zap.Int("max_sessions", cfg.Concurrency.MaxSessions),
		zap.Bool("fallback_enabled", summarizer != nil),
	)

	return &runEnv{
		Store:       st,
		Watchlist:   watchlist,
		Coordinator: coord,
	}, nil
}
