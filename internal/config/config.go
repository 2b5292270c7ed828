package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Watchlist   WatchlistConfig   `yaml:"watchlist" mapstructure:"watchlist"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Session     SessionConfig     `yaml:"session" mapstructure:"session"`
	Browserbase BrowserbaseConfig `yaml:"browserbase" mapstructure:"browserbase"`
	Browser     BrowserConfig     `yaml:"browser" mapstructure:"browser"`
	Retry       RetryConfig       `yaml:"retry" mapstructure:"retry"`
	Breaker     BreakerConfig     `yaml:"breaker" mapstructure:"breaker"`
	Sources     SourcesConfig     `yaml:"sources" mapstructure:"sources"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Monitoring  MonitoringConfig  `yaml:"monitoring" mapstructure:"monitoring"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// MonitoringConfig configures background health checks and alerting.
type MonitoringConfig struct {
	Enabled               bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours   int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	DegradedRateThreshold float64 `yaml:"degraded_rate_threshold" mapstructure:"degraded_rate_threshold"`
	DLQDepthThreshold     int     `yaml:"dlq_depth_threshold" mapstructure:"dlq_depth_threshold"`
	ExpectRunEveryHours   int     `yaml:"expect_run_every_hours" mapstructure:"expect_run_every_hours"`
}

// StoreConfig configures the snapshot database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// WatchlistConfig configures where the ticker watchlist is read from.
type WatchlistConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ConcurrencyConfig bounds simultaneous browser sessions.
type ConcurrencyConfig struct {
	MaxSessions int `yaml:"max_sessions" mapstructure:"max_sessions"`
}

// SessionConfig configures session lifetime and provider selection.
type SessionConfig struct {
	// Provider selects the session backend: "browserbase" or "local".
	Provider           string `yaml:"provider" mapstructure:"provider"`
	CeilingSecs        int    `yaml:"ceiling_secs" mapstructure:"ceiling_secs"`
	PerCallTimeoutSecs int    `yaml:"per_call_timeout_secs" mapstructure:"per_call_timeout_secs"`
}

// BrowserbaseConfig holds managed session provider credentials and options.
type BrowserbaseConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	ProjectID       string `yaml:"project_id" mapstructure:"project_id"`
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	AdvancedStealth bool   `yaml:"advanced_stealth" mapstructure:"advanced_stealth"`
	SolveCaptchas   bool   `yaml:"solve_captchas" mapstructure:"solve_captchas"`
	UseProxies      bool   `yaml:"use_proxies" mapstructure:"use_proxies"`
	OpensPerMinute  int    `yaml:"opens_per_minute" mapstructure:"opens_per_minute"`
}

// BrowserConfig configures the local Chrome backend.
type BrowserConfig struct {
	DebuggerURL    string `yaml:"debugger_url" mapstructure:"debugger_url"`
	Headless       bool   `yaml:"headless" mapstructure:"headless"`
	ViewportWidth  int    `yaml:"viewport_width" mapstructure:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height" mapstructure:"viewport_height"`
}

// RetryConfig configures session-open retry behavior.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// BreakerConfig configures the per-source circuit breaker.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// SourcesConfig enables and addresses the individual data sources.
type SourcesConfig struct {
	Quote     QuoteSourceConfig     `yaml:"quote" mapstructure:"quote"`
	Analysis  AnalysisSourceConfig  `yaml:"analysis" mapstructure:"analysis"`
	News      NewsSourceConfig      `yaml:"news" mapstructure:"news"`
	Knowledge KnowledgeSourceConfig `yaml:"knowledge" mapstructure:"knowledge"`
	Macro     MacroSourceConfig     `yaml:"macro" mapstructure:"macro"`
}

// QuoteSourceConfig configures the quote page source.
type QuoteSourceConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnalysisSourceConfig configures the AI analysis page source.
type AnalysisSourceConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// NewsSourceConfig configures the news listing source.
type NewsSourceConfig struct {
	Enabled        bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	EarlyExitCount int    `yaml:"early_exit_count" mapstructure:"early_exit_count"`
}

// KnowledgeSourceConfig configures the authenticated knowledge source.
// Login and Password are read from environment only; they never appear in
// the config file.
type KnowledgeSourceConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	MorningURL string `yaml:"morning_url" mapstructure:"morning_url"`
	CloseURL   string `yaml:"close_url" mapstructure:"close_url"`
	Login      string `yaml:"-" mapstructure:"login"`
	Password   string `yaml:"-" mapstructure:"password"`
}

// MacroSourceConfig configures the macro overview source.
type MacroSourceConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	URL     string `yaml:"url" mapstructure:"url"`
}

// AnthropicConfig holds Anthropic API settings for the fallback summarizer
// and local structured extraction.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ServerConfig configures the snapshot HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PREMARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.path", "premarket.db")
	v.SetDefault("watchlist.path", "watchlist.json")
	v.SetDefault("concurrency.max_sessions", 2)
	v.SetDefault("session.provider", "browserbase")
	v.SetDefault("session.ceiling_secs", 480)
	v.SetDefault("session.per_call_timeout_secs", 180)
	v.SetDefault("browserbase.key", "")
	v.SetDefault("browserbase.project_id", "")
	v.SetDefault("browserbase.base_url", "")
	v.SetDefault("browserbase.advanced_stealth", true)
	v.SetDefault("browserbase.solve_captchas", true)
	v.SetDefault("browser.debugger_url", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1440)
	v.SetDefault("browser.viewport_height", 900)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.2)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout_secs", 60)
	v.SetDefault("sources.quote.enabled", true)
	v.SetDefault("sources.quote.base_url", "https://finance.yahoo.com")
	v.SetDefault("sources.analysis.enabled", true)
	v.SetDefault("sources.analysis.base_url", "https://finance.yahoo.com")
	v.SetDefault("sources.news.enabled", true)
	v.SetDefault("sources.news.base_url", "https://finance.yahoo.com")
	v.SetDefault("sources.news.early_exit_count", 3)
	v.SetDefault("sources.knowledge.enabled", false)
	v.SetDefault("sources.knowledge.morning_url", "")
	v.SetDefault("sources.knowledge.close_url", "")
	// Empty defaults register the keys so environment-only values survive
	// Unmarshal; the values themselves come from PREMARKET_SOURCES_KNOWLEDGE_*.
	v.SetDefault("sources.knowledge.login", "")
	v.SetDefault("sources.knowledge.password", "")
	v.SetDefault("sources.macro.enabled", true)
	v.SetDefault("sources.macro.url", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.degraded_rate_threshold", 0.5)
	v.SetDefault("monitoring.dlq_depth_threshold", 25)
	v.SetDefault("monitoring.expect_run_every_hours", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	switch c.Session.Provider {
	case "browserbase":
		if c.Browserbase.Key == "" {
			return eris.New("config: browserbase key is required for the browserbase provider")
		}
		if c.Browserbase.ProjectID == "" {
			return eris.New("config: browserbase project_id is required for the browserbase provider")
		}
	case "local":
		if c.Anthropic.Key == "" {
			return eris.New("config: anthropic key is required for the local provider")
		}
	default:
		return eris.Errorf("config: unknown session provider %q", c.Session.Provider)
	}

	if c.Sources.Knowledge.Enabled {
		if c.Sources.Knowledge.MorningURL == "" || c.Sources.Knowledge.CloseURL == "" {
			return eris.New("config: knowledge source requires morning_url and close_url")
		}
		if c.Sources.Knowledge.Login == "" || c.Sources.Knowledge.Password == "" {
			return eris.New("config: knowledge source requires login and password")
		}
	}

	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
