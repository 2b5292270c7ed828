// Package runner executes one (ticker, source) unit of work: lease a slot,
// open an isolated session, run the extractor under layered deadlines, fall
// back when time runs out, and release everything on every exit path.
package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/marketbrief/premarket-cli/internal/extract"
	"github.com/marketbrief/premarket-cli/internal/gate"
	"github.com/marketbrief/premarket-cli/internal/model"
	"github.com/marketbrief/premarket-cli/internal/resilience"
	"github.com/marketbrief/premarket-cli/internal/session"
)

// Config bundles the runner's timing and retry knobs.
type Config struct {
	// SessionCeiling is the hard wall-clock budget for one session.
	SessionCeiling time.Duration

	// PerCallTimeout bounds one extractor invocation. The effective timeout
	// is never larger than the session budget's remaining time.
	PerCallTimeout time.Duration

	// OpenRetry governs retries of session opening. Extraction itself is
	// never retried; a failed unit degrades instead.
	OpenRetry resilience.RetryConfig

	// Breaker configures the per-source circuit breakers guarding session
	// opens.
	Breaker resilience.CircuitBreakerConfig
}

// Runner runs extractors against isolated sessions under the global gate.
type Runner struct {
	gate     *gate.Gate
	provider session.Provider
	fallback *Fallback
	cfg      Config
	breakers *resilience.SourceBreakers
}

// New creates a runner. fallback may be nil.
func New(g *gate.Gate, provider session.Provider, fallback *Fallback, cfg Config) *Runner {
	if cfg.SessionCeiling <= 0 {
		cfg.SessionCeiling = 8 * time.Minute
	}
	if cfg.PerCallTimeout <= 0 {
		cfg.PerCallTimeout = 3 * time.Minute
	}
	return &Runner{
		gate:     g,
		provider: provider,
		fallback: fallback,
		cfg:      cfg,
		breakers: resilience.NewSourceBreakers(cfg.Breaker),
	}
}

// Run executes ex for ticker inside one freshly-opened isolated session.
// Every failure comes back as a Failure result; Run never returns an error
// and never panics past its boundary.
func (r *Runner) Run(ctx context.Context, ex extract.Extractor, ticker model.Ticker) model.ExtractionResult {
	kind := ex.Kind()

	lease, err := r.gate.Acquire(ctx)
	if err != nil {
		return model.Failure(ticker, kind, model.ErrTimeout,
			"canceled while waiting for a session slot")
	}
	defer lease.Release()

	handle, err := r.openSession(ctx, kind)
	if err != nil {
		return model.Failure(ticker, kind, model.ErrSessionProviderFailure, err.Error())
	}
	defer func() {
		if cerr := handle.Close(); cerr != nil {
			zap.L().Warn("runner: session close failed",
				zap.String("ticker", string(ticker)),
				zap.String("source", string(kind)),
				zap.Error(cerr),
			)
		}
	}()

	budget := session.NewBudget(r.cfg.SessionCeiling)
	result := r.extractOnce(ctx, ex, handle, ticker, budget)

	// A timed-out unit gets one shot at the non-browser substitute; its
	// outcome, good or bad, is final.
	if result.Status == model.StatusFailure && result.ErrorKind == model.ErrTimeout &&
		ctx.Err() == nil && r.fallback.Available(kind) {
		zap.L().Info("runner: falling back to direct summarization",
			zap.String("ticker", string(ticker)),
			zap.String("source", string(kind)),
		)
		result = r.fallback.Run(ctx, handle.Page(), ticker, kind)
	}

	logResult(result, handle.ID())
	return result
}

func (r *Runner) openSession(ctx context.Context, kind model.SourceKind) (session.Handle, error) {
	breaker := r.breakers.Get(string(kind))
	return resilience.DoVal(ctx, withRetryLog(r.cfg.OpenRetry, r.provider.Name()),
		func(ctx context.Context) (session.Handle, error) {
			return resilience.ExecuteVal(ctx, breaker, r.provider.Open)
		})
}

func (r *Runner) extractOnce(ctx context.Context, ex extract.Extractor, handle session.Handle, ticker model.Ticker, budget *session.Budget) model.ExtractionResult {
	if budget.Expired() {
		return model.Failure(ticker, ex.Kind(), model.ErrTimeout, "session budget exhausted")
	}

	timeout := r.cfg.PerCallTimeout
	if remaining := budget.Remaining(); remaining < timeout {
		timeout = remaining
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return ex.Extract(callCtx, handle.Page(), ticker)
}

func withRetryLog(cfg resilience.RetryConfig, provider string) resilience.RetryConfig {
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(provider, "open session")
	}
	return cfg
}

func logResult(res model.ExtractionResult, sessionID string) {
	fields := []zap.Field{
		zap.String("ticker", string(res.Ticker)),
		zap.String("source", string(res.Kind)),
		zap.String("session_id", sessionID),
	}
	switch res.Status {
	case model.StatusSuccess:
		zap.L().Debug("runner: extraction succeeded", fields...)
	case model.StatusPartialSuccess:
		zap.L().Info("runner: extraction degraded",
			append(fields, zap.String("reason", res.DegradedReason))...)
	default:
		zap.L().Warn("runner: extraction failed",
			append(fields,
				zap.String("error_kind", string(res.ErrorKind)),
				zap.String("detail", res.Detail),
			)...)
	}
}
