package orchestrate

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

// KnowledgeConfig bundles the batch coordinator's knobs.
type KnowledgeConfig struct {
	SessionCeiling time.Duration
	PerCallTimeout time.Duration
	OpenRetry      resilience.RetryConfig

	// Login and Password authenticate into the research site. Both empty
	// skips the login step for sources that do not require one.
	Login    session.Credential
	Password session.Credential
}

// BatchKnowledgeCoordinator serves the knowledge source for all tickers from
// one shared session. The underlying source is a static paginated report, so
// opening it once per ticker would let the visible "current" report drift
// between opens; reading every ticker from a single page state guarantees
// one report date across the whole watchlist.
type BatchKnowledgeCoordinator struct {
	gate      *gate.Gate
	provider  session.Provider
	extractor *extract.Knowledge
	cfg       KnowledgeConfig
}

// NewBatchKnowledgeCoordinator creates the coordinator.
func NewBatchKnowledgeCoordinator(g *gate.Gate, provider session.Provider, extractor *extract.Knowledge, cfg KnowledgeConfig) *BatchKnowledgeCoordinator {
	if cfg.SessionCeiling <= 0 {
		cfg.SessionCeiling = 8 * time.Minute
	}
	if cfg.PerCallTimeout <= 0 {
		cfg.PerCallTimeout = 3 * time.Minute
	}
	return &BatchKnowledgeCoordinator{gate: g, provider: provider, extractor: extractor, cfg: cfg}
}

// Run extracts both editions for every ticker and returns one terminal
// result per ticker. The morning pass completes before the close pass
// starts; the two passes never share page state.
func (c *BatchKnowledgeCoordinator) Run(ctx context.Context, tickers []model.Ticker) map[model.Ticker]model.ExtractionResult {
	if len(tickers) == 0 {
		return map[model.Ticker]model.ExtractionResult{}
	}

	lease, err := c.gate.Acquire(ctx)
	if err != nil {
		return c.failAll(tickers, model.ErrTimeout, "canceled while waiting for a session slot")
	}
	defer lease.Release()

	handle, err := resilience.DoVal(ctx, c.openRetry(), func(ctx context.Context) (session.Handle, error) {
		return c.provider.Open(ctx)
	})
	if err != nil {
		return c.failAll(tickers, model.ErrSessionProviderFailure, err.Error())
	}
	defer func() {
		if cerr := handle.Close(); cerr != nil {
			zap.L().Warn("knowledge: session close failed", zap.Error(cerr))
		}
	}()

	budget := session.NewBudget(c.cfg.SessionCeiling)
	page := handle.Page()

	if !c.cfg.Login.Empty() || !c.cfg.Password.Empty() {
		if err := c.withPassTimeout(ctx, budget, func(ctx context.Context) error {
			if err := page.Navigate(ctx, c.extractor.PageURL(model.EditionMorning)); err != nil {
				return err
			}
			return c.extractor.Login(ctx, page, c.cfg.Login, c.cfg.Password)
		}); err != nil {
			errKind, detail := extract.Classify(err)
			return c.failAll(tickers, errKind, detail)
		}
	}

	morning, morningErr := c.runPass(ctx, page, budget, model.EditionMorning, tickers)
	closeSlices, closeErr := c.runPass(ctx, page, budget, model.EditionClose, tickers)

	results := make(map[model.Ticker]model.ExtractionResult, len(tickers))
	for _, ticker := range tickers {
		results[ticker] = mergeKnowledge(ticker, morning[ticker], closeSlices[ticker], morningErr, closeErr)
	}
	return results
}

// runPass loads one edition page and extracts every ticker's slice from that
// single page state.
func (c *BatchKnowledgeCoordinator) runPass(ctx context.Context, page session.Page, budget *session.Budget, edition model.Edition, tickers []model.Ticker) (map[model.Ticker]model.KnowledgeSlice, error) {
	var slices map[model.Ticker]model.KnowledgeSlice
	err := c.withPassTimeout(ctx, budget, func(ctx context.Context) error {
		if err := page.Navigate(ctx, c.extractor.PageURL(edition)); err != nil {
			return err
		}
		var err error
		slices, err = c.extractor.ExtractEdition(ctx, page, edition, tickers)
		return err
	})
	if err != nil {
		zap.L().Warn("knowledge: edition pass failed",
			zap.String("edition", string(edition)),
			zap.Error(err),
		)
		return nil, err
	}
	return slices, nil
}

func (c *BatchKnowledgeCoordinator) withPassTimeout(ctx context.Context, budget *session.Budget, fn func(ctx context.Context) error) error {
	if budget.Expired() {
		return context.DeadlineExceeded
	}
	timeout := c.cfg.PerCallTimeout
	if remaining := budget.Remaining(); remaining < timeout {
		timeout = remaining
	}
	passCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(passCtx)
}

func (c *BatchKnowledgeCoordinator) openRetry() resilience.RetryConfig {
	cfg := c.cfg.OpenRetry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(c.provider.Name(), "open knowledge session")
	}
	return cfg
}

func (c *BatchKnowledgeCoordinator) failAll(tickers []model.Ticker, errKind model.ErrorKind, detail string) map[model.Ticker]model.ExtractionResult {
	results := make(map[model.Ticker]model.ExtractionResult, len(tickers))
	for _, ticker := range tickers {
		results[ticker] = model.Failure(ticker, model.SourceKnowledge, errKind, detail)
	}
	return results
}

// mergeKnowledge folds one ticker's edition slices into a terminal result.
// Both editions present is a full success; one edition is a degraded but
// usable result; neither is a failure whose kind reflects why.
func mergeKnowledge(ticker model.Ticker, morning, closing model.KnowledgeSlice, morningErr, closeErr error) model.ExtractionResult {
	hasMorning := len(morning.Bullets) > 0
	hasClose := len(closing.Bullets) > 0

	switch {
	case hasMorning && hasClose:
		return model.Success(ticker, model.SourceKnowledge,
			&model.KnowledgeData{Morning: morning, Close: closing})
	case hasMorning:
		return model.Partial(ticker, model.SourceKnowledge,
			&model.KnowledgeData{Morning: morning}, "close edition missing")
	case hasClose:
		return model.Partial(ticker, model.SourceKnowledge,
			&model.KnowledgeData{Close: closing}, "morning edition missing")
	}

	if morningErr != nil || closeErr != nil {
		err := morningErr
		if err == nil {
			err = closeErr
		}
		errKind, detail := extract.Classify(err)
		return model.Failure(ticker, model.SourceKnowledge, errKind, detail)
	}
	return model.Failure(ticker, model.SourceKnowledge,
		model.ErrExtractionSchemaMismatch, "ticker absent from both editions")
}
