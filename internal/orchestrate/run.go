package orchestrate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marketbrief/premarket-cli/internal/extract"
	"github.com/marketbrief/premarket-cli/internal/model"
	"github.com/marketbrief/premarket-cli/internal/resilience"
)

// Store persists run artifacts. Satisfied by store.SQLiteStore; nil disables
// persistence.
type Store interface {
	SaveSnapshot(ctx context.Context, snap *model.ReportSnapshot) error
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
}

// Coordinator is the top-level driver for one report run.
type Coordinator struct {
	runner    UnitRunner
	perTicker []extract.Extractor
	batch     *BatchKnowledgeCoordinator
	macro     extract.Extractor
	watchlist []model.Ticker
	store     Store

	now func() time.Time
}

// NewCoordinator validates the run shape and builds the coordinator. It
// fails only for configuration-level problems: an empty watchlist or no
// enabled source. Unit failures during the run never abort it.
func NewCoordinator(r UnitRunner, watchlist []model.Ticker, perTicker []extract.Extractor, batch *BatchKnowledgeCoordinator, macro extract.Extractor, store Store) (*Coordinator, error) {
	if len(watchlist) == 0 {
		return nil, eris.New("orchestrate: watchlist is empty")
	}
	if len(perTicker) == 0 && batch == nil && macro == nil {
		return nil, eris.New("orchestrate: no sources enabled")
	}
	return &Coordinator{
		runner:    r,
		perTicker: perTicker,
		batch:     batch,
		macro:     macro,
		watchlist: watchlist,
		store:     store,
		now:       time.Now,
	}, nil
}

// Run launches every ticker orchestrator, the batch knowledge coordinator,
// and the macro unit concurrently, waits for all of them, and assembles the
// snapshot. The returned error is nil even when every unit degraded; the
// snapshot's degradation summary carries the diagnosis.
func (c *Coordinator) Run(ctx context.Context) (*model.ReportSnapshot, error) {
	snap := &model.ReportSnapshot{
		RunID:   uuid.NewString(),
		Tickers: make(map[model.Ticker]*model.TickerRecord, len(c.watchlist)),
	}
	zap.L().Info("run: starting",
		zap.String("run_id", snap.RunID),
		zap.Int("tickers", len(c.watchlist)),
		zap.Int("per_ticker_sources", len(c.perTicker)),
		zap.Bool("knowledge", c.batch != nil),
		zap.Bool("macro", c.macro != nil),
	)

	var (
		mu        sync.Mutex
		knowledge map[model.Ticker]model.ExtractionResult
		g         errgroup.Group
	)

	for _, ticker := range c.watchlist {
		orch := NewTickerOrchestrator(c.runner, c.perTicker)
		g.Go(func() error {
			record := orch.Run(ctx, ticker)
			mu.Lock()
			snap.Tickers[ticker] = record
			mu.Unlock()
			return nil
		})
	}

	if c.batch != nil {
		g.Go(func() error {
			results := c.batch.Run(ctx, c.watchlist)
			mu.Lock()
			knowledge = results
			mu.Unlock()
			return nil
		})
	}

	if c.macro != nil {
		g.Go(func() error {
			res := c.runner.Run(ctx, c.macro, model.Ticker(""))
			mu.Lock()
			snap.Macro = &res
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	for ticker, res := range knowledge {
		if record, ok := snap.Tickers[ticker]; ok {
			record.Fold(res)
		}
	}

	snap.GeneratedAt = c.now()
	snap.Degraded = c.summarize(snap)
	c.persist(ctx, snap)

	zap.L().Info("run: completed",
		zap.String("run_id", snap.RunID),
		zap.Int("degraded_units", len(snap.Degraded)),
		zap.Bool("usable", snap.SucceededAnywhere()),
	)
	return snap, nil
}

// summarize enumerates every non-success unit in stable order for operator
// diagnosis.
func (c *Coordinator) summarize(snap *model.ReportSnapshot) []model.Degradation {
	var out []model.Degradation
	for _, ticker := range snap.Watchlist() {
		record := snap.Tickers[ticker]
		for _, kind := range model.AllKinds() {
			res, ok := record.Results[kind]
			if !ok || res.Status == model.StatusSuccess {
				continue
			}
			d := model.Degradation{Ticker: ticker, Kind: kind}
			if res.Status == model.StatusFailure {
				d.ErrorKind = res.ErrorKind
				d.Detail = res.Detail
			} else {
				d.Detail = res.DegradedReason
			}
			out = append(out, d)
		}
	}

	if c.macro != nil && snap.Macro != nil && snap.Macro.Status != model.StatusSuccess {
		d := model.Degradation{Kind: model.SourceMacro}
		if snap.Macro.Status == model.StatusFailure {
			d.ErrorKind = snap.Macro.ErrorKind
			d.Detail = snap.Macro.Detail
		} else {
			d.Detail = snap.Macro.DegradedReason
		}
		out = append(out, d)
	}
	return out
}

// persist writes the snapshot and queues failed units for a later retry run.
// Persistence problems are logged, not fatal: the in-memory snapshot is
// still handed to the renderer.
func (c *Coordinator) persist(ctx context.Context, snap *model.ReportSnapshot) {
	if c.store == nil {
		return
	}

	if err := c.store.SaveSnapshot(ctx, snap); err != nil {
		zap.L().Error("run: snapshot persist failed",
			zap.String("run_id", snap.RunID),
			zap.Error(err),
		)
	}

	now := c.now()
	for _, ticker := range snap.Watchlist() {
		for _, res := range snap.Tickers[ticker].Failures() {
			entry := resilience.DLQEntry{
				ID:           uuid.NewString(),
				RunID:        snap.RunID,
				Ticker:       ticker,
				Kind:         res.Kind,
				Error:        res.Detail,
				ErrorKind:    res.ErrorKind,
				ErrorType:    resilience.ClassifyErrorKind(res.ErrorKind),
				MaxRetries:   3,
				NextRetryAt:  now,
				CreatedAt:    now,
				LastFailedAt: now,
			}
			if err := c.store.EnqueueDLQ(ctx, entry); err != nil {
				zap.L().Warn("run: dlq enqueue failed",
					zap.String("ticker", ticker.String()),
					zap.String("kind", string(res.Kind)),
					zap.Error(err),
				)
			}
		}
	}
}
