// Package orchestrate fans work out across tickers and sources and folds
// whatever comes back into one report snapshot.
package orchestrate

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/marketbrief/premarket-cli/internal/extract"
	"github.com/marketbrief/premarket-cli/internal/model"
)

// UnitRunner executes one (ticker, source) unit. Satisfied by runner.Runner.
type UnitRunner interface {
	Run(ctx context.Context, ex extract.Extractor, ticker model.Ticker) model.ExtractionResult
}

// TickerOrchestrator runs every enabled per-ticker source for one ticker
// concurrently. Sources run in parallel so the ticker's wall-clock cost is
// near its slowest single source, not the sum; that is what keeps each
// session under its ceiling.
type TickerOrchestrator struct {
	runner     UnitRunner
	extractors []extract.Extractor
}

// NewTickerOrchestrator creates an orchestrator over the enabled extractors.
func NewTickerOrchestrator(r UnitRunner, extractors []extract.Extractor) *TickerOrchestrator {
	return &TickerOrchestrator{runner: r, extractors: extractors}
}

// Run fans out one unit per extractor and folds every result, success or
// not, into the ticker's record. No source's failure cancels its siblings.
func (o *TickerOrchestrator) Run(ctx context.Context, ticker model.Ticker) *model.TickerRecord {
	record := model.NewTickerRecord(ticker)
	if len(o.extractors) == 0 {
		return record
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, ex := range o.extractors {
		g.Go(func() error {
			res := o.runner.Run(ctx, ex, ticker)
			mu.Lock()
			record.Fold(res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return record
}
