package model

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// TickerRecord accumulates extraction results for one ticker, keyed by
// SourceKind. It is owned exclusively by its orchestrator while the run is in
// flight and read-only afterwards; the fold is commutative, so the record is
// identical regardless of the order results arrive in.
type TickerRecord struct {
	Ticker  Ticker                          `json:"ticker"`
	Results map[SourceKind]ExtractionResult `json:"results"`
}

// NewTickerRecord creates an empty record for a ticker.
func NewTickerRecord(ticker Ticker) *TickerRecord {
	return &TickerRecord{
		Ticker:  ticker,
		Results: make(map[SourceKind]ExtractionResult),
	}
}

// Fold merges one result into the record. The first terminal result for a
// SourceKind is authoritative: a later duplicate (e.g. a fallback completing
// after the primary already resolved) is dropped and logged.
func (r *TickerRecord) Fold(res ExtractionResult) {
	if _, seen := r.Results[res.Kind]; seen {
		zap.L().Debug("record: dropping duplicate result",
			zap.String("ticker", r.Ticker.String()),
			zap.String("kind", string(res.Kind)),
			zap.String("status", string(res.Status)),
		)
		return
	}
	r.Results[res.Kind] = res
}

// Failures returns the record's non-success entries in stable kind order.
func (r *TickerRecord) Failures() []ExtractionResult {
	var out []ExtractionResult
	for _, kind := range AllKinds() {
		if res, ok := r.Results[kind]; ok && res.Status == StatusFailure {
			out = append(out, res)
		}
	}
	return out
}

// Degradation is one failed or degraded (ticker, source) unit, surfaced for
// operator diagnosis after the run.
type Degradation struct {
	Ticker    Ticker     `json:"ticker"`
	Kind      SourceKind `json:"kind"`
	ErrorKind ErrorKind  `json:"error_kind,omitempty"`
	Detail    string     `json:"detail,omitempty"`
}

// ReportSnapshot is the final immutable aggregate of one run: one record per
// watchlist ticker (present even when every source failed), the macro
// overview, and the generation timestamp. Written once by the run
// coordinator.
type ReportSnapshot struct {
	RunID       string                   `json:"run_id"`
	GeneratedAt time.Time                `json:"generated_at"`
	Tickers     map[Ticker]*TickerRecord `json:"tickers"`
	Macro       *ExtractionResult        `json:"macro,omitempty"`
	Degraded    []Degradation            `json:"degraded,omitempty"`
}

// Watchlist returns the snapshot's tickers in sorted order.
func (s *ReportSnapshot) Watchlist() []Ticker {
	out := make([]Ticker, 0, len(s.Tickers))
	for t := range s.Tickers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SucceededAnywhere reports whether at least one (ticker, source) unit in the
// snapshot produced a usable payload.
func (s *ReportSnapshot) SucceededAnywhere() bool {
	for _, rec := range s.Tickers {
		for _, res := range rec.Results {
			if res.OK() {
				return true
			}
		}
	}
	return s.Macro != nil && s.Macro.OK()
}
