package model

import (
	"strings"
)

// Ticker is an immutable watchlist symbol. It is the identity key for every
// per-ticker record in a run.
type Ticker string

// NewTicker normalizes a raw symbol into canonical form (trimmed, uppercase).
func NewTicker(symbol string) Ticker {
	return Ticker(strings.ToUpper(strings.TrimSpace(symbol)))
}

func (t Ticker) String() string { return string(t) }

// SourceKind identifies one data source capability.
type SourceKind string

const (
	SourceQuote      SourceKind = "quote"
	SourceAIAnalysis SourceKind = "ai_analysis"
	SourceNews       SourceKind = "news"
	SourceKnowledge  SourceKind = "knowledge"
	SourceMacro      SourceKind = "macro"
)

// PerTickerKinds lists the kinds fetched once per (ticker, source) unit.
// Knowledge is excluded: it is served in batch from a single shared session.
// Macro is excluded: it is a single fixed page, not a per-ticker unit.
func PerTickerKinds() []SourceKind {
	return []SourceKind{SourceQuote, SourceAIAnalysis, SourceNews}
}

// AllKinds lists every SourceKind in a stable order.
func AllKinds() []SourceKind {
	return []SourceKind{SourceQuote, SourceAIAnalysis, SourceNews, SourceKnowledge, SourceMacro}
}
