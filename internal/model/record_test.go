package model

import (
	"encoding/json"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults(ticker Ticker) []ExtractionResult {
	return []ExtractionResult{
		Success(ticker, SourceQuote, &QuoteData{Price: 187.3, Change: 1.2, ChangePercent: 0.65, Volume: 3_200_000}),
		Partial(ticker, SourceAIAnalysis, &AIAnalysis{Sentiment: "bullish", Summary: "strong guidance"}, "panel loaded without key points"),
		Failure(ticker, SourceNews, ErrTimeout, "per-call timeout after 90s"),
		Success(ticker, SourceKnowledge, &KnowledgeData{
			Morning: KnowledgeSlice{Edition: EditionMorning, ReportDate: "2026-08-28", Bullets: []string{"supplier ramp"}},
			Close:   KnowledgeSlice{Edition: EditionClose, ReportDate: "2026-08-28"},
		}),
	}
}

func TestFold_OrderIndependent(t *testing.T) {
	results := sampleResults("AAPL")

	reference := NewTickerRecord("AAPL")
	for _, res := range results {
		reference.Fold(res)
	}

	for i := 0; i < 20; i++ {
		shuffled := make([]ExtractionResult, len(results))
		copy(shuffled, results)
		rand.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		rec := NewTickerRecord("AAPL")
		for _, res := range shuffled {
			rec.Fold(res)
		}
		assert.Equal(t, reference, rec)
	}
}

func TestFold_FirstTerminalResultWins(t *testing.T) {
	rec := NewTickerRecord("NVDA")
	rec.Fold(Failure("NVDA", SourceNews, ErrTimeout, "timed out"))
	rec.Fold(Success("NVDA", SourceNews, &NewsDigest{OverallSentiment: "bullish"}))

	res := rec.Results[SourceNews]
	assert.Equal(t, StatusFailure, res.Status)
	assert.Equal(t, ErrTimeout, res.ErrorKind)
}

func TestFailures_StableOrderAndFiltering(t *testing.T) {
	rec := NewTickerRecord("AAPL")
	rec.Fold(Failure("AAPL", SourceNews, ErrNavigationFailure, "blocked"))
	rec.Fold(Failure("AAPL", SourceQuote, ErrSessionProviderFailure, "open refused"))
	rec.Fold(Success("AAPL", SourceAIAnalysis, &AIAnalysis{Sentiment: "neutral"}))

	failures := rec.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, SourceQuote, failures[0].Kind)
	assert.Equal(t, SourceNews, failures[1].Kind)
}

func TestSnapshot_SucceededAnywhere(t *testing.T) {
	snap := &ReportSnapshot{
		GeneratedAt: time.Now(),
		Tickers:     map[Ticker]*TickerRecord{"AAPL": NewTickerRecord("AAPL")},
	}
	snap.Tickers["AAPL"].Fold(Failure("AAPL", SourceQuote, ErrTimeout, ""))
	assert.False(t, snap.SucceededAnywhere())

	snap.Tickers["AAPL"].Fold(Partial("AAPL", SourceNews, &NewsDigest{}, "2 of 3 articles"))
	assert.True(t, snap.SucceededAnywhere())
}

func TestExtractionResult_JSONRoundTrip(t *testing.T) {
	in := Success("AAPL", SourceQuote, &QuoteData{Price: 101.5, Volume: 42})

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out ExtractionResult
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, in.Ticker, out.Ticker)
	assert.Equal(t, in.Status, out.Status)
	quote, ok := out.Payload.(*QuoteData)
	require.True(t, ok)
	assert.Equal(t, 101.5, quote.Price)
	assert.Equal(t, int64(42), quote.Volume)
}

func TestNewTicker_Normalizes(t *testing.T) {
	assert.Equal(t, Ticker("AAPL"), NewTicker("  aapl "))
}
