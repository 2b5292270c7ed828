// Package extract implements the per-source extraction capabilities. Each
// extractor drives navigation inside a page it is handed and returns a typed
// result; it never owns the session and never touches another one.
package extract

import (
	"context"
	"errors"
	"strings"

	"github.com/marketbrief/premarket-cli/internal/model"
	"github.com/marketbrief/premarket-cli/internal/session"
	"github.com/marketbrief/premarket-cli/pkg/browserbase"
)

// Extractor performs one source's data acquisition for one ticker inside one
// externally-provided page. The result is always terminal: timeouts and page
// failures come back as Failure results, never as panics or stray errors.
type Extractor interface {
	Kind() model.SourceKind
	Extract(ctx context.Context, page session.Page, ticker model.Ticker) model.ExtractionResult
}

// Classify maps a raw extraction error onto the failure taxonomy.
func Classify(err error) (model.ErrorKind, string) {
	switch {
	case err == nil:
		return "", ""
	case errors.Is(err, context.DeadlineExceeded):
		return model.ErrTimeout, "deadline exceeded"
	case errors.Is(err, context.Canceled):
		return model.ErrTimeout, "canceled before completion"
	}

	var apiErr *browserbase.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsSessionExpired() {
			return model.ErrSessionProviderFailure, err.Error()
		}
		return model.ErrNavigationFailure, err.Error()
	}

	if errors.Is(err, session.ErrActionUnsupported) {
		return model.ErrNavigationFailure, err.Error()
	}

	return model.ErrNavigationFailure, err.Error()
}

// failure builds a Failure result from a raw error.
func failure(ticker model.Ticker, kind model.SourceKind, err error) model.ExtractionResult {
	errKind, detail := Classify(err)
	return model.Failure(ticker, kind, errKind, detail)
}

// schemaFailure marks page content that did not match the expected structure.
func schemaFailure(ticker model.Ticker, kind model.SourceKind, detail string) model.ExtractionResult {
	return model.Failure(ticker, kind, model.ErrExtractionSchemaMismatch, detail)
}

// dominantSentiment picks the most frequent non-empty label, lowercased.
// Ties break toward the first label seen, which keeps the result stable for
// a given story order.
func dominantSentiment(labels []string) string {
	counts := make(map[string]int)
	order := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		if _, seen := counts[l]; !seen {
			order = append(order, l)
		}
		counts[l]++
	}

	best := ""
	for _, l := range order {
		if best == "" || counts[l] > counts[best] {
			best = l
		}
	}
	return best
}

// clampStrings truncates a list to at most n entries.
func clampStrings(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
