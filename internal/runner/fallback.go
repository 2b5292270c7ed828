package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/marketbrief/premarket-cli/internal/model"
	"github.com/marketbrief/premarket-cli/internal/session"
)

// Summarizer is the direct text-generation collaborator used when in-page
// extraction cannot finish in time.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Fallback produces a degraded result from raw page text through a direct
// summarization call, skipping the browser entirely. Only the slow
// AI-analysis and news sources have a meaningful non-browser substitute.
type Fallback struct {
	summarizer Summarizer
	timeout    time.Duration
}

// NewFallback creates the fallback path. summarizer may be nil, which makes
// the fallback unavailable for every kind.
func NewFallback(summarizer Summarizer, timeout time.Duration) *Fallback {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fallback{summarizer: summarizer, timeout: timeout}
}

// Available reports whether this kind has a non-browser substitute.
func (f *Fallback) Available(kind model.SourceKind) bool {
	if f == nil || f.summarizer == nil {
		return false
	}
	return kind == model.SourceAIAnalysis || kind == model.SourceNews
}

// Timeout returns the fallback's own call budget.
func (f *Fallback) Timeout() time.Duration { return f.timeout }

// Run invokes the fallback exactly once. The parent context is already past
// the per-call deadline, so the fallback carves its own short one from the
// background.
func (f *Fallback) Run(ctx context.Context, page session.Page, ticker model.Ticker, kind model.SourceKind) model.ExtractionResult {
	fbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()

	text, err := page.Text(fbCtx)
	if err != nil || strings.TrimSpace(text) == "" {
		detail := "no page text available for fallback"
		if err != nil {
			detail = err.Error()
		}
		return model.Failure(ticker, kind, model.ErrFallbackFailure, detail)
	}

	prompt := fallbackPrompt(ticker, kind, text)
	summary, err := f.summarizer.Summarize(fbCtx, prompt)
	if err != nil {
		return model.Failure(ticker, kind, model.ErrFallbackFailure, err.Error())
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return model.Failure(ticker, kind, model.ErrFallbackFailure, "summarizer returned empty text")
	}

	var payload model.Payload
	switch kind {
	case model.SourceAIAnalysis:
		payload = &model.AIAnalysis{Summary: summary}
	case model.SourceNews:
		payload = &model.NewsDigest{BulletPoints: nonEmptyLines(summary)}
	default:
		return model.Failure(ticker, kind, model.ErrFallbackFailure,
			fmt.Sprintf("no fallback payload shape for source %s", kind))
	}
	return model.Partial(ticker, kind, payload, "non-browser fallback summary")
}

func fallbackPrompt(ticker model.Ticker, kind model.SourceKind, text string) string {
	const maxPromptText = 12000
	if len(text) > maxPromptText {
		text = text[:maxPromptText]
	}

	switch kind {
	case model.SourceNews:
		return fmt.Sprintf(
			"Summarize the news relevant to %s from this page text as short bullet "+
				"points, one per line:\n\n%s", ticker, text)
	default:
		return fmt.Sprintf(
			"Write a one-paragraph pre-market analysis of %s based on this page "+
				"text:\n\n%s", ticker, text)
	}
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- "))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
