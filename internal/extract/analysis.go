package extract

import (
	"context"
	"fmt"

	"github.com/marketbrief/premarket-cli/internal/model"
	"github.com/marketbrief/premarket-cli/internal/session"
)

const (
	maxKeyPoints = 4

	analysisOpenInstruction = "Open the AI analysis panel for this ticker and " +
		"wait until the generated analysis text is fully visible."
	analysisInstruction = "Extract the AI analysis: overall sentiment " +
		"(bullish, bearish, mixed, or neutral), a one-paragraph summary, and " +
		"the key points listed."
)

// Analysis triggers the in-page AI analysis panel and reads its output.
type Analysis struct {
	BaseURL string
}

// NewAnalysis creates the AI analysis extractor.
func NewAnalysis(baseURL string) *Analysis {
	return &Analysis{BaseURL: baseURL}
}

func (a *Analysis) Kind() model.SourceKind { return model.SourceAIAnalysis }

func (a *Analysis) Extract(ctx context.Context, page session.Page, ticker model.Ticker) model.ExtractionResult {
	url := fmt.Sprintf("%s/analysis/%s", a.BaseURL, ticker)
	if err := page.Navigate(ctx, url); err != nil {
		return failure(ticker, a.Kind(), err)
	}

	// The panel renders on demand, so the analysis text does not exist until
	// this action completes.
	if err := page.Act(ctx, analysisOpenInstruction); err != nil {
		return failure(ticker, a.Kind(), err)
	}

	var data model.AIAnalysis
	if err := page.Extract(ctx, analysisInstruction, &data); err != nil {
		return failure(ticker, a.Kind(), err)
	}

	if data.Summary == "" {
		return schemaFailure(ticker, a.Kind(), "analysis panel yielded no summary")
	}
	data.KeyPoints = clampStrings(data.KeyPoints, maxKeyPoints)
	return model.Success(ticker, a.Kind(), &data)
}
