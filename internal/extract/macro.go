package extract

import (
	"context"

	"github.com/marketbrief/premarket-cli/internal/model"
	"github.com/marketbrief/premarket-cli/internal/session"
)

const macroInstruction = "Extract the market-wide overview: for the morning " +
	"edition and the market-close edition, the publication date, a short " +
	"summary paragraph, and the headline bullets."

// Macro extracts the market-wide overview from one fixed page. There is no
// per-ticker looping; the run produces at most one macro result.
type Macro struct {
	URL string
}

// NewMacro creates the macro extractor.
func NewMacro(url string) *Macro {
	return &Macro{URL: url}
}

func (m *Macro) Kind() model.SourceKind { return model.SourceMacro }

func (m *Macro) Extract(ctx context.Context, page session.Page, ticker model.Ticker) model.ExtractionResult {
	if err := page.Navigate(ctx, m.URL); err != nil {
		return failure(ticker, m.Kind(), err)
	}

	var data model.MacroOverview
	if err := page.Extract(ctx, macroInstruction, &data); err != nil {
		return failure(ticker, m.Kind(), err)
	}

	if data.Morning.Summary == "" && data.Close.Summary == "" {
		return schemaFailure(ticker, m.Kind(), "macro page yielded no edition summary")
	}
	return model.Success(ticker, m.Kind(), &data)
}
