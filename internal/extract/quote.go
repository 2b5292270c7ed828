package extract

import (
	"context"
	"fmt"

	"github.com/marketbrief/premarket-cli/internal/model"
	"github.com/marketbrief/premarket-cli/internal/session"
)

const quoteInstruction = "Extract the current pre-market price, dollar change, " +
	"percent change, volume, day range, and 52-week range for the ticker shown."

// Quote fetches the pre-market quote statistics for one ticker.
type Quote struct {
	// BaseURL is the quote site root; the ticker is appended per page.
	BaseURL string
}

// NewQuote creates the quote extractor.
func NewQuote(baseURL string) *Quote {
	return &Quote{BaseURL: baseURL}
}

func (q *Quote) Kind() model.SourceKind { return model.SourceQuote }

func (q *Quote) Extract(ctx context.Context, page session.Page, ticker model.Ticker) model.ExtractionResult {
	url := fmt.Sprintf("%s/quote/%s", q.BaseURL, ticker)
	if err := page.Navigate(ctx, url); err != nil {
		return failure(ticker, q.Kind(), err)
	}

	var data model.QuoteData
	if err := page.Extract(ctx, quoteInstruction, &data); err != nil {
		return failure(ticker, q.Kind(), err)
	}

	if data.Price <= 0 {
		return schemaFailure(ticker, q.Kind(), "quote page yielded no price")
	}
	return model.Success(ticker, q.Kind(), &data)
}
