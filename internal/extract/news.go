package extract

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/marketbrief/premarket-cli/internal/model"
	"github.com/marketbrief/premarket-cli/internal/session"
)

const (
	// DefaultEarlyExitCount is how many successful article summaries end the
	// crawl even when more are listed.
	DefaultEarlyExitCount = 3

	newsListInstruction = "Extract the list of news articles for this ticker: " +
		"headline, link URL, source name, and article age."
	newsStoryInstruction = "Extract a two-sentence summary of this article and " +
		"its sentiment toward the ticker (positive, negative, or neutral)."
)

// News iterates a ticker's article list, opening each story until enough
// summaries are gathered. Time is bounded by the early-exit rule rather than
// by reading every listed article.
type News struct {
	BaseURL string

	// EarlyExitCount stops the crawl after this many successful summaries.
	// Zero means DefaultEarlyExitCount.
	EarlyExitCount int
}

// NewNews creates the news extractor.
func NewNews(baseURL string, earlyExitCount int) *News {
	return &News{BaseURL: baseURL, EarlyExitCount: earlyExitCount}
}

func (n *News) Kind() model.SourceKind { return model.SourceNews }

func (n *News) target() int {
	if n.EarlyExitCount > 0 {
		return n.EarlyExitCount
	}
	return DefaultEarlyExitCount
}

func (n *News) Extract(ctx context.Context, page session.Page, ticker model.Ticker) model.ExtractionResult {
	url := fmt.Sprintf("%s/news/%s", n.BaseURL, ticker)
	if err := page.Navigate(ctx, url); err != nil {
		return failure(ticker, n.Kind(), err)
	}

	var listing struct {
		Stories []model.NewsStory `json:"stories"`
	}
	if err := page.Extract(ctx, newsListInstruction, &listing); err != nil {
		return failure(ticker, n.Kind(), err)
	}
	if len(listing.Stories) == 0 {
		return schemaFailure(ticker, n.Kind(), "news page listed no articles")
	}

	target := n.target()
	visited := make([]model.NewsStory, 0, target)
	var lastErr error

	for _, story := range listing.Stories {
		if len(visited) >= target {
			break
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		summarized, err := n.visitStory(ctx, page, story)
		if err != nil {
			lastErr = err
			zap.L().Debug("news: article skipped",
				zap.String("ticker", string(ticker)),
				zap.String("url", story.URL),
				zap.Error(err),
			)
			continue
		}
		visited = append(visited, summarized)
	}

	if len(visited) == 0 {
		if lastErr != nil {
			return failure(ticker, n.Kind(), lastErr)
		}
		return schemaFailure(ticker, n.Kind(), "no listed article could be summarized")
	}

	sentiments := make([]string, 0, len(visited))
	bullets := make([]string, 0, len(visited))
	for _, s := range visited {
		sentiments = append(sentiments, s.Sentiment)
		bullets = append(bullets, s.Headline)
	}
	digest := &model.NewsDigest{
		Stories:          visited,
		OverallSentiment: dominantSentiment(sentiments),
		BulletPoints:     bullets,
	}

	if len(visited) < target && len(listing.Stories) >= target {
		reason := fmt.Sprintf("summarized %d of %d wanted articles", len(visited), target)
		return model.Partial(ticker, n.Kind(), digest, reason)
	}
	return model.Success(ticker, n.Kind(), digest)
}

func (n *News) visitStory(ctx context.Context, page session.Page, story model.NewsStory) (model.NewsStory, error) {
	if err := page.Navigate(ctx, story.URL); err != nil {
		return model.NewsStory{}, err
	}

	var body struct {
		Summary   string `json:"summary"`
		Sentiment string `json:"sentiment"`
	}
	if err := page.Extract(ctx, newsStoryInstruction, &body); err != nil {
		return model.NewsStory{}, err
	}

	story.Summary = body.Summary
	story.Sentiment = body.Sentiment
	return story, nil
}
