package extract

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbrief/premarket-cli/internal/model"
	"github.com/marketbrief/premarket-cli/internal/session"
	"github.com/marketbrief/premarket-cli/pkg/browserbase"
)

// fakePage scripts page behavior per call. Extract responses are decoded
// from JSON so the fake exercises the same tag/shape path as a provider.
type fakePage struct {
	navigated []string
	acted     []string

	navErr    func(url string) error
	actErr    error
	onExtract func(call int, instruction string, out any) error

	extractCalls int
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.navigated = append(p.navigated, url)
	if p.navErr != nil {
		return p.navErr(url)
	}
	return nil
}

func (p *fakePage) Act(ctx context.Context, instruction string, secrets ...session.Credential) error {
	p.acted = append(p.acted, instruction)
	return p.actErr
}

func (p *fakePage) Extract(ctx context.Context, instruction string, out any) error {
	p.extractCalls++
	if p.onExtract == nil {
		return errors.New("no extract scripted")
	}
	return p.onExtract(p.extractCalls, instruction, out)
}

func (p *fakePage) Text(ctx context.Context) (string, error) { return "", nil }
func (p *fakePage) URL(ctx context.Context) string           { return "" }

func fill(out any, raw string) error {
	return json.Unmarshal([]byte(raw), out)
}

func TestQuote_Success(t *testing.T) {
	page := &fakePage{
		onExtract: func(_ int, _ string, out any) error {
			return fill(out, `{"price":189.12,"change":-1.4,"change_percent":-0.73,"volume":52000000}`)
		},
	}

	q := NewQuote("https://quotes.test")
	res := q.Extract(context.Background(), page, model.Ticker("AAPL"))

	require.Equal(t, model.StatusSuccess, res.Status)
	data, ok := res.Payload.(*model.QuoteData)
	require.True(t, ok)
	assert.Equal(t, 189.12, data.Price)
	assert.Equal(t, []string{"https://quotes.test/quote/AAPL"}, page.navigated)
}

func TestQuote_MissingPriceIsSchemaMismatch(t *testing.T) {
	page := &fakePage{
		onExtract: func(_ int, _ string, out any) error {
			return fill(out, `{"volume":1000}`)
		},
	}

	res := NewQuote("https://quotes.test").Extract(context.Background(), page, model.Ticker("AAPL"))
	assert.Equal(t, model.StatusFailure, res.Status)
	assert.Equal(t, model.ErrExtractionSchemaMismatch, res.ErrorKind)
}

func TestQuote_NavigationFailure(t *testing.T) {
	page := &fakePage{
		navErr: func(string) error { return errors.New("blocked by interstitial") },
	}

	res := NewQuote("https://quotes.test").Extract(context.Background(), page, model.Ticker("AAPL"))
	assert.Equal(t, model.StatusFailure, res.Status)
	assert.Equal(t, model.ErrNavigationFailure, res.ErrorKind)
}

func TestAnalysis_OpensPanelBeforeExtract(t *testing.T) {
	page := &fakePage{
		onExtract: func(_ int, _ string, out any) error {
			return fill(out, `{"sentiment":"bullish","summary":"Strong pre-market setup.","key_points":["a","b","c","d","e"]}`)
		},
	}

	res := NewAnalysis("https://quotes.test").Extract(context.Background(), page, model.Ticker("NVDA"))

	require.Equal(t, model.StatusSuccess, res.Status)
	require.Len(t, page.acted, 1)
	data := res.Payload.(*model.AIAnalysis)
	assert.Equal(t, "bullish", data.Sentiment)
	assert.Len(t, data.KeyPoints, maxKeyPoints)
}

func TestAnalysis_ActionUnsupported(t *testing.T) {
	page := &fakePage{actErr: session.ErrActionUnsupported}

	res := NewAnalysis("https://quotes.test").Extract(context.Background(), page, model.Ticker("NVDA"))
	assert.Equal(t, model.StatusFailure, res.Status)
	assert.Equal(t, model.ErrNavigationFailure, res.ErrorKind)
	// The extract call must never run once the panel failed to open.
	assert.Zero(t, page.extractCalls)
}

func newsListing(n int) string {
	stories := make([]map[string]string, n)
	for i := range stories {
		stories[i] = map[string]string{
			"headline": "story",
			"url":      "https://news.test/a",
		}
	}
	data, _ := json.Marshal(map[string]any{"stories": stories})
	return string(data)
}

func TestNews_EarlyExitsAfterTargetSuccesses(t *testing.T) {
	page := &fakePage{
		onExtract: func(call int, _ string, out any) error {
			if call == 1 {
				return fill(out, newsListing(10))
			}
			return fill(out, `{"summary":"s","sentiment":"positive"}`)
		},
	}

	res := NewNews("https://news.test", 3).Extract(context.Background(), page, model.Ticker("AAPL"))

	require.Equal(t, model.StatusSuccess, res.Status)
	digest := res.Payload.(*model.NewsDigest)
	assert.Len(t, digest.Stories, 3)
	assert.Equal(t, "positive", digest.OverallSentiment)
	// One listing extract plus exactly three story extracts: the other seven
	// listed articles are never opened.
	assert.Equal(t, 4, page.extractCalls)
}

func TestNews_PartialWhenSomeArticlesFail(t *testing.T) {
	page := &fakePage{
		onExtract: func(call int, _ string, out any) error {
			switch call {
			case 1:
				return fill(out, newsListing(4))
			case 2:
				return errors.New("paywalled")
			default:
				return fill(out, `{"summary":"s","sentiment":"neutral"}`)
			}
		},
	}

	res := NewNews("https://news.test", 4).Extract(context.Background(), page, model.Ticker("AAPL"))

	require.Equal(t, model.StatusPartialSuccess, res.Status)
	assert.Contains(t, res.DegradedReason, "3 of 4")
	assert.Len(t, res.Payload.(*model.NewsDigest).Stories, 3)
}

func TestNews_AllArticlesFail(t *testing.T) {
	page := &fakePage{
		onExtract: func(call int, _ string, out any) error {
			if call == 1 {
				return fill(out, newsListing(2))
			}
			return errors.New("paywalled")
		},
	}

	res := NewNews("https://news.test", 3).Extract(context.Background(), page, model.Ticker("AAPL"))
	assert.Equal(t, model.StatusFailure, res.Status)
	assert.Equal(t, model.ErrNavigationFailure, res.ErrorKind)
}

func TestNews_EmptyListingIsSchemaMismatch(t *testing.T) {
	page := &fakePage{
		onExtract: func(int, string, any) error { return nil },
	}

	res := NewNews("https://news.test", 3).Extract(context.Background(), page, model.Ticker("AAPL"))
	assert.Equal(t, model.ErrExtractionSchemaMismatch, res.ErrorKind)
}

func TestKnowledge_ExtractEditionFiltersAndClamps(t *testing.T) {
	page := &fakePage{
		onExtract: func(_ int, instruction string, out any) error {
			assert.Contains(t, instruction, "AAPL")
			assert.Contains(t, instruction, "NVDA")
			return fill(out, `{
				"report_date": "2026-08-28",
				"entries": [
					{"ticker": "aapl", "bullets": ["b1","b2","b3","b4","b5","b6"]},
					{"ticker": "TSLA", "bullets": ["ignored"]},
					{"ticker": "MSFT", "bullets": []}
				]
			}`)
		},
	}

	k := NewKnowledge("https://research.test/morning", "https://research.test/close")
	slices, err := k.ExtractEdition(context.Background(), page, model.EditionMorning,
		[]model.Ticker{"AAPL", "NVDA", "MSFT"})
	require.NoError(t, err)

	require.Len(t, slices, 1)
	slice := slices["AAPL"]
	assert.Equal(t, model.EditionMorning, slice.Edition)
	assert.Equal(t, "2026-08-28", slice.ReportDate)
	assert.Len(t, slice.Bullets, maxKnowledgeBullets)
}

func TestKnowledge_LoginUsesPlaceholders(t *testing.T) {
	page := &fakePage{}
	k := NewKnowledge("https://research.test/morning", "https://research.test/close")

	login := session.NewCredential("research_login", "trader")
	password := session.NewCredential("research_password", "hunter2")
	require.NoError(t, k.Login(context.Background(), page, login, password))

	require.Len(t, page.acted, 1)
	assert.Contains(t, page.acted[0], "%research_login%")
	assert.Contains(t, page.acted[0], "%research_password%")
	assert.NotContains(t, page.acted[0], "hunter2")
}

func TestKnowledge_LoginRequiresCredentials(t *testing.T) {
	k := NewKnowledge("https://research.test/morning", "https://research.test/close")
	err := k.Login(context.Background(), &fakePage{},
		session.NewCredential("research_login", ""), session.NewCredential("research_password", "x"))
	assert.Error(t, err)
}

func TestMacro_Success(t *testing.T) {
	page := &fakePage{
		onExtract: func(_ int, _ string, out any) error {
			return fill(out, `{"morning":{"date":"2026-08-28","summary":"Futures up."}}`)
		},
	}

	res := NewMacro("https://macro.test/daily").Extract(context.Background(), page, model.Ticker(""))
	require.Equal(t, model.StatusSuccess, res.Status)
	assert.Equal(t, "Futures up.", res.Payload.(*model.MacroOverview).Morning.Summary)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want model.ErrorKind
	}{
		{"deadline", context.DeadlineExceeded, model.ErrTimeout},
		{"canceled", context.Canceled, model.ErrTimeout},
		{"expired session", &browserbase.APIError{StatusCode: 410}, model.ErrSessionProviderFailure},
		{"provider 500", &browserbase.APIError{StatusCode: 500}, model.ErrNavigationFailure},
		{"act unsupported", session.ErrActionUnsupported, model.ErrNavigationFailure},
		{"generic", errors.New("boom"), model.ErrNavigationFailure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, _ := Classify(tc.err)
			assert.Equal(t, tc.want, kind)
		})
	}
}
