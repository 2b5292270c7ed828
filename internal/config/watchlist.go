package config

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/marketbrief/premarket-cli/internal/model"
)

// LoadWatchlist reads a JSON array of ticker symbols from path. Symbols are
// normalized and deduplicated, preserving first-seen order.
func LoadWatchlist(path string) ([]model.Ticker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read watchlist %s", path)
	}

	var symbols []string
	if err := json.Unmarshal(data, &symbols); err != nil {
		return nil, eris.Wrapf(err, "config: parse watchlist %s", path)
	}

	seen := make(map[model.Ticker]bool, len(symbols))
	tickers := make([]model.Ticker, 0, len(symbols))
	for _, s := range symbols {
		t := model.NewTicker(s)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tickers = append(tickers, t)
	}
	return tickers, nil
}
