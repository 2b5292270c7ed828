package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/marketbrief/premarket-cli/internal/model"
	"github.com/marketbrief/premarket-cli/internal/session"
)

const maxKnowledgeBullets = 5

// Knowledge extracts many tickers' research bullets from one already-loaded
// edition page. It runs only under the batch coordinator: the coordinator
// owns navigation and page state, one call here reads everything from that
// single state so all tickers see the same report date.
type Knowledge struct {
	MorningURL string
	CloseURL   string
}

// NewKnowledge creates the batch knowledge extractor.
func NewKnowledge(morningURL, closeURL string) *Knowledge {
	return &Knowledge{MorningURL: morningURL, CloseURL: closeURL}
}

// PageURL returns the edition's page address.
func (k *Knowledge) PageURL(edition model.Edition) string {
	if edition == model.EditionClose {
		return k.CloseURL
	}
	return k.MorningURL
}

// Login authenticates into the research site on the given page. Credential
// values travel as secret handles; the instruction only carries placeholders.
func (k *Knowledge) Login(ctx context.Context, page session.Page, login, password session.Credential) error {
	if login.Empty() || password.Empty() {
		return eris.New("extract: knowledge login credentials not configured")
	}
	instruction := fmt.Sprintf(
		"Log in with username %%%s%% and password %%%s%%, then wait for the report index to load.",
		login.Name(), password.Name(),
	)
	if err := page.Act(ctx, instruction, login, password); err != nil {
		return eris.Wrap(err, "extract: knowledge login")
	}
	return nil
}

// ExtractEdition reads every requested ticker's slice from the current page
// state. Tickers absent from the page simply have no entry in the returned
// map; the coordinator records those as degraded.
func (k *Knowledge) ExtractEdition(ctx context.Context, page session.Page, edition model.Edition, tickers []model.Ticker) (map[model.Ticker]model.KnowledgeSlice, error) {
	if len(tickers) == 0 {
		return map[model.Ticker]model.KnowledgeSlice{}, nil
	}

	symbols := make([]string, len(tickers))
	for i, t := range tickers {
		symbols[i] = string(t)
	}
	instruction := fmt.Sprintf(
		"From the %s report currently shown, extract the report date and, for "+
			"each of these tickers, the bullet points mentioning it: %s. Skip "+
			"tickers the report does not cover.",
		edition, strings.Join(symbols, ", "),
	)

	var payload struct {
		ReportDate string `json:"report_date"`
		Entries    []struct {
			Ticker  string   `json:"ticker"`
			Bullets []string `json:"bullets"`
		} `json:"entries"`
	}
	if err := page.Extract(ctx, instruction, &payload); err != nil {
		return nil, err
	}

	wanted := make(map[model.Ticker]bool, len(tickers))
	for _, t := range tickers {
		wanted[t] = true
	}

	slices := make(map[model.Ticker]model.KnowledgeSlice, len(payload.Entries))
	for _, entry := range payload.Entries {
		ticker := model.NewTicker(entry.Ticker)
		if !wanted[ticker] || len(entry.Bullets) == 0 {
			continue
		}
		slices[ticker] = model.KnowledgeSlice{
			Edition:    edition,
			ReportDate: payload.ReportDate,
			Bullets:    clampStrings(entry.Bullets, maxKnowledgeBullets),
		}
	}
	return slices, nil
}
