package model

import "encoding/json"

// Payload is the typed data carried by a successful extraction. Concrete
// payload types are one-to-one with SourceKinds; KnowledgeSlice appears twice
// per ticker (one per edition) folded into a single KnowledgeData value.
type Payload interface {
	PayloadKind() SourceKind
}

// QuoteData holds the pre-market quote statistics for one ticker.
type QuoteData struct {
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	DayRange      string  `json:"day_range,omitempty"`
	YearRange     string  `json:"year_range,omitempty"`
}

func (QuoteData) PayloadKind() SourceKind { return SourceQuote }

// AIAnalysis holds the AI-analysis panel output for one ticker.
type AIAnalysis struct {
	Sentiment string   `json:"sentiment,omitempty"` // bullish, bearish, mixed, neutral
	Summary   string   `json:"summary,omitempty"`
	KeyPoints []string `json:"key_points,omitempty"` // at most four
}

func (AIAnalysis) PayloadKind() SourceKind { return SourceAIAnalysis }

// NewsStory is one article visited during a news extraction.
type NewsStory struct {
	Headline  string `json:"headline"`
	URL       string `json:"url"`
	Source    string `json:"source,omitempty"`
	Age       string `json:"age,omitempty"` // e.g. "2 hours ago"
	Summary   string `json:"summary,omitempty"`
	Sentiment string `json:"sentiment,omitempty"` // positive, negative, neutral
}

// NewsDigest aggregates the visited stories plus a cross-story summary.
type NewsDigest struct {
	Stories          []NewsStory `json:"stories"`
	OverallSentiment string      `json:"overall_sentiment,omitempty"`
	BulletPoints     []string    `json:"bullet_points,omitempty"`
}

func (NewsDigest) PayloadKind() SourceKind { return SourceNews }

// Edition identifies which fixed report state a knowledge slice came from.
type Edition string

const (
	EditionMorning Edition = "morning"
	EditionClose   Edition = "close"
)

// KnowledgeSlice is one ticker's extract from a single edition page state.
type KnowledgeSlice struct {
	Edition    Edition  `json:"edition"`
	ReportDate string   `json:"report_date,omitempty"`
	Bullets    []string `json:"bullets,omitempty"` // at most five
}

// KnowledgeData folds both edition slices for one ticker.
type KnowledgeData struct {
	Morning KnowledgeSlice `json:"morning"`
	Close   KnowledgeSlice `json:"close"`
	// Sentiment and Summary are distilled across both editions.
	Sentiment string `json:"sentiment,omitempty"`
	Summary   string `json:"summary,omitempty"`
}

func (KnowledgeData) PayloadKind() SourceKind { return SourceKnowledge }

// MacroEdition is the macro extract from one edition page.
type MacroEdition struct {
	Date    string   `json:"date,omitempty"`
	URL     string   `json:"url,omitempty"`
	Summary string   `json:"summary,omitempty"`
	Bullets []string `json:"bullets,omitempty"`
}

// MacroOverview holds the market-wide overview, independent of any ticker.
type MacroOverview struct {
	Morning MacroEdition `json:"morning"`
	Close   MacroEdition `json:"close"`
}

func (MacroOverview) PayloadKind() SourceKind { return SourceMacro }

// taggedPayload keeps ExtractionResult JSON round-trippable for the store:
// the payload is persisted alongside its kind tag.
type taggedPayload struct {
	Kind SourceKind      `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON implements json.Marshaler for results carrying a payload.
func (r ExtractionResult) MarshalJSON() ([]byte, error) {
	type alias ExtractionResult
	out := struct {
		alias
		Payload *taggedPayload `json:"payload,omitempty"`
	}{alias: alias(r)}

	if r.Payload != nil {
		data, err := json.Marshal(r.Payload)
		if err != nil {
			return nil, err
		}
		out.Payload = &taggedPayload{Kind: r.Payload.PayloadKind(), Data: data}
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the concrete payload type from its kind tag.
func (r *ExtractionResult) UnmarshalJSON(data []byte) error {
	type alias ExtractionResult
	in := struct {
		*alias
		Payload *taggedPayload `json:"payload,omitempty"`
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Payload == nil {
		return nil
	}

	var payload Payload
	switch in.Payload.Kind {
	case SourceQuote:
		payload = &QuoteData{}
	case SourceAIAnalysis:
		payload = &AIAnalysis{}
	case SourceNews:
		payload = &NewsDigest{}
	case SourceKnowledge:
		payload = &KnowledgeData{}
	case SourceMacro:
		payload = &MacroOverview{}
	default:
		return nil
	}
	if err := json.Unmarshal(in.Payload.Data, payload); err != nil {
		return err
	}
	r.Payload = payload
	return nil
}
