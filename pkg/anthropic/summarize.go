package anthropic

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

const summarySystemPrompt = `You are a financial research assistant preparing a pre-market brief.
You receive raw text captured from a financial web page. Summarize only what
the text supports. Be concise and factual. Never invent figures.`

const extractSystemPrompt = `You are a data extraction engine. You receive raw text captured from a
web page and an instruction describing the fields to extract. Respond with a
single JSON object matching the requested shape, and nothing else. Use null
for fields the text does not support.`

// Summarizer produces plain-text summaries and structured extractions from
// page text using an Anthropic model. A single cached system prompt is shared
// across a run so repeated calls hit the warm prompt cache.
type Summarizer struct {
	client    Client
	model     string
	maxTokens int64
}

// NewSummarizer creates a Summarizer for the given model. maxTokens <= 0
// falls back to a sensible default.
func NewSummarizer(client Client, model string, maxTokens int64) *Summarizer {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Summarizer{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
	}
}

// Summarize returns a plain-text summary for the given prompt.
func (s *Summarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.CreateMessage(ctx, MessageRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    BuildCachedSystemBlocks(summarySystemPrompt),
		Messages: []Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "anthropic: summarize")
	}
	resp.Usage.LogCost(resp.Model, "summarize")

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.New("anthropic: summarize returned empty response")
	}
	return text, nil
}

// ExtractStructured asks the model to pull structured fields out of raw page
// text and unmarshals the JSON response into out. The instruction describes
// the fields to fill, in the same form the extraction layer passes to a
// managed session.
func (s *Summarizer) ExtractStructured(ctx context.Context, pageText, instruction string, out any) error {
	var sb strings.Builder
	sb.WriteString("Instruction: ")
	sb.WriteString(instruction)
	sb.WriteString("\n\nPage text:\n")
	sb.WriteString(pageText)

	resp, err := s.client.CreateMessage(ctx, MessageRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    BuildCachedSystemBlocks(extractSystemPrompt),
		Messages: []Message{
			{Role: "user", Content: sb.String()},
		},
	})
	if err != nil {
		return eris.Wrap(err, "anthropic: extract structured")
	}
	resp.Usage.LogCost(resp.Model, "extract")

	raw := stripCodeFence(resp.Text())
	if raw == "" {
		return eris.New("anthropic: extract returned empty response")
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return eris.Wrap(err, "anthropic: decode extract response")
	}
	return nil
}

// stripCodeFence removes a surrounding markdown code fence, which models
// sometimes emit despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
