// Package browserbase is a client for the managed browser-session provider.
// Each session is an isolated, provider-hosted browser context with AI-driven
// page commands (navigate, act, extract) and a hard provider-side lifetime.
package browserbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Default base URL for the provider API.
const defaultBaseURL = "https://api.browserbase.dev/v1"

// Client defines the session-provider operations.
type Client interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error)
	ReleaseSession(ctx context.Context, id string) error
	Navigate(ctx context.Context, id string, req NavigateRequest) error
	Act(ctx context.Context, id string, req ActRequest) error
	Extract(ctx context.Context, id string, req ExtractRequest) (json.RawMessage, error)
	PageText(ctx context.Context, id string) (*PageTextResponse, error)
}

// CreateSessionRequest is the body for POST /sessions.
type CreateSessionRequest struct {
	// Stealth and captcha handling are provider-side concerns; the flags are
	// forwarded verbatim.
	AdvancedStealth bool `json:"advancedStealth,omitempty"`
	SolveCaptchas   bool `json:"solveCaptchas"`
	UseProxies      bool `json:"useProxies,omitempty"`

	// TTLSeconds asks the provider for a session lifetime; the provider may
	// impose a lower ceiling.
	TTLSeconds int `json:"ttlSeconds,omitempty"`
}

// Session is the response from POST /sessions.
type Session struct {
	ID         string `json:"id"`
	ExpiresAt  string `json:"expiresAt,omitempty"`
	TTLSeconds int    `json:"ttlSeconds,omitempty"`
}

// NavigateRequest is the body for POST /sessions/{id}/navigate.
type NavigateRequest struct {
	URL       string `json:"url"`
	WaitUntil string `json:"waitUntil,omitempty"` // e.g. "networkidle"
}

// ActRequest is the body for POST /sessions/{id}/act. Instruction is a
// natural-language page action. Secrets referenced as %name% placeholders are
// substituted server-side from the Secrets map, so the instruction itself
// never carries a credential value.
type ActRequest struct {
	Instruction string            `json:"instruction"`
	Secrets     map[string]string `json:"secrets,omitempty"`
}

// ExtractRequest is the body for POST /sessions/{id}/extract. Schema is a
// JSON Schema document the provider fills from the current page state.
type ExtractRequest struct {
	Instruction string          `json:"instruction"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

// extractResponse is the response envelope from POST /sessions/{id}/extract.
type extractResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// PageTextResponse is the response from GET /sessions/{id}/text.
type PageTextResponse struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// APIError is returned when the provider responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("browserbase: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsSessionExpired reports whether the provider terminated the session
// (expired lifetime or unknown session ID).
func (e *APIError) IsSessionExpired() bool {
	return e.StatusCode == http.StatusGone || e.StatusCode == http.StatusNotFound
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey    string
	projectID string
	baseURL   string
	http      *http.Client
}

// NewClient creates a new provider client.
func NewClient(apiKey, projectID string, opts ...Option) Client {
	c := &httpClient{
		apiKey:    apiKey,
		projectID: projectID,
		baseURL:   defaultBaseURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	var resp Session
	if err := c.post(ctx, "/sessions", req, &resp); err != nil {
		return nil, eris.Wrap(err, "browserbase: create session")
	}
	return &resp, nil
}

func (c *httpClient) ReleaseSession(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/sessions/%s", c.baseURL, id), nil)
	if err != nil {
		return eris.Wrap(err, "browserbase: create release request")
	}
	c.setHeaders(req)
	if err := c.do(req, nil); err != nil {
		return eris.Wrap(err, fmt.Sprintf("browserbase: release session %s", id))
	}
	return nil
}

func (c *httpClient) Navigate(ctx context.Context, id string, req NavigateRequest) error {
	if err := c.post(ctx, fmt.Sprintf("/sessions/%s/navigate", id), req, nil); err != nil {
		return eris.Wrap(err, "browserbase: navigate")
	}
	return nil
}

func (c *httpClient) Act(ctx context.Context, id string, req ActRequest) error {
	if err := c.post(ctx, fmt.Sprintf("/sessions/%s/act", id), req, nil); err != nil {
		return eris.Wrap(err, "browserbase: act")
	}
	return nil
}

func (c *httpClient) Extract(ctx context.Context, id string, req ExtractRequest) (json.RawMessage, error) {
	var resp extractResponse
	if err := c.post(ctx, fmt.Sprintf("/sessions/%s/extract", id), req, &resp); err != nil {
		return nil, eris.Wrap(err, "browserbase: extract")
	}
	if !resp.Success {
		return nil, eris.New("browserbase: extract returned no data")
	}
	return resp.Data, nil
}

func (c *httpClient) PageText(ctx context.Context, id string) (*PageTextResponse, error) {
	var resp PageTextResponse
	if err := c.get(ctx, fmt.Sprintf("/sessions/%s/text", id), &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("browserbase: page text %s", id))
	}
	return &resp, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	c.setHeaders(req)

	return c.do(req, out)
}

func (c *httpClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.projectID != "" {
		req.Header.Set("X-Project-ID", c.projectID)
	}
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}
