package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbrief/premarket-cli/pkg/browserbase"
)

type fakeBrowserbase struct {
	created   []browserbase.CreateSessionRequest
	released  []string
	navigated []browserbase.NavigateRequest
	acted     []browserbase.ActRequest
	extracted []browserbase.ExtractRequest

	extractData json.RawMessage
	openErr     error
}

func (f *fakeBrowserbase) CreateSession(ctx context.Context, req browserbase.CreateSessionRequest) (*browserbase.Session, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.created = append(f.created, req)
	return &browserbase.Session{ID: "sess-1"}, nil
}

func (f *fakeBrowserbase) ReleaseSession(ctx context.Context, id string) error {
	f.released = append(f.released, id)
	return nil
}

func (f *fakeBrowserbase) Navigate(ctx context.Context, id string, req browserbase.NavigateRequest) error {
	f.navigated = append(f.navigated, req)
	return nil
}

func (f *fakeBrowserbase) Act(ctx context.Context, id string, req browserbase.ActRequest) error {
	f.acted = append(f.acted, req)
	return nil
}

func (f *fakeBrowserbase) Extract(ctx context.Context, id string, req browserbase.ExtractRequest) (json.RawMessage, error) {
	f.extracted = append(f.extracted, req)
	return f.extractData, nil
}

func (f *fakeBrowserbase) PageText(ctx context.Context, id string) (*browserbase.PageTextResponse, error) {
	return &browserbase.PageTextResponse{URL: "https://example.com/q", Text: "hello"}, nil
}

func TestManaged_OpenCloseLifecycle(t *testing.T) {
	fake := &fakeBrowserbase{}
	provider := NewManaged(fake, ManagedConfig{SolveCaptchas: true})

	handle, err := provider.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sess-1", handle.ID())
	require.Len(t, fake.created, 1)
	assert.True(t, fake.created[0].SolveCaptchas)

	require.NoError(t, handle.Close())
	assert.Equal(t, []string{"sess-1"}, fake.released)
}

func TestManaged_ActKeepsSecretsOutOfInstruction(t *testing.T) {
	fake := &fakeBrowserbase{}
	provider := NewManaged(fake, ManagedConfig{})

	handle, err := provider.Open(context.Background())
	require.NoError(t, err)
	defer handle.Close()

	cred := NewCredential("password", "hunter2")
	err = handle.Page().Act(context.Background(),
		"type %password% into the password field", cred)
	require.NoError(t, err)

	require.Len(t, fake.acted, 1)
	assert.Contains(t, fake.acted[0].Instruction, "%password%")
	assert.NotContains(t, fake.acted[0].Instruction, "hunter2")
	assert.Equal(t, map[string]string{"password": "hunter2"}, fake.acted[0].Secrets)
}

func TestManaged_ExtractDecodesIntoTarget(t *testing.T) {
	fake := &fakeBrowserbase{
		extractData: json.RawMessage(`{"price":"189.12","volume":"52M"}`),
	}
	provider := NewManaged(fake, ManagedConfig{})

	handle, err := provider.Open(context.Background())
	require.NoError(t, err)
	defer handle.Close()

	var out struct {
		Price  string `json:"price"`
		Volume string `json:"volume"`
	}
	err = handle.Page().Extract(context.Background(), "extract the quote", &out)
	require.NoError(t, err)
	assert.Equal(t, "189.12", out.Price)
	assert.Equal(t, "52M", out.Volume)
	require.Len(t, fake.extracted, 1)
	assert.NotEmpty(t, fake.extracted[0].Schema)
}

func TestManaged_PageTextAndURL(t *testing.T) {
	fake := &fakeBrowserbase{}
	provider := NewManaged(fake, ManagedConfig{})

	handle, err := provider.Open(context.Background())
	require.NoError(t, err)
	defer handle.Close()

	text, err := handle.Page().Text(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, "https://example.com/q", handle.Page().URL(context.Background()))
}
