// Package session abstracts leased browser sessions over interchangeable
// providers: the managed remote provider for production runs and a local
// Chrome provider for development.
package session

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// ErrActionUnsupported is returned by providers that cannot execute
// natural-language page actions.
var ErrActionUnsupported = eris.New("session: natural-language actions unsupported by this provider")

// Page exposes the driving capabilities one extractor needs. Implementations
// must not be shared across concurrent extractor calls.
type Page interface {
	// Navigate loads a URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error

	// Act performs a natural-language page action. Credential placeholders in
	// the instruction are resolved from secrets without the values ever
	// appearing in the instruction itself.
	Act(ctx context.Context, instruction string, secrets ...Credential) error

	// Extract fills out from the current page state according to instruction.
	// out must be a pointer; schema inference happens provider-side.
	Extract(ctx context.Context, instruction string, out any) error

	// Text returns the page's visible text, used by the non-browser fallback.
	Text(ctx context.Context) (string, error)

	// URL returns the page's current address, best effort.
	URL(ctx context.Context) string
}

// Handle is one leased isolated browser session. It is owned by exactly one
// runner invocation at a time and must be closed on every exit path.
type Handle interface {
	ID() string
	Page() Page
	Close() error
}

// Provider opens isolated sessions. Open may fail with a provider-side error
// which the runner translates into the failure taxonomy.
type Provider interface {
	Open(ctx context.Context) (Handle, error)
	Name() string
}

// SchemaFor marshals a Go value's zero shape into a JSON Schema-ish document
// used by extract-capable providers. Keeping it here means extractors stay
// provider-agnostic.
func SchemaFor(out any) (json.RawMessage, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return nil, eris.Wrap(err, "session: marshal extract shape")
	}
	return data, nil
}
