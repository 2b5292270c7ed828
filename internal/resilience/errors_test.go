package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"

	"github.com/marketbrief/premarket-cli/pkg/browserbase"
)

func TestIsTransient_NilError(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	err := NewTransientError(errors.New("rate limited"), 429)
	if !IsTransient(err) {
		t.Error("TransientError should be transient")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !IsTransient(wrapped) {
		t.Error("wrapped TransientError should be transient")
	}
}

func TestIsTransient_ProviderAPIErrors(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		// Expired or unknown session: the handle is unrecoverable, so
		// retrying the same call would fail identically.
		{http.StatusGone, false},
		{http.StatusNotFound, false},
	}

	for _, tc := range cases {
		apiErr := &browserbase.APIError{StatusCode: tc.status, Body: "x"}
		wrapped := eris.Wrap(apiErr, "browserbase: act")
		if got := IsTransient(wrapped); got != tc.transient {
			t.Errorf("status %d: expected transient=%v, got %v", tc.status, tc.transient, got)
		}
	}
}

func TestIsTransient_SyscallErrors(t *testing.T) {
	if !IsTransient(fmt.Errorf("dial: %w", syscall.ECONNRESET)) {
		t.Error("ECONNRESET should be transient")
	}
	if !IsTransient(fmt.Errorf("dial: %w", syscall.ECONNREFUSED)) {
		t.Error("ECONNREFUSED should be transient")
	}
}

func TestIsTransient_StringPatterns(t *testing.T) {
	if !IsTransient(errors.New("read tcp: connection reset by peer")) {
		t.Error("connection reset message should be transient")
	}
	if IsTransient(errors.New("invalid watchlist entry")) {
		t.Error("domain error should not be transient")
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("status %d should be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 410} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("status %d should not be transient", code)
		}
	}
}
