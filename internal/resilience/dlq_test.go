package resilience

import (
	"errors"
	"testing"

	"github.com/marketbrief/premarket-cli/internal/model"
)

func TestDLQEntry_CanRetry(t *testing.T) {
	e := DLQEntry{RetryCount: 2, MaxRetries: 3}
	if !e.CanRetry() {
		t.Error("expected retry allowed below max")
	}
	e.RetryCount = 3
	if e.CanRetry() {
		t.Error("expected retry denied at max")
	}
}

func TestClassifyError(t *testing.T) {
	if got := ClassifyError(NewTransientError(errors.New("x"), 503)); got != "transient" {
		t.Errorf("expected transient, got %q", got)
	}
	if got := ClassifyError(errors.New("schema mismatch")); got != "permanent" {
		t.Errorf("expected permanent, got %q", got)
	}
}

func TestClassifyErrorKind(t *testing.T) {
	transient := []model.ErrorKind{
		model.ErrTimeout,
		model.ErrSessionProviderFailure,
		model.ErrNavigationFailure,
	}
	for _, k := range transient {
		if got := ClassifyErrorKind(k); got != "transient" {
			t.Errorf("%s: expected transient, got %q", k, got)
		}
	}

	permanent := []model.ErrorKind{
		model.ErrExtractionSchemaMismatch,
		model.ErrFallbackFailure,
	}
	for _, k := range permanent {
		if got := ClassifyErrorKind(k); got != "permanent" {
			t.Errorf("%s: expected permanent, got %q", k, got)
		}
	}
}
