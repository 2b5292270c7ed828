package resilience

import (
	"time"

	"github.com/marketbrief/premarket-cli/internal/model"
)

// DLQEntry records a failed extraction that can be retried in a later run.
type DLQEntry struct {
	ID           string           `json:"id"`
	RunID        string           `json:"run_id"`
	Ticker       model.Ticker     `json:"ticker"`
	Kind         model.SourceKind `json:"kind"`
	Error        string           `json:"error"`
	ErrorKind    model.ErrorKind  `json:"error_kind"`
	ErrorType    string           `json:"error_type"` // "transient" or "permanent"
	RetryCount   int              `json:"retry_count"`
	MaxRetries   int              `json:"max_retries"`
	NextRetryAt  time.Time        `json:"next_retry_at"`
	CreatedAt    time.Time        `json:"created_at"`
	LastFailedAt time.Time        `json:"last_failed_at"`
}

// DLQFilter specifies criteria for querying the dead letter queue.
type DLQFilter struct {
	ErrorType string `json:"error_type,omitempty"` // "transient", "permanent", or "" for all
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry returns true if this entry hasn't exceeded its max retry count.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}

// ClassifyErrorKind maps the result taxonomy to a retry class. Timeouts and
// provider failures may clear up on a later run; schema mismatches and failed
// fallbacks will not until the extractor changes.
func ClassifyErrorKind(kind model.ErrorKind) string {
	switch kind {
	case model.ErrTimeout, model.ErrSessionProviderFailure, model.ErrNavigationFailure:
		return "transient"
	default:
		return "permanent"
	}
}
