package model

// ErrorKind classifies a failed (ticker, source) unit for the degradation
// summary. Every failure below the orchestrator maps to exactly one kind.
type ErrorKind string

const (
	ErrTimeout                  ErrorKind = "timeout"
	ErrNavigationFailure        ErrorKind = "navigation_failure"
	ErrExtractionSchemaMismatch ErrorKind = "extraction_schema_mismatch"
	ErrSessionProviderFailure   ErrorKind = "session_provider_failure"
	ErrFallbackFailure          ErrorKind = "fallback_failure"
)

// ResultStatus tags the outcome variant of an ExtractionResult.
type ResultStatus string

const (
	StatusSuccess        ResultStatus = "success"
	StatusPartialSuccess ResultStatus = "partial_success"
	StatusFailure        ResultStatus = "failure"
)

// ExtractionResult is the tagged outcome for one (Ticker, SourceKind) unit.
// Exactly one variant is ever produced per unit: a Success or PartialSuccess
// carries a payload, a Failure carries an ErrorKind and detail.
type ExtractionResult struct {
	Ticker  Ticker       `json:"ticker"`
	Kind    SourceKind   `json:"kind"`
	Status  ResultStatus `json:"status"`
	Payload Payload      `json:"payload,omitempty"`

	// DegradedReason is set only on PartialSuccess.
	DegradedReason string `json:"degraded_reason,omitempty"`

	// ErrorKind and Detail are set only on Failure.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Success builds a Success result.
func Success(ticker Ticker, kind SourceKind, payload Payload) ExtractionResult {
	return ExtractionResult{Ticker: ticker, Kind: kind, Status: StatusSuccess, Payload: payload}
}

// Partial builds a PartialSuccess result carrying a usable but degraded payload.
func Partial(ticker Ticker, kind SourceKind, payload Payload, reason string) ExtractionResult {
	return ExtractionResult{Ticker: ticker, Kind: kind, Status: StatusPartialSuccess, Payload: payload, DegradedReason: reason}
}

// Failure builds a Failure result.
func Failure(ticker Ticker, kind SourceKind, errKind ErrorKind, detail string) ExtractionResult {
	return ExtractionResult{Ticker: ticker, Kind: kind, Status: StatusFailure, ErrorKind: errKind, Detail: detail}
}

// OK reports whether the result carries a usable payload.
func (r ExtractionResult) OK() bool {
	return r.Status == StatusSuccess || r.Status == StatusPartialSuccess
}
