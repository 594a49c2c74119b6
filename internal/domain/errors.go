package domain

import (
	"errors"
	"fmt"
	"time"
)

// Validation failures. These are never retried; the caller must correct
// its input.
var (
	// ErrDuplicatePortfolio - the request references the same portfolio twice.
	ErrDuplicatePortfolio = errors.New("portfolio identifiers must be pairwise distinct")
	// ErrInsufficientSelection - fewer than two portfolios supplied.
	ErrInsufficientSelection = errors.New("at least two portfolios are required")
	// ErrInvalidDateRange - start >= end, or a date failed to parse.
	ErrInvalidDateRange = errors.New("invalid date range")
)

// ErrorKind classifies a request failure. The kind drives retry semantics
// and how the failure is logged, never whether the engine keeps running:
// all failures are localized to their (facet, comparisonId).
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindTransport   ErrorKind = "transport"
	KindRateLimited ErrorKind = "rate_limited"
	KindServer      ErrorKind = "server"
	KindAPI         ErrorKind = "api"
)

// Backoff windows attached to transient errors. The orchestrator only
// marks errors retry-eligible; executing the retry is the caller's call.
const (
	TransportRetryAfter   = 2 * time.Second
	RateLimitedRetryAfter = 30 * time.Second
)

// ClassifiedError is the structured error carried by a Failure facet state.
type ClassifiedError struct {
	Kind       ErrorKind     `json:"kind"`
	StatusCode int           `json:"status_code,omitempty"`
	Code       string        `json:"code,omitempty"`
	Message    string        `json:"message"`
	Transient  bool          `json:"transient"`
	RetryAfter time.Duration `json:"retry_after_ms,omitempty"`
	Err        error         `json:"-"`
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s error [%s]: %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// NewValidationError wraps a validation failure into a classified error.
func NewValidationError(err error) *ClassifiedError {
	return &ClassifiedError{
		Kind:    KindValidation,
		Message: err.Error(),
		Err:     err,
	}
}

// NewTransportError classifies a network-level failure (no HTTP status).
// Transient: a single delayed retry is reasonable.
func NewTransportError(err error) *ClassifiedError {
	return &ClassifiedError{
		Kind:       KindTransport,
		Message:    err.Error(),
		Transient:  true,
		RetryAfter: TransportRetryAfter,
		Err:        err,
	}
}

// NewRateLimitedError classifies an HTTP 429. Transient, but with a longer
// backoff window than a generic transport failure. retryAfter overrides the
// default window when the server supplied one.
func NewRateLimitedError(status int, retryAfter time.Duration) *ClassifiedError {
	if retryAfter <= 0 {
		retryAfter = RateLimitedRetryAfter
	}
	return &ClassifiedError{
		Kind:       KindRateLimited,
		StatusCode: status,
		Message:    "analysis service rate limit exceeded",
		Transient:  true,
		RetryAfter: retryAfter,
	}
}

// NewServerError classifies a 5xx response. Logged as critical by the
// orchestrator but does not halt it; there is no circuit breaker.
func NewServerError(status int, body string) *ClassifiedError {
	return &ClassifiedError{
		Kind:       KindServer,
		StatusCode: status,
		Message:    fmt.Sprintf("analysis service returned status %d: %s", status, body),
	}
}

// NewAPIError classifies a structured 4xx API error with code and message.
func NewAPIError(status int, code, message string) *ClassifiedError {
	return &ClassifiedError{
		Kind:       KindAPI,
		StatusCode: status,
		Code:       code,
		Message:    message,
	}
}

// AsClassified extracts a ClassifiedError from err, wrapping unknown errors
// as transport failures so that every Failure state carries structure.
func AsClassified(err error) *ClassifiedError {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}
	return NewTransportError(err)
}
