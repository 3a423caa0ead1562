package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

const (
	// ErrSchemaViolation means a structured generation reply could not be
	// parsed into the requested schema. Not retried automatically; callers
	// may retry the whole stage once with the same prompt.
	ErrSchemaViolation ErrorCode = "SCHEMA_VIOLATION"

	// ErrRetrievalUnavailable means the retrieval collaborator failed or
	// timed out. Fatal to the current turn: the route decision already
	// opted into retrieval, so no silent no-context fallback.
	ErrRetrievalUnavailable ErrorCode = "RETRIEVAL_UNAVAILABLE"

	// ErrSearchUnavailable means a web search call failed. Non-fatal per
	// query during wrap-up; the failed query is skipped.
	ErrSearchUnavailable ErrorCode = "SEARCH_UNAVAILABLE"

	// ErrHistoryCorrupt means a stored turn payload failed to decode.
	// Fatal for the session.
	ErrHistoryCorrupt ErrorCode = "HISTORY_CORRUPT"

	// ErrSessionClosed means the session reached its turn limit and no
	// further input is accepted.
	ErrSessionClosed ErrorCode = "SESSION_CLOSED"

	// ErrGenerationFailed means the generation collaborator returned an
	// error or an empty reply.
	ErrGenerationFailed ErrorCode = "GENERATION_FAILED"

	// ErrInvalidConfig means the configuration failed load-time validation.
	ErrInvalidConfig ErrorCode = "INVALID_CONFIG"

	// ErrUpstreamTimeout and ErrUpstreamError classify provider transport
	// failures underneath the taxonomy above.
	ErrUpstreamTimeout ErrorCode = "UPSTREAM_TIMEOUT"
	ErrUpstreamError   ErrorCode = "UPSTREAM_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// GetErrorCode extracts the error code from an error, unwrapping as needed.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
