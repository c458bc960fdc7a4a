package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers and pipeline components MUST use these constants instead of
// hardcoded strings.
const (
	// Validation (400): rejected synchronously, never enters the queue.
	ErrCodeInvalidJobRecipient ErrorCode = "invalid_job_missing_recipient"
	ErrCodeInvalidJobSubject   ErrorCode = "invalid_job_missing_subject"
	ErrCodeInvalidJobChannel   ErrorCode = "invalid_job_unknown_channel"
	ErrCodeInvalidJobType      ErrorCode = "invalid_job_unknown_type"
	ErrCodeInvalidJobContent   ErrorCode = "invalid_job_missing_content"
	ErrCodeValidationCursor    ErrorCode = "invalid_cursor"
	ErrCodeValidationJSON      ErrorCode = "invalid_json_body"
	ErrCodeValidationField     ErrorCode = "invalid_field"

	// Not Found (404)
	ErrCodeNotFoundJob     ErrorCode = "not_found_job"
	ErrCodeNotFoundContact ErrorCode = "not_found_contact"

	// Conflict (409)
	ErrCodeConflictNotCancellable ErrorCode = "conflict_not_cancellable"

	// Pipeline-internal, never surfaced to the API caller.
	ErrCodeStaleTransition ErrorCode = "stale_transition"
	ErrCodeExhausted       ErrorCode = "exhausted"

	// Transport (retry path)
	ErrCodeTransportTimeout     ErrorCode = "transport_timeout"
	ErrCodeTransportRejected    ErrorCode = "transport_rejected"
	ErrCodeTransportRateLimited ErrorCode = "transport_rate_limited"
	ErrCodeTransportUnavailable ErrorCode = "transport_unavailable"

	// Text generation (non-fatal; summary builder falls back)
	ErrCodeGenerationUnavailable ErrorCode = "generation_unavailable"

	// Internal (500)
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "invalid_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict
	case strings.HasPrefix(s, "transport_"), s == string(ErrCodeGenerationUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type used throughout the platform.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsInvalidJob reports whether err is a synchronous job validation failure.
// These are the only pipeline errors that propagate to the original caller.
func IsInvalidJob(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return strings.HasPrefix(string(appErr.Code), "invalid_job_")
}

// IsStaleTransition reports whether err is the concurrency guard tripping.
// Workers treat it as "someone else owns this job" and abandon silently.
func IsStaleTransition(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == ErrCodeStaleTransition
}
