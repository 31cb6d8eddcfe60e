// Package errors provides the structured error taxonomy used across the
// canary harness. Every fatal path (config, preflight, authoring, auth)
// surfaces as an AppError so the driver can map it to an exit code and a
// remediation message.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorType classifies an AppError.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypePreflight  ErrorType = "preflight"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeInternal   ErrorType = "internal"
)

// AppError is a structured error with a type, optional details and an
// optional wrapped cause.
type AppError struct {
	Type       ErrorType
	Message    string
	Details    string
	Cause      error
	StatusCode int
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails attaches free-form details, modifying the error in place.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithDetailsf attaches formatted details, modifying the error in place.
func (e *AppError) WithDetailsf(format string, args ...interface{}) *AppError {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

// New creates an AppError of the given type.
func New(errorType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errorType,
		Message:    message,
		StatusCode: statusCodeFor(errorType),
	}
}

// Newf creates an AppError with a formatted message.
func Newf(errorType ErrorType, format string, args ...interface{}) *AppError {
	return New(errorType, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error into an AppError.
func Wrap(cause error, errorType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errorType,
		Message:    message,
		Cause:      cause,
		StatusCode: statusCodeFor(errorType),
	}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(cause error, errorType ErrorType, format string, args ...interface{}) *AppError {
	return Wrap(cause, errorType, fmt.Sprintf(format, args...))
}

func statusCodeFor(errorType ErrorType) int {
	switch errorType {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeAuth:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeTimeout:
		return http.StatusRequestTimeout
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError reports invalid authored input.
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message)
}

// NewConfigError reports a configuration resolution failure.
func NewConfigError(setting, reason string) *AppError {
	return Newf(ErrorTypeConfig, "configuration error for %s: %s", setting, reason)
}

// NewPreflightError reports a failed preflight gate.
func NewPreflightError(gate string, cause error) *AppError {
	return Wrapf(cause, ErrorTypePreflight, "preflight gate failed: %s", gate)
}

// NewDatabaseError reports a state-store failure.
func NewDatabaseError(operation string, cause error) *AppError {
	return Wrapf(cause, ErrorTypeDatabase, "database operation failed: %s", operation)
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(resource string) *AppError {
	return Newf(ErrorTypeNotFound, "%s not found", resource)
}

// NewAuthError reports an authentication failure.
func NewAuthError(message string) *AppError {
	return New(ErrorTypeAuth, message)
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, errorType ErrorType) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == errorType
}
