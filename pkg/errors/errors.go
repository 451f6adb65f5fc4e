package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a fetch error with type information.
// Code carries the HTTP status, or 0 when no response was received.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(errorType ErrorType, code int, message string) *Error {
	return &Error{Type: errorType, Code: code, Message: message}
}

// Wrap creates a typed error around an underlying cause
func Wrap(errorType ErrorType, code int, err error, message string) *Error {
	return &Error{Type: errorType, Code: code, Message: fmt.Sprintf("%s: %v", message, err), Err: err}
}

// FromStatus maps a non-2xx HTTP status code to a typed error
func FromStatus(statusCode int) *Error {
	var t ErrorType
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		t = ErrorTypeAuth
	case statusCode == http.StatusNotFound:
		t = ErrorTypeNotFound
	case statusCode == http.StatusTooManyRequests:
		t = ErrorTypeRateLimit
	case statusCode >= 500:
		t = ErrorTypeServerError
	default:
		t = ErrorTypeUnknown
	}
	return &Error{
		Type:    t,
		Message: fmt.Sprintf("unexpected status code: %d", statusCode),
		Code:    statusCode,
	}
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown if err is not an *Error
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing:
		return false
	default:
		return false
	}
}
