package types

import "fmt"

// ErrorCode classifies failures at the boundaries of the control loop.
type ErrorCode string

const (
	// ErrValidation marks scripts rejected before reaching a backend.
	ErrValidation ErrorCode = "VALIDATION"
	// ErrTransport marks remote backend network, timeout, or non-2xx failures.
	ErrTransport ErrorCode = "TRANSPORT"
	// ErrProcess marks local backend nonzero exits or forced-kill timeouts.
	ErrProcess ErrorCode = "PROCESS"
	// ErrModel marks model provider call failures. These are the only
	// errors that propagate out of a turn unrecovered.
	ErrModel ErrorCode = "MODEL"
)

// Error represents a structured error with code, message, and cause.
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

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
