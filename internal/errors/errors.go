package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Studio error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrAlreadyExists  ErrorCode = "ALREADY_EXISTS"  // 409
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// StudioError represents a structured error with code, status, and details.
type StudioError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *StudioError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *StudioError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *StudioError {
	return &StudioError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a session or context that does not resolve.
// kind is "session" or "context".
func NewNotFound(kind, identifier string) *StudioError {
	return &StudioError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewAlreadyExists creates a 409 error for a normalized-name collision.
func NewAlreadyExists(kind, name string) *StudioError {
	return &StudioError{
		Code:    ErrAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("%s with name %q already exists", kind, name),
		Details: map[string]any{"kind": kind, "name": name},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the cause is kept in Details for logging.
func NewInternal(err error) *StudioError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &StudioError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
		cause:   err,
	}
}

// Is checks if err (or anything it wraps) is a StudioError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *StudioError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}

// As reports whether err wraps a StudioError and returns it.
func As(err error) (*StudioError, bool) {
	var sErr *StudioError
	if stderrors.As(err, &sErr) {
		return sErr, true
	}
	return nil, false
}
