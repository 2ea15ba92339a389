package errors

import (
	"errors"
	"fmt"
)

// Process exit codes carried by typed errors.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

// Error represents a typed domain error with an associated exit code.
type Error struct {
	Code     string
	Message  string
	ExitCode int
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches typed errors by code so wrapped clones still compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, exitCode int, message string) *Error {
	return &Error{Code: code, ExitCode: exitCode, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, exitCode int, message string) *Error {
	return &Error{Code: code, ExitCode: exitCode, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidConfiguration = New("INVALID_CONFIGURATION", ExitUsage, "invalid configuration")
	ErrNotImplemented       = New("NOT_IMPLEMENTED", ExitUsage, "not implemented")
	ErrValidation           = New("VALIDATION_ERROR", ExitUsage, "validation failed")
	ErrStore                = New("STORE_ERROR", ExitFailure, "attendance store query failed")
	ErrImport               = New("IMPORT_ERROR", ExitFailure, "attendance import failed")
	ErrDispatch             = New("DISPATCH_ERROR", ExitFailure, "report dispatch failed")
	ErrCacheMiss            = New("CACHE_MISS", ExitFailure, "cache miss")
	ErrInternal             = New("INTERNAL_ERROR", ExitFailure, "internal error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.ExitCode, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
