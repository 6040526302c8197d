// Package errors provides structured error types for the defectset tools.
//
// Every failure in a dataset run falls into one of a few categories, and the
// category decides what the caller does with it:
//   - CONFIGURATION: the run cannot produce a correct dataset (missing patch
//     template, overlapping partition sets). Abort.
//   - SKIPPABLE_INPUT: one unit (image or label file) is missing or
//     unreadable. Log, skip the unit, continue.
//   - GEOMETRY: an out-of-range coordinate, an empty clipped placement or an
//     unassignable image id. Log, drop the record or file, continue.
//   - SAMPLING_EXHAUSTED / SAMPLING_IMPOSSIBLE: the constrained sampler found
//     no valid combination. Log, skip that combination, continue.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeGeometry, "center %v outside image", p)
//	if errors.IsFatal(err) {
//	    return err
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeSkippableInput, origErr, "read %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Fatal errors
	ErrCodeConfiguration Code = "CONFIGURATION"
	ErrCodeInternal      Code = "INTERNAL_ERROR"

	// Per-unit errors
	ErrCodeSkippableInput Code = "SKIPPABLE_INPUT"
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeFileNotFound   Code = "FILE_NOT_FOUND"

	// Per-record warnings
	ErrCodeGeometry Code = "GEOMETRY"

	// Sampling outcomes
	ErrCodeSamplingExhausted  Code = "SAMPLING_EXHAUSTED"
	ErrCodeSamplingImpossible Code = "SAMPLING_IMPOSSIBLE"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsFatal reports whether err must abort the whole run.
// Configuration and internal errors are fatal, as is any error that carries
// no code at all. Per-unit codes are not.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch GetCode(err) {
	case ErrCodeSkippableInput, ErrCodeInvalidInput, ErrCodeFileNotFound,
		ErrCodeGeometry, ErrCodeSamplingExhausted, ErrCodeSamplingImpossible:
		return false
	default:
		return true
	}
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
