// Package errors provides structured error types for nodevfs.
//
// Every failure the install engine can report carries a machine-readable
// [Code]. The engine distinguishes recoverable per-package failures
// (resolution, fetch, parse) from session failures by code, and the CLI and
// HTTP API surface [UserMessage] to users.
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - *_FAILED: Per-package install failures (recoverable below the root)
//   - NETWORK_*: Transport failures
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.Resolution("react", "^18", cause)
//	if errors.Is(err, errors.ErrCodeResolution) {
//	    // subtree could not be resolved
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidPackage  Code = "INVALID_PACKAGE"
	ErrCodeInvalidManifest Code = "INVALID_MANIFEST"
	ErrCodeInvalidPath     Code = "INVALID_PATH"

	// Install errors. These are recoverable for transitive dependencies.
	ErrCodeResolution Code = "RESOLUTION_FAILED"
	ErrCodeFetch      Code = "FETCH_FAILED"
	ErrCodeParse      Code = "PARSE_FAILED"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
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

// Resolution reports that specifier could not be resolved to a concrete
// version of name. cause may be nil.
func Resolution(name, specifier string, cause error) *Error {
	return Wrap(ErrCodeResolution, cause, "resolve %s@%s", name, specifier)
}

// Fetch reports that the archive for name@version could not be downloaded.
func Fetch(name, version string, cause error) *Error {
	return Wrap(ErrCodeFetch, cause, "download %s@%s", name, version)
}

// Parse reports that archive bytes did not conform to gzip or tar.
func Parse(cause error, format string, args ...any) *Error {
	return Wrap(ErrCodeParse, cause, format, args...)
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

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix, followed
// by the cause when there is one.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return e.Message + ": " + e.Cause.Error()
		}
		return e.Message
	}
	return err.Error()
}

// Recoverable reports whether err describes a single package that can be
// dropped from the tree without failing the whole install.
func Recoverable(err error) bool {
	switch GetCode(err) {
	case ErrCodeResolution, ErrCodeFetch, ErrCodeParse, ErrCodeNotFound:
		return true
	}
	return false
}
