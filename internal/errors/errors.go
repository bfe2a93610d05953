// Package errors defines the coded error taxonomy of the scaffolding engine.
//
// Every failure the engine reports carries a Code. Codes group into four
// categories that decide how a run proceeds and which exit code a front end
// returns: input errors and render errors stop a run before any file is
// touched, conflicts are collected per file, and write errors halt the Writer
// at the failing path.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a failure for stable matching in code and tests.
type ErrorCode string

const (
	// Input errors: caller mistakes, reported before any file is touched.
	ErrMissingToken ErrorCode = "MISSING_TOKEN"
	ErrInvalidToken ErrorCode = "INVALID_TOKEN"
	ErrUnknownKind  ErrorCode = "UNKNOWN_KIND"

	// Render errors: defects in bundles or the kind registry.
	ErrUnresolvedToken   ErrorCode = "UNRESOLVED_TOKEN"
	ErrMalformedTemplate ErrorCode = "MALFORMED_TEMPLATE"
	ErrInvalidRegistry   ErrorCode = "INVALID_REGISTRY"

	// Conflicts: per-file, collected rather than thrown.
	ErrConflict ErrorCode = "CONFLICT"

	// Write errors: I/O failures against the target project.
	ErrWriteFailed ErrorCode = "WRITE_FAILED"
	ErrReadFailed  ErrorCode = "READ_FAILED"
)

// Category groups error codes by their effect on a run.
type Category string

const (
	CategoryNone     Category = ""
	CategoryInput    Category = "input"
	CategoryRender   Category = "render"
	CategoryConflict Category = "conflict"
	CategoryWrite    Category = "write"
	CategoryUnknown  Category = "unknown"
)

// Category returns the category the code belongs to.
func (c ErrorCode) Category() Category {
	switch c {
	case ErrMissingToken, ErrInvalidToken, ErrUnknownKind:
		return CategoryInput
	case ErrUnresolvedToken, ErrMalformedTemplate, ErrInvalidRegistry:
		return CategoryRender
	case ErrConflict:
		return CategoryConflict
	case ErrWriteFailed, ErrReadFailed:
		return CategoryWrite
	default:
		return CategoryUnknown
	}
}

// Exit codes of the CLI contract.
const (
	ExitOK       = 0
	ExitConflict = 1
	ExitInput    = 2
	ExitWrite    = 3
)

// Error is a structured error with a code and optional details.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var targetErr *Error
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates an Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates an Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps err with a code and message. Returns nil if err is nil.
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	e := New(code, message)
	e.Wrapped = err
	return e
}

// Wrapf wraps err with a code and formatted message. Returns nil if err is nil.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// WithDetail adds a detail to the error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	return errors.Is(err, &Error{Code: code})
}

// CategoryOf returns the category of err. A nil error has CategoryNone and
// an error without a code is CategoryUnknown.
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryNone
	}
	code := CodeOf(err)
	if code == "" {
		return CategoryUnknown
	}
	return code.Category()
}

// ExitCode maps err to the CLI exit-code contract. Errors outside the
// taxonomy are treated as input errors since nothing was written.
func ExitCode(err error) int {
	switch CategoryOf(err) {
	case CategoryNone:
		return ExitOK
	case CategoryConflict:
		return ExitConflict
	case CategoryWrite:
		return ExitWrite
	default:
		return ExitInput
	}
}
