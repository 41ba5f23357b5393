// Package domainerrors defines the error taxonomy shared by all services.
//
// Services return *Error values carrying a stable machine-readable code plus a
// human-readable message and optional description. Handlers translate codes to
// HTTP statuses with HTTPStatus; stores return sentinel errors
// (pkg/platform/sentinel) and services wrap them into domain errors at the
// boundary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure. Codes are part of the API contract:
// clients switch on them, so existing values must not be renamed.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_failed"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "upstream_unavailable"
	CodeInternal           Code = "internal_error"
)

// Error is the concrete domain error. Description is optional context safe to
// expose to callers; wrapped causes are for logs only.
type Error struct {
	Code        Code
	Message     string
	Description string
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. If the cause is
// already a domain error its code is preserved unless overridden here on
// purpose: Wrap always applies the code it is given, callers that want to keep
// the inner classification should test with HasCode first.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WithDescription returns a copy of the error carrying caller-visible context.
func (e *Error) WithDescription(format string, args ...any) *Error {
	clone := *e
	clone.Description = fmt.Sprintf(format, args...)
	return &clone
}

// HasCode reports whether err (or anything it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is a readability alias for HasCode used at call sites that read like
// errors.Is.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from err, defaulting to CodeInternal for unknown
// error values.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// IsClient reports whether the code maps to a 4xx outcome.
func IsClient(code Code) bool {
	s := HTTPStatus(code)
	return s >= 400 && s < 500
}

// HTTPStatus maps a domain error code onto the HTTP status handlers respond
// with. Unknown codes are treated as internal failures.
func HTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
