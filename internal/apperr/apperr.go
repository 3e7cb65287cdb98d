package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable error code returned to API clients alongside the message.
type Code string

const (
	CodeUnknown         Code = "unknown"
	CodeInvalid         Code = "invalid"
	CodeNotFound        Code = "not_found"
	CodeConflict        Code = "conflict"
	CodeUnauthorized    Code = "unauthorized"
	CodeForbidden       Code = "forbidden"
	CodePaymentRequired Code = "payment_required"
	CodeNDARequired     Code = "nda_required"
	CodeAddendumNeeded  Code = "addendum_required"
	CodeInvalidState    Code = "invalid_transition"
	CodeInternal        Code = "internal"
	CodeUnavailable     Code = "unavailable"
)

// AppError carries a code, a user-facing message and an optional cause.
type AppError struct {
	Code    Code
	Message string
	Err     error
	Meta    map[string]any
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches on code so sentinels compare equal to wrapped copies.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// WithMeta attaches metadata to the error.
func (e *AppError) WithMeta(k string, v any) *AppError {
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	e.Meta[k] = v
	return e
}

func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, code Code, message string) *AppError {
	if err == nil {
		return New(code, message)
	}
	return &AppError{Code: code, Message: message, Err: err}
}

// IsCode checks if an error has the provided code (through unwrapping).
func IsCode(err error, code Code) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// CodeOf returns the code of err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "Internal server error"
}

// HTTPStatus maps a code to the response status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalid, CodeInvalidState:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeNDARequired, CodeAddendumNeeded:
		return http.StatusForbidden
	case CodePaymentRequired:
		return http.StatusPaymentRequired
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrNoCredits         = New(CodePaymentRequired, "No remaining project views")
	ErrNDARequired       = New(CodeNDARequired, "A valid master NDA is required")
	ErrAddendumRequired  = New(CodeAddendumNeeded, "This project requires a signed NDA addendum")
	ErrInvalidTransition = New(CodeInvalidState, "")
	ErrNotFound          = New(CodeNotFound, "")
	ErrForbidden         = New(CodeForbidden, "Access denied")
)

// Transition builds an invalid-transition error for a lifecycle.
func Transition(entity, from, event string) *AppError {
	return Newf(CodeInvalidState, "cannot %s a %s in status %q", event, entity, from)
}

// NotFound builds a not-found error for an entity kind.
func NotFound(entity string) *AppError {
	return Newf(CodeNotFound, "%s not found", entity)
}
