package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ukuvago/angelmatch/internal/models"
)

// FallbackMessage is shown when the backend gives no message of its own.
const FallbackMessage = "Something went wrong. Please try again."

var (
	// ErrUnauthorized is returned after the auth guard has cleared the session.
	ErrUnauthorized = errors.New("client: session expired, please log in again")
	// ErrNotFound matches any 404 RequestError under errors.Is.
	ErrNotFound = errors.New("client: not found")
)

// ValidationError is raised before any request is sent.
type ValidationError struct {
	Violations models.Violations
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// RequestError is a non-2xx response or a transport failure (Status 0).
type RequestError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("request failed: %s", e.Message)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func (e *RequestError) Unwrap() error { return e.Err }

func (e *RequestError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// HasCode reports whether err is a RequestError carrying the backend code.
func HasCode(err error, code string) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Code == code
}

// UserMessage is the text to put in front of a person for err.
func UserMessage(err error) string {
	var (
		ve *ValidationError
		re *RequestError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "Your session has expired. Please log in again."
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &re) && re.Message != "":
		return re.Message
	}
	return FallbackMessage
}

func fromOffer(err error) error {
	var v models.Violations
	if errors.As(err, &v) {
		return &ValidationError{Violations: v}
	}
	return err
}

func fromValidator(err error) error {
	var fe validator.ValidationErrors
	if !errors.As(err, &fe) {
		return &ValidationError{Violations: models.Violations{{Field: "form", Message: err.Error()}}}
	}
	out := make(models.Violations, 0, len(fe))
	for _, f := range fe {
		out = append(out, models.Violation{Field: f.Field(), Message: ruleMessage(f)})
	}
	return &ValidationError{Violations: out}
}

func ruleMessage(f validator.FieldError) string {
	switch f.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "eqfield":
		return "must match " + f.Param()
	case "min":
		return "must be at least " + f.Param() + " characters"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of " + f.Param()
	case "gt":
		return "must be greater than " + f.Param()
	}
	return "is invalid (" + f.Tag() + ")"
}
