package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelsMatchWrappedCopies(t *testing.T) {
	err := fmt.Errorf("unlock: %w", ErrNoCredits)
	assert.ErrorIs(t, err, ErrNoCredits)
	assert.NotErrorIs(t, err, ErrNDARequired)
	assert.True(t, IsCode(err, CodePaymentRequired))

	// empty-message sentinels match any message with the code
	assert.ErrorIs(t, Transition("meeting", "completed", "cancel"), ErrInvalidTransition)
	assert.ErrorIs(t, NotFound("project"), ErrNotFound)
}

func TestCodeAndMessageOfForeignErrors(t *testing.T) {
	err := errors.New("disk on fire")
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.Equal(t, "Internal server error", Message(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(CodeOf(err)))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalid:         http.StatusBadRequest,
		CodeInvalidState:    http.StatusBadRequest,
		CodeNotFound:        http.StatusNotFound,
		CodeConflict:        http.StatusConflict,
		CodeUnauthorized:    http.StatusUnauthorized,
		CodeNDARequired:     http.StatusForbidden,
		CodeAddendumNeeded:  http.StatusForbidden,
		CodePaymentRequired: http.StatusPaymentRequired,
		CodeUnavailable:     http.StatusServiceUnavailable,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatus(code), code)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("constraint failed")
	err := Wrap(cause, CodeConflict, "Already exists").WithMeta("field", "email")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Already exists", Message(err))
	assert.Equal(t, "email", err.Meta["field"])
	assert.Equal(t, "conflict: Already exists: constraint failed", err.Error())
}
