package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	err := New(CodeNotFound, "claim not found")
	assert.True(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(err, CodeConflict))
	assert.False(t, HasCode(errors.New("plain"), CodeNotFound))
	assert.False(t, HasCode(nil, CodeNotFound))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "provider call failed")

	require.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, CodeUnavailable))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestHasCodeSeesThroughWrapping(t *testing.T) {
	inner := New(CodeBadRequest, "bad signature")
	outer := fmt.Errorf("handling webhook: %w", inner)

	assert.True(t, HasCode(outer, CodeBadRequest))
	assert.Equal(t, CodeBadRequest, CodeOf(outer))
}

func TestWithDescriptionDoesNotMutate(t *testing.T) {
	base := New(CodeValidation, "missing flow status")
	detailed := base.WithDescription("claim %q has no mapping", "dob")

	assert.Empty(t, base.Description)
	assert.Equal(t, `claim "dob" has no mapping`, detailed.Description)
	assert.Equal(t, base.Code, detailed.Code)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeBadRequest, http.StatusBadRequest},
		{CodeValidation, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeInvariantViolation, http.StatusUnprocessableEntity},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeUnavailable, http.StatusBadGateway},
		{CodeInternal, http.StatusInternalServerError},
		{Code("made_up"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.code), "code %s", tt.code)
	}
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}
