package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		code   Code
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeDeptClosed, http.StatusBadRequest},
		{CodeAlreadyEnqueued, http.StatusBadRequest},
		{CodeNoWaiting, http.StatusBadRequest},
		{CodeBadSignature, http.StatusUnauthorized},
		{CodeSpecializationMismatch, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeMirrorWrite, http.StatusInternalServerError},
		{CodeServer, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.status, New(tc.code, "x", nil).StatusCode(), string(tc.code))
	}
}

func TestAsAppErrorUnwrapsThroughWrapping(t *testing.T) {
	inner := Conflict("slot taken", nil)
	wrapped := fmt.Errorf("scheduling: %w", inner)

	got := AsAppError(wrapped)
	assert.Equal(t, CodeConflict, got.Code)
	assert.Equal(t, "slot taken", got.Message)
}

func TestAsAppErrorFallsBackToServer(t *testing.T) {
	got := AsAppError(errors.New("boom"))
	assert.Equal(t, CodeServer, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.StatusCode())
}

func TestIsMatchesCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotFound("department", nil))

	assert.True(t, Is(err, CodeNotFound))
	assert.False(t, Is(err, CodeConflict))
	assert.False(t, Is(errors.New("plain"), CodeNotFound))
}

func TestErrorStringIncludesCause(t *testing.T) {
	cause := errors.New("row locked")
	err := Validation("bad input", cause)

	assert.Contains(t, err.Error(), "bad input")
	assert.Contains(t, err.Error(), "row locked")
	assert.Equal(t, cause, errors.Unwrap(err))
}
