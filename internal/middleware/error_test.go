package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/itsmeEn/New-MediSync-sub001/pkg/errors"
)

func performRequest(t *testing.T, handler gin.HandlerFunc) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/test", handler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	r.ServeHTTP(w, req)

	var body ErrorResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestErrorHandlerMapsAppError(t *testing.T) {
	w, body := performRequest(t, func(c *gin.Context) {
		c.Error(apperrors.Conflict("time slot already booked", nil))
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "time slot already booked", body.Error)
	assert.Equal(t, "ERR_CONFLICT", body.Code)
}

func TestErrorHandlerBadSignatureIsUnauthorized(t *testing.T) {
	w, body := performRequest(t, func(c *gin.Context) {
		c.Error(apperrors.New(apperrors.CodeBadSignature, "signature verification failed", nil))
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "ERR_BAD_SIGNATURE", body.Code)
}

func TestErrorHandlerWrapsUnknownErrors(t *testing.T) {
	w, body := performRequest(t, func(c *gin.Context) {
		c.Error(errors.New("pq: connection refused"))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "ERR_SERVER", body.Code)
	assert.Equal(t, "internal server error", body.Error, "internal details never leak")
}

func TestErrorHandlerSkipsSuccessfulRequests(t *testing.T) {
	w, _ := performRequest(t, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})

	assert.Equal(t, http.StatusOK, w.Code)
}
