package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/itsmeEn/New-MediSync-sub001/pkg/errors"
)

// ErrorResponse is the standard error body: {"error": ..., "code": ...}.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ErrorHandler translates errors attached to the gin context into the
// application error taxonomy. Engines raise typed errors; only this
// layer speaks HTTP.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("request error")
		}

		if c.Writer.Written() {
			return
		}

		appErr := apperrors.AsAppError(c.Errors.Last().Err)
		c.JSON(appErr.StatusCode(), ErrorResponse{
			Error: appErr.Message,
			Code:  string(appErr.Code),
		})
	}
}
