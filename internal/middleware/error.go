package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/labalert/pkg/errors"
	"github.com/jwalitptl/labalert/pkg/httputil"
)

// ErrorHandler renders the last error a handler attached with c.Error,
// unless a response has already been written.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only handle errors if they exist
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
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if appErr, ok := errors.As(lastErr.Err); ok {
			httputil.RespondWithStatus(c, appErr.StatusCode(), appErr.Message, nil)
			return
		}
		if lastErr.IsType(gin.ErrorTypeBind) {
			httputil.RespondWithStatus(c, http.StatusBadRequest, "invalid request body", nil)
			return
		}
		httputil.RespondWithStatus(c, http.StatusInternalServerError, "internal server error", nil)
	}
}
