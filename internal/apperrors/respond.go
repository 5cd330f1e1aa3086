package apperrors

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/emilythestrangee/campus-events/backend/internal/logging"
	"github.com/emilythestrangee/campus-events/backend/internal/metrics"
)

// Response is the failure envelope sent to clients.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Abort logs err, records it and writes the failure envelope, aborting the
// remaining handler chain.
func Abort(c *gin.Context, err error) {
	structured := AsStructured(err)

	metrics.HTTPErrorsTotal.WithLabelValues(string(structured.Type)).Inc()
	logError(c, structured)

	c.AbortWithStatusJSON(structured.HTTPStatus(), Response{
		Success: false,
		Error:   structured.Message,
	})
}

func logError(c *gin.Context, err *Error) {
	var evt *zerolog.Event
	switch err.Type {
	case TypeInternal:
		evt = log.Error().Err(err.Cause)
	case TypeConflict, TypeForbidden, TypeRateLimited:
		evt = log.Warn()
	default:
		evt = log.Debug()
	}

	evt = evt.
		Str("error_type", string(err.Type)).
		Str("path", c.Request.URL.Path).
		Str("method", c.Request.Method).
		Int("status", err.HTTPStatus())

	for k, v := range err.Context {
		evt = evt.Interface(k, v)
	}
	if userID, ok := c.Get(logging.UserIDKey); ok {
		evt = evt.Interface("user_id", userID)
	}

	evt.Msg(err.Message)
}
