// README: JSON response helpers shared by handlers and middleware.
package respond

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"fooddash/internal/apperr"
	"fooddash/internal/requestid"
)

var hideInternal atomic.Bool

// HideInternalErrors replaces 5xx messages with a generic one. Enabled in
// production.
func HideInternalErrors(v bool) { hideInternal.Store(v) }

type errorBody struct {
	Success bool        `json:"success"`
	Error   errorDetail `json:"error"`
}

type errorDetail struct {
	Type      apperr.Kind `json:"type"`
	Message   string      `json:"message"`
	Code      int         `json:"code"`
	RequestID string      `json:"requestId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func JSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

// Error records err on the context for the request logger and writes the
// classified error body.
func Error(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.Status(kind)
	msg := err.Error()
	if status >= http.StatusInternalServerError && hideInternal.Load() {
		msg = genericMessage(kind)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorBody{
		Success: false,
		Error: errorDetail{
			Type:      kind,
			Message:   msg,
			Code:      status,
			RequestID: requestid.From(c.Request.Context()),
			Timestamp: time.Now().UTC(),
		},
	})
}

func genericMessage(kind apperr.Kind) string {
	switch kind {
	case apperr.KindExternal, apperr.KindExternalTimeout:
		return "An upstream service failed, please try again later"
	case apperr.KindServiceUnavailable:
		return "Service temporarily unavailable"
	default:
		return "An unexpected error occurred"
	}
}
