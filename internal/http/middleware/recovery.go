// README: Recovery middleware; turns panics into INTERNAL_ERROR responses.
package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fooddash/internal/apperr"
	"fooddash/internal/http/respond"
	"fooddash/internal/requestid"
)

func Recovery(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{
					"panic":      r,
					"stack":      string(debug.Stack()),
					"path":       c.Request.URL.Path,
					"request_id": requestid.From(c.Request.Context()),
				}).Error("panic recovered")
				respond.Error(c, apperr.New(apperr.KindInternal, "internal server error"))
			}
		}()
		c.Next()
	}
}
