// README: WebSocket upgrade endpoint for real-time order events.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fooddash/internal/http/middleware"
	"fooddash/internal/infra"
)

type RealtimeHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request, uid string) error
}

type RealtimeHandler struct {
	hub      RealtimeHub
	verifier infra.TokenVerifier
}

func NewRealtimeHandler(hub RealtimeHub, verifier infra.TokenVerifier) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, verifier: verifier}
}

// Connect upgrades to a WebSocket. A ?token= is optional; when present it
// must be valid.
func (h *RealtimeHandler) Connect(c *gin.Context) {
	var uid string
	if raw := c.Query("token"); raw != "" {
		p, err := middleware.Verify(c.Request.Context(), h.verifier, raw)
		if err != nil {
			_ = c.Error(err)
			writeError(c, middleware.ErrInvalidToken)
			return
		}
		uid = p.UID
	}
	if err := h.hub.ServeWS(c.Writer, c.Request, uid); err != nil {
		writeError(c, err)
	}
}
