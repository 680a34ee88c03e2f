// README: Tracking handlers (read, courier location update, arrival) and restaurant location.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"fooddash/internal/auth"
	"fooddash/internal/http/middleware"
	"fooddash/internal/modules/order"
	"fooddash/internal/types"
)

type TrackingService interface {
	GetTracking(ctx context.Context, p auth.Principal, id string) (*order.TrackingInfo, error)
	UpdateLocation(ctx context.Context, p auth.Principal, id string, loc types.Location) (*order.TrackingInfo, error)
	MarkArrived(ctx context.Context, p auth.Principal, id string) (*order.TrackingInfo, error)
	RestaurantLocation(ctx context.Context) (types.Location, error)
}

type TrackingHandler struct {
	tracking TrackingService
}

func NewTrackingHandler(svc TrackingService) *TrackingHandler {
	return &TrackingHandler{tracking: svc}
}

// Pointers so that 0 is accepted as a coordinate while a missing field is not.
type updateLocationReq struct {
	Lat     *float64 `json:"lat" binding:"required"`
	Lng     *float64 `json:"lng" binding:"required"`
	Address string   `json:"address"`
}

func (h *TrackingHandler) Get(c *gin.Context) {
	info, err := h.tracking.GetTracking(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, info)
}

func (h *TrackingHandler) UpdateLocation(c *gin.Context) {
	var req updateLocationReq
	if !bindJSON(c, &req) {
		return
	}
	loc := types.Location{Lat: *req.Lat, Lng: *req.Lng, Address: req.Address}
	info, err := h.tracking.UpdateLocation(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("orderId"), loc)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, info)
}

func (h *TrackingHandler) MarkArrived(c *gin.Context) {
	info, err := h.tracking.MarkArrived(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, info)
}

func (h *TrackingHandler) RestaurantLocation(c *gin.Context) {
	loc, err := h.tracking.RestaurantLocation(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, loc)
}
