// README: Order handlers for create/list/get/stats/status.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fooddash/internal/apperr"
	"fooddash/internal/auth"
	"fooddash/internal/http/middleware"
	"fooddash/internal/modules/order"
)

type OrderService interface {
	CreateOrder(ctx context.Context, p auth.Principal, cmd order.CreateCommand) (*order.Order, error)
	GetOrder(ctx context.Context, p auth.Principal, id string) (*order.Order, error)
	ListOrders(ctx context.Context, p auth.Principal, q order.ListQuery) ([]order.Order, order.Pagination, error)
	Stats(ctx context.Context, p auth.Principal, f order.Filter) (order.Stats, error)
	UpdateStatus(ctx context.Context, p auth.Principal, id string, to order.Status) (*order.Order, error)
}

type OrderHandler struct {
	order OrderService
}

func NewOrderHandler(svc OrderService) *OrderHandler {
	return &OrderHandler{order: svc}
}

type createOrderReq struct {
	Items []struct {
		FoodItem string `json:"foodItem" binding:"required"`
		Quantity int    `json:"quantity" binding:"required,min=1"`
	} `json:"items" binding:"required,min=1,dive"`
	DeliveryAddress string `json:"deliveryAddress" binding:"required"`
}

type updateStatusReq struct {
	Status order.Status `json:"status" binding:"required"`
}

type listOrdersResp struct {
	Orders     []order.Order    `json:"orders"`
	Pagination order.Pagination `json:"pagination"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if !bindJSON(c, &req) {
		return
	}
	cmd := order.CreateCommand{DeliveryAddress: req.DeliveryAddress}
	for _, it := range req.Items {
		cmd.Items = append(cmd.Items, order.ItemRequest{FoodItemID: it.FoodItem, Quantity: it.Quantity})
	}
	o, err := h.order.CreateOrder(c.Request.Context(), middleware.PrincipalFrom(c), cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, o)
}

func (h *OrderHandler) List(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	q := order.ListQuery{Filter: f, SortBy: order.SortField(c.DefaultQuery("sortBy", string(order.SortCreatedAt)))}
	if !q.SortBy.Valid() {
		writeError(c, apperr.New(apperr.KindValidation, "sortBy must be one of createdAt, updatedAt, totalAmount, status"))
		return
	}
	switch strings.ToLower(c.DefaultQuery("sortOrder", "desc")) {
	case "asc":
		q.Ascending = true
	case "desc":
	default:
		writeError(c, apperr.New(apperr.KindValidation, "sortOrder must be asc or desc"))
		return
	}
	if q.Page, err = queryInt(c, "page"); err != nil {
		writeError(c, err)
		return
	}
	if q.Limit, err = queryInt(c, "limit"); err != nil {
		writeError(c, err)
		return
	}

	orders, page, err := h.order.ListOrders(c.Request.Context(), middleware.PrincipalFrom(c), q)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, listOrdersResp{Orders: orders, Pagination: page})
}

func (h *OrderHandler) Stats(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	st, err := h.order.Stats(c.Request.Context(), middleware.PrincipalFrom(c), f)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.order.GetOrder(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusReq
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.order.UpdateStatus(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

// parseFilter reads status, startDate, endDate and (for admins) user.
func parseFilter(c *gin.Context) (order.Filter, error) {
	var f order.Filter
	if v := c.Query("status"); v != "" {
		st := order.Status(v)
		f.Status = &st
	}
	var err error
	if f.From, err = queryTime(c, "startDate", false); err != nil {
		return f, err
	}
	if f.To, err = queryTime(c, "endDate", true); err != nil {
		return f, err
	}
	f.OwnerID = c.Query("user")
	return f, nil
}
