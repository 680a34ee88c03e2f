// README: Food item and menu handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"fooddash/internal/modules/catalog"
	"fooddash/internal/types"
)

type CatalogService interface {
	Create(ctx context.Context, cmd catalog.CreateCommand) (*catalog.FoodItem, error)
	Get(ctx context.Context, id string) (*catalog.FoodItem, error)
	List(ctx context.Context, f catalog.Filter) ([]catalog.FoodItem, error)
	Update(ctx context.Context, cmd catalog.UpdateCommand) (*catalog.FoodItem, error)
	Delete(ctx context.Context, id string) error
	ListMenus(ctx context.Context) ([]catalog.Menu, error)
	CreateMenu(ctx context.Context, cmd catalog.CreateMenuCommand) (*catalog.Menu, error)
}

type CatalogHandler struct {
	catalog CatalogService
}

func NewCatalogHandler(svc CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: svc}
}

type foodItemReq struct {
	Name                   *string           `json:"name"`
	Description            *string           `json:"description"`
	Price                  *types.Money      `json:"price"`
	Category               *catalog.Category `json:"category"`
	ImageURL               *string           `json:"imageUrl"`
	IsAvailable            *bool             `json:"isAvailable"`
	PreparationTimeMinutes *int              `json:"preparationTimeMinutes"`
}

type createMenuReq struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Items       []string `json:"items"`
}

func (h *CatalogHandler) List(c *gin.Context) {
	var f catalog.Filter
	if v := c.Query("category"); v != "" {
		cat := catalog.Category(v)
		f.Category = &cat
	}
	var err error
	if f.Available, err = queryBool(c, "available"); err != nil {
		writeError(c, err)
		return
	}
	items, err := h.catalog.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, items)
}

func (h *CatalogHandler) Get(c *gin.Context) {
	it, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, it)
}

func (h *CatalogHandler) Create(c *gin.Context) {
	var req foodItemReq
	if !bindJSON(c, &req) {
		return
	}
	cmd := catalog.CreateCommand{IsAvailable: req.IsAvailable}
	if req.Name != nil {
		cmd.Name = *req.Name
	}
	if req.Description != nil {
		cmd.Description = *req.Description
	}
	if req.Price != nil {
		cmd.Price = *req.Price
	}
	if req.Category != nil {
		cmd.Category = *req.Category
	}
	if req.ImageURL != nil {
		cmd.ImageURL = *req.ImageURL
	}
	if req.PreparationTimeMinutes != nil {
		cmd.PreparationTimeMinutes = *req.PreparationTimeMinutes
	}
	it, err := h.catalog.Create(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, it)
}

func (h *CatalogHandler) Update(c *gin.Context) {
	var req foodItemReq
	if !bindJSON(c, &req) {
		return
	}
	it, err := h.catalog.Update(c.Request.Context(), catalog.UpdateCommand{
		ID:                     c.Param("id"),
		Name:                   req.Name,
		Description:            req.Description,
		Price:                  req.Price,
		Category:               req.Category,
		ImageURL:               req.ImageURL,
		IsAvailable:            req.IsAvailable,
		PreparationTimeMinutes: req.PreparationTimeMinutes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, it)
}

func (h *CatalogHandler) Delete(c *gin.Context) {
	if err := h.catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CatalogHandler) ListMenus(c *gin.Context) {
	menus, err := h.catalog.ListMenus(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if menus == nil {
		menus = []catalog.Menu{}
	}
	writeJSON(c, http.StatusOK, menus)
}

func (h *CatalogHandler) CreateMenu(c *gin.Context) {
	var req createMenuReq
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.catalog.CreateMenu(c.Request.Context(), catalog.CreateMenuCommand{
		Name:        req.Name,
		Description: req.Description,
		ItemIDs:     req.Items,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, m)
}
