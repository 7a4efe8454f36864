package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/asset-inventory-api/internal/dto"
	"github.com/noah-isme/asset-inventory-api/internal/middleware"
	"github.com/noah-isme/asset-inventory-api/internal/models"
	"github.com/noah-isme/asset-inventory-api/pkg/response"
)

type catalogService interface {
	Categories() []models.Category
	Create(ctx context.Context, req dto.CreateItemRequest, actor *models.JWTClaims) (*models.InventoryItem, error)
	Update(ctx context.Context, id string, req dto.UpdateItemRequest, actor *models.JWTClaims) (*models.InventoryItem, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	Get(ctx context.Context, id string) (*models.InventoryItem, error)
	GetAvailability(ctx context.Context, id string) (*models.Availability, bool, error)
	List(ctx context.Context, query dto.ItemQuery) ([]models.InventoryItem, *models.Pagination, error)
}

// ItemHandler exposes the inventory catalog.
type ItemHandler struct {
	service catalogService
}

// NewItemHandler constructs the handler.
func NewItemHandler(service catalogService) *ItemHandler {
	return &ItemHandler{service: service}
}

// List godoc
// @Summary List inventory items
// @Tags Items
// @Produce json
// @Param category query string false "Category"
// @Param status query string false "Available, Assigned, Partially Assigned or Out of Stock"
// @Param condition query string false "Good or Damaged"
// @Param search query string false "Name or description search"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /items [get]
func (h *ItemHandler) List(c *gin.Context) {
	var query dto.ItemQuery
	if !bindQuery(c, &query) {
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get an inventory item
// @Tags Items
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /items/{id} [get]
func (h *ItemHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Create godoc
// @Summary Register an inventory item
// @Description Employees may only register items assigned to themselves.
// @Tags Items
// @Accept json
// @Produce json
// @Param payload body dto.CreateItemRequest true "Item payload"
// @Success 201 {object} response.Envelope
// @Router /items [post]
func (h *ItemHandler) Create(c *gin.Context) {
	var req dto.CreateItemRequest
	if !bindJSON(c, &req, "invalid item payload") {
		return
	}
	item, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update an inventory item
// @Tags Items
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param payload body dto.UpdateItemRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /items/{id} [patch]
func (h *ItemHandler) Update(c *gin.Context) {
	var req dto.UpdateItemRequest
	if !bindJSON(c, &req, "invalid item payload") {
		return
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Delete godoc
// @Summary Delete an inventory item
// @Tags Items
// @Param id path string true "Item ID"
// @Success 204
// @Router /items/{id} [delete]
func (h *ItemHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Availability godoc
// @Summary Current stock level for an item
// @Tags Items
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /items/{id}/availability [get]
func (h *ItemHandler) Availability(c *gin.Context) {
	start := time.Now()
	availability, hit, err := h.service.GetAvailability(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := middleware.CachedReadMeta(c, hit, start)
	response.JSON(c, http.StatusOK, availability, nil, meta)
}

// Categories godoc
// @Summary List item categories
// @Tags Items
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /categories [get]
func (h *ItemHandler) Categories(c *gin.Context) {
	response.OK(c, h.service.Categories())
}
