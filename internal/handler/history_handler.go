package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/asset-inventory-api/internal/dto"
	"github.com/noah-isme/asset-inventory-api/internal/models"
	"github.com/noah-isme/asset-inventory-api/pkg/response"
)

type historyService interface {
	List(ctx context.Context, query dto.HistoryQuery, actor *models.JWTClaims) ([]models.HistoryEntry, *models.Pagination, error)
}

// HistoryHandler exposes the audit log.
type HistoryHandler struct {
	service historyService
}

// NewHistoryHandler constructs the handler.
func NewHistoryHandler(service historyService) *HistoryHandler {
	return &HistoryHandler{service: service}
}

// List godoc
// @Summary List history entries, newest first
// @Description Employees only see entries about themselves.
// @Tags History
// @Produce json
// @Param actionType query []string false "requested, approved, rejected, completed, assigned, returned"
// @Param employeeId query string false "Employee ID"
// @Param itemId query string false "Item ID"
// @Param from query string false "RFC3339 or YYYY-MM-DD"
// @Param to query string false "RFC3339 or YYYY-MM-DD, inclusive"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /history [get]
func (h *HistoryHandler) List(c *gin.Context) {
	var query dto.HistoryQuery
	if !bindQuery(c, &query) {
		return
	}
	entries, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}
