package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/asset-inventory-api/internal/middleware"
	"github.com/noah-isme/asset-inventory-api/internal/models"
	appErrors "github.com/noah-isme/asset-inventory-api/pkg/errors"
	"github.com/noah-isme/asset-inventory-api/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context, actor *models.JWTClaims) (*models.DashboardSummary, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Summary godoc
// @Summary Inventory dashboard summary
// @Description Admins see the whole catalog; employees see their own holdings and requests.
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.service.Summary(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := middleware.CachedReadMeta(c, cacheHit, start)
	response.JSON(c, http.StatusOK, summary, nil, meta)
}
