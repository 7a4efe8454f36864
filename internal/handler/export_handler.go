package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/asset-inventory-api/internal/dto"
	"github.com/noah-isme/asset-inventory-api/internal/models"
	"github.com/noah-isme/asset-inventory-api/internal/service"
	"github.com/noah-isme/asset-inventory-api/pkg/response"
)

type exportService interface {
	Items(ctx context.Context, query dto.ItemQuery, format string, actor *models.JWTClaims) (*service.ExportResult, error)
	History(ctx context.Context, query dto.HistoryQuery, format string, actor *models.JWTClaims) (*service.ExportResult, error)
}

// ExportHandler streams catalog and history exports.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Items godoc
// @Summary Export inventory items
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param category query string false "Category"
// @Param status query string false "Stock status"
// @Success 200 {file} binary
// @Router /items/export [get]
func (h *ExportHandler) Items(c *gin.Context) {
	var query dto.ItemQuery
	if !bindQuery(c, &query) {
		return
	}
	result, err := h.service.Items(c.Request.Context(), query, c.Query("format"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	stream(c, result)
}

// History godoc
// @Summary Export history entries
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param actionType query []string false "Action types"
// @Param from query string false "RFC3339 or YYYY-MM-DD"
// @Param to query string false "RFC3339 or YYYY-MM-DD"
// @Success 200 {file} binary
// @Router /history/export [get]
func (h *ExportHandler) History(c *gin.Context) {
	var query dto.HistoryQuery
	if !bindQuery(c, &query) {
		return
	}
	result, err := h.service.History(c.Request.Context(), query, c.Query("format"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	stream(c, result)
}

func stream(c *gin.Context, result *service.ExportResult) {
	c.Header("X-Export-Rows", strconv.Itoa(result.Rows))
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}
