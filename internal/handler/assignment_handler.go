package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/asset-inventory-api/internal/dto"
	"github.com/noah-isme/asset-inventory-api/internal/models"
	"github.com/noah-isme/asset-inventory-api/pkg/response"
)

type assignmentService interface {
	Assign(ctx context.Context, req dto.AssignItemRequest, actor *models.JWTClaims) (*models.Assignment, error)
	Return(ctx context.Context, id string, req dto.ReturnAssignmentRequest, actor *models.JWTClaims) (*models.Assignment, error)
	ListActiveByEmployee(ctx context.Context, employeeID string, actor *models.JWTClaims) ([]models.Assignment, error)
	List(ctx context.Context, query dto.AssignmentQuery, actor *models.JWTClaims) ([]models.Assignment, *models.Pagination, error)
}

// AssignmentHandler exposes the assignment ledger.
type AssignmentHandler struct {
	service assignmentService
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service assignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: service}
}

// List godoc
// @Summary List assignment ledger entries
// @Tags Assignments
// @Produce json
// @Param employeeId query string false "Employee ID"
// @Param itemId query string false "Item ID"
// @Param status query string false "assigned or returned"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	var query dto.AssignmentQuery
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

// Active godoc
// @Summary Items an employee currently holds
// @Tags Assignments
// @Produce json
// @Param employeeId query string false "Employee ID, defaults to the caller"
// @Success 200 {object} response.Envelope
// @Router /assignments/active [get]
func (h *AssignmentHandler) Active(c *gin.Context) {
	entries, err := h.service.ListActiveByEmployee(c.Request.Context(), c.Query("employeeId"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries)
}

// Assign godoc
// @Summary Assign units directly to an employee
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.AssignItemRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Assign(c *gin.Context) {
	var req dto.AssignItemRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	entry, err := h.service.Assign(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Return godoc
// @Summary Return assigned units to stock
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.ReturnAssignmentRequest true "Returned condition"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/return [post]
func (h *AssignmentHandler) Return(c *gin.Context) {
	var req dto.ReturnAssignmentRequest
	if !bindJSON(c, &req, "invalid return payload") {
		return
	}
	entry, err := h.service.Return(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entry)
}
