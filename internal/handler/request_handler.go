package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/asset-inventory-api/internal/dto"
	"github.com/noah-isme/asset-inventory-api/internal/models"
	"github.com/noah-isme/asset-inventory-api/pkg/response"
)

type requestService interface {
	Submit(ctx context.Context, req dto.CreateRequestRequest, actor *models.JWTClaims) (*models.Request, error)
	Approve(ctx context.Context, id string, req dto.ApproveRequestRequest, actor *models.JWTClaims) (*models.Request, error)
	Reject(ctx context.Context, id string, req dto.RejectRequestRequest, actor *models.JWTClaims) (*models.Request, error)
	Complete(ctx context.Context, id string, req dto.CompleteRequestRequest, actor *models.JWTClaims) (*models.Request, error)
	Update(ctx context.Context, id string, req dto.UpdateRequestRequest, actor *models.JWTClaims) (*models.Request, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Request, error)
	List(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]models.Request, *models.Pagination, error)
}

// RequestHandler exposes the request lifecycle.
type RequestHandler struct {
	service requestService
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(service requestService) *RequestHandler {
	return &RequestHandler{service: service}
}

// List godoc
// @Summary List item requests
// @Description Employees only see their own requests.
// @Tags Requests
// @Produce json
// @Param status query []string false "Pending, Approved, Rejected or Completed"
// @Param employeeId query string false "Employee ID (admin only)"
// @Param itemId query string false "Item ID"
// @Param urgency query string false "Normal or Urgent"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	var query dto.RequestQuery
	if !bindQuery(c, &query) {
		return
	}
	requests, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get an item request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	request, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, request)
}

// Submit godoc
// @Summary Submit an item request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateRequestRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	var req dto.CreateRequestRequest
	if !bindJSON(c, &req, "invalid request payload") {
		return
	}
	request, err := h.service.Submit(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Update godoc
// @Summary Amend a pending request
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.UpdateRequestRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [patch]
func (h *RequestHandler) Update(c *gin.Context) {
	var req dto.UpdateRequestRequest
	if !bindJSON(c, &req, "invalid request payload") {
		return
	}
	request, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, request)
}

// Delete godoc
// @Summary Withdraw a pending request
// @Tags Requests
// @Param id path string true "Request ID"
// @Success 204
// @Router /requests/{id} [delete]
func (h *RequestHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Approve godoc
// @Summary Approve a pending request and reserve stock
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ApproveRequestRequest false "Review comment and item binding"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/approve [post]
func (h *RequestHandler) Approve(c *gin.Context) {
	var req dto.ApproveRequestRequest
	if !bindOptionalJSON(c, &req, "invalid approval payload") {
		return
	}
	request, err := h.service.Approve(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, request)
}

// Reject godoc
// @Summary Reject a pending request
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.RejectRequestRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/reject [post]
func (h *RequestHandler) Reject(c *gin.Context) {
	var req dto.RejectRequestRequest
	if !bindJSON(c, &req, "invalid rejection payload") {
		return
	}
	request, err := h.service.Reject(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, request)
}

// Complete godoc
// @Summary Hand over an approved request
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.CompleteRequestRequest false "Handover condition"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/complete [post]
func (h *RequestHandler) Complete(c *gin.Context) {
	var req dto.CompleteRequestRequest
	if !bindOptionalJSON(c, &req, "invalid completion payload") {
		return
	}
	request, err := h.service.Complete(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, request)
}
