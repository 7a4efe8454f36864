package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/asset-inventory-api/internal/dto"
	"github.com/noah-isme/asset-inventory-api/internal/models"
	appErrors "github.com/noah-isme/asset-inventory-api/pkg/errors"
)

type requestServiceMock struct {
	request    *models.Request
	requests   []models.Request
	pagination *models.Pagination
	err        error

	lastID       string
	lastActor    *models.JWTClaims
	lastQuery    dto.RequestQuery
	lastSubmit   dto.CreateRequestRequest
	lastApprove  dto.ApproveRequestRequest
	lastReject   dto.RejectRequestRequest
	lastComplete dto.CompleteRequestRequest
	calls        []string
}

func (m *requestServiceMock) record(call, id string, actor *models.JWTClaims) {
	m.calls = append(m.calls, call)
	m.lastID, m.lastActor = id, actor
}

func (m *requestServiceMock) Submit(_ context.Context, req dto.CreateRequestRequest, actor *models.JWTClaims) (*models.Request, error) {
	m.record("submit", "", actor)
	m.lastSubmit = req
	return m.request, m.err
}

func (m *requestServiceMock) Approve(_ context.Context, id string, req dto.ApproveRequestRequest, actor *models.JWTClaims) (*models.Request, error) {
	m.record("approve", id, actor)
	m.lastApprove = req
	return m.request, m.err
}

func (m *requestServiceMock) Reject(_ context.Context, id string, req dto.RejectRequestRequest, actor *models.JWTClaims) (*models.Request, error) {
	m.record("reject", id, actor)
	m.lastReject = req
	return m.request, m.err
}

func (m *requestServiceMock) Complete(_ context.Context, id string, req dto.CompleteRequestRequest, actor *models.JWTClaims) (*models.Request, error) {
	m.record("complete", id, actor)
	m.lastComplete = req
	return m.request, m.err
}

func (m *requestServiceMock) Update(_ context.Context, id string, _ dto.UpdateRequestRequest, actor *models.JWTClaims) (*models.Request, error) {
	m.record("update", id, actor)
	return m.request, m.err
}

func (m *requestServiceMock) Delete(_ context.Context, id string, actor *models.JWTClaims) error {
	m.record("delete", id, actor)
	return m.err
}

func (m *requestServiceMock) Get(_ context.Context, id string, actor *models.JWTClaims) (*models.Request, error) {
	m.record("get", id, actor)
	return m.request, m.err
}

func (m *requestServiceMock) List(_ context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]models.Request, *models.Pagination, error) {
	m.record("list", "", actor)
	m.lastQuery = query
	return m.requests, m.pagination, m.err
}

func TestRequestHandlerSubmit(t *testing.T) {
	svc := &requestServiceMock{request: &models.Request{ID: "req-1", Status: models.RequestPending}}
	handler := NewRequestHandler(svc)

	rec, c := newTestContext(http.MethodPost, "/requests", dto.CreateRequestRequest{ItemName: "Monitor", Quantity: 1, Notes: "second screen"}, employee)
	handler.Submit(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Monitor", svc.lastSubmit.ItemName)
	assert.Same(t, employee, svc.lastActor)
}

func TestRequestHandlerListBindsRepeatedStatus(t *testing.T) {
	svc := &requestServiceMock{pagination: &models.Pagination{Page: 1, PageSize: 20}}
	handler := NewRequestHandler(svc)

	rec, c := newTestContext(http.MethodGet, "/requests?status=pending&status=approved&urgency=Urgent", nil, admin)
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"pending", "approved"}, svc.lastQuery.Status)
	assert.Equal(t, "Urgent", svc.lastQuery.Urgency)
}

func TestRequestHandlerApproveAcceptsEmptyBody(t *testing.T) {
	svc := &requestServiceMock{request: &models.Request{ID: "req-1", Status: models.RequestApproved}}
	handler := NewRequestHandler(svc)

	rec, c := newTestContext(http.MethodPost, "/requests/req-1/approve", nil, admin, idParam("req-1"))
	handler.Approve(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", svc.lastID)
	assert.Nil(t, svc.lastApprove.ItemID)
}

func TestRequestHandlerApproveBindsItem(t *testing.T) {
	svc := &requestServiceMock{request: &models.Request{ID: "req-1"}}
	handler := NewRequestHandler(svc)

	itemID := "0b4c7c43-4b53-4b59-9a53-0ad2ad3a0f11"
	rec, c := newTestContext(http.MethodPost, "/requests/req-1/approve", dto.ApproveRequestRequest{ItemID: &itemID, AdminComment: "ok"}, admin, idParam("req-1"))
	handler.Approve(c)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastApprove.ItemID)
	assert.Equal(t, itemID, *svc.lastApprove.ItemID)
	assert.Equal(t, "ok", svc.lastApprove.AdminComment)
}

func TestRequestHandlerApproveInsufficientStock(t *testing.T) {
	svc := &requestServiceMock{err: appErrors.Clone(appErrors.ErrInsufficientStock, "requested 3 unit(s) but only 1 available")}
	handler := NewRequestHandler(svc)

	rec, c := newTestContext(http.MethodPost, "/requests/req-1/approve", nil, admin, idParam("req-1"))
	handler.Approve(c)

	require.Equal(t, http.StatusConflict, rec.Code)
	envelope := decode(t, rec)
	assert.Equal(t, appErrors.ErrInsufficientStock.Code, envelope.Error.Code)
	assert.Contains(t, envelope.Error.Message, "only 1 available")
}

func TestRequestHandlerRejectRequiresBody(t *testing.T) {
	svc := &requestServiceMock{}
	handler := NewRequestHandler(svc)

	rec, c := newTestContext(http.MethodPost, "/requests/req-1/reject", `not-json`, admin, idParam("req-1"))
	handler.Reject(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.calls)
}

func TestRequestHandlerReject(t *testing.T) {
	svc := &requestServiceMock{request: &models.Request{ID: "req-1", Status: models.RequestRejected}}
	handler := NewRequestHandler(svc)

	rec, c := newTestContext(http.MethodPost, "/requests/req-1/reject", dto.RejectRequestRequest{RejectReason: "budget"}, admin, idParam("req-1"))
	handler.Reject(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "budget", svc.lastReject.RejectReason)
}

func TestRequestHandlerComplete(t *testing.T) {
	svc := &requestServiceMock{request: &models.Request{ID: "req-1", Status: models.RequestCompleted}}
	handler := NewRequestHandler(svc)

	rec, c := newTestContext(http.MethodPost, "/requests/req-1/complete", dto.CompleteRequestRequest{Condition: "Damaged"}, admin, idParam("req-1"))
	handler.Complete(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Damaged", svc.lastComplete.Condition)
}

func TestRequestHandlerEmployeeEditAndDelete(t *testing.T) {
	svc := &requestServiceMock{request: &models.Request{ID: "req-1"}}
	handler := NewRequestHandler(svc)

	quantity := 2
	rec, c := newTestContext(http.MethodPatch, "/requests/req-1", dto.UpdateRequestRequest{Quantity: &quantity}, employee, idParam("req-1"))
	handler.Update(c)
	require.Equal(t, http.StatusOK, rec.Code)

	svc.err = appErrors.Clone(appErrors.ErrForbidden, "only pending requests can be withdrawn")
	rec, c = newTestContext(http.MethodDelete, "/requests/req-1", nil, employee, idParam("req-1"))
	handler.Delete(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, []string{"update", "delete"}, svc.calls)
}

func TestRequestHandlerGetNotFound(t *testing.T) {
	handler := NewRequestHandler(&requestServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "request not found")})

	rec, c := newTestContext(http.MethodGet, "/requests/nope", nil, employee, idParam("nope"))
	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
