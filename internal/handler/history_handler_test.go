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

type historyServiceMock struct {
	entries   []models.HistoryEntry
	err       error
	lastQuery dto.HistoryQuery
}

func (m *historyServiceMock) List(_ context.Context, query dto.HistoryQuery, _ *models.JWTClaims) ([]models.HistoryEntry, *models.Pagination, error) {
	m.lastQuery = query
	return m.entries, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.entries)}, m.err
}

func TestHistoryHandlerListBindsFilters(t *testing.T) {
	svc := &historyServiceMock{entries: []models.HistoryEntry{{ID: "h-1", ActionType: models.ActionApproved}}}
	handler := NewHistoryHandler(svc)

	rec, c := newTestContext(http.MethodGet, "/history?actionType=approved,rejected&from=2024-01-01&to=2024-01-31&employeeId=emp-1", nil, admin)
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"approved,rejected"}, svc.lastQuery.ActionTypes)
	assert.Equal(t, "2024-01-01", svc.lastQuery.From)
	assert.Equal(t, "2024-01-31", svc.lastQuery.To)
	assert.Equal(t, "emp-1", svc.lastQuery.EmployeeID)
	assert.Equal(t, 1, decode(t, rec).Pagination.TotalCount)
}

func TestHistoryHandlerForbiddenScope(t *testing.T) {
	handler := NewHistoryHandler(&historyServiceMock{err: appErrors.ErrForbidden})

	rec, c := newTestContext(http.MethodGet, "/history?employeeId=someone-else", nil, employee)
	handler.List(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
