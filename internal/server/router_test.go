package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/asset-inventory-api/internal/handler"
	"github.com/noah-isme/asset-inventory-api/internal/models"
	appErrors "github.com/noah-isme/asset-inventory-api/pkg/errors"
)

type tokenTable map[string]*models.JWTClaims

func (t tokenTable) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	tokens := tokenTable{
		"admin":    {UserID: "admin-1", Role: models.RoleAdmin},
		"employee": {UserID: "emp-1", Role: models.RoleEmployee},
	}
	return NewRouter(Options{Auth: tokens}, Handlers{
		Items:       handler.NewItemHandler(nil),
		Requests:    handler.NewRequestHandler(nil),
		Assignments: handler.NewAssignmentHandler(nil),
		History:     handler.NewHistoryHandler(nil),
		Exports:     handler.NewExportHandler(nil),
		Dashboard:   handler.NewDashboardHandler(nil),
		Ops:         handler.NewMetricsHandler(nil, nil),
	})
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOpsEndpointsArePublic(t *testing.T) {
	r := newTestRouter()

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ready", "").Code)
	assert.NotEmpty(t, serve(r, http.MethodGet, "/health", "").Header().Get("X-Request-ID"))
}

func TestAPIRequiresToken(t *testing.T) {
	r := newTestRouter()

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/items", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/items", "forged").Code)
}

func TestAdminRoutesRejectEmployees(t *testing.T) {
	r := newTestRouter()

	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/v1/requests/req-1/approve"},
		{http.MethodPost, "/api/v1/requests/req-1/reject"},
		{http.MethodPost, "/api/v1/requests/req-1/complete"},
		{http.MethodPost, "/api/v1/assignments"},
		{http.MethodPatch, "/api/v1/items/item-1"},
		{http.MethodDelete, "/api/v1/items/item-1"},
		{http.MethodGet, "/api/v1/items/export"},
		{http.MethodGet, "/api/v1/history/export"},
		{http.MethodGet, "/api/v1/metrics/summary"},
	}
	for _, route := range routes {
		w := serve(r, route.method, route.path, "employee")
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s", route.method, route.path)
	}
}

func TestDocsOnlyWhenEnabled(t *testing.T) {
	r := newTestRouter()

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/docs/index.html", "").Code)
}
