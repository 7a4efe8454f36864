package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/asset-inventory-api/internal/service"
)

func TestMetricsHandlerReady(t *testing.T) {
	healthy := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	handler := NewMetricsHandler(nil, map[string]Pinger{"postgres": healthy})
	rec, c := newTestContext(http.MethodGet, "/ready", nil, nil)
	handler.Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"postgres":"ok"}}`, rec.Body.String())

	handler = NewMetricsHandler(nil, map[string]Pinger{"postgres": healthy, "redis": down})
	rec, c = newTestContext(http.MethodGet, "/ready", nil, nil)
	handler.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordReservation(service.ReservationGranted)
	handler := NewMetricsHandler(metrics, nil)

	rec, c := newTestContext(http.MethodGet, "/metrics", nil, nil)
	handler.Prometheus(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `stock_reservations_total{outcome="granted"} 1`))
}

func TestMetricsHandlerPrometheusWithoutService(t *testing.T) {
	handler := NewMetricsHandler(nil, nil)

	_, c := newTestContext(http.MethodGet, "/metrics", nil, nil)
	handler.Prometheus(c)

	assert.Equal(t, http.StatusServiceUnavailable, c.Writer.Status())
}
