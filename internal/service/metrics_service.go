package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reservation outcomes recorded by the stock coordinator.
const (
	ReservationGranted      = "granted"
	ReservationInsufficient = "insufficient"
	ReservationNotFound     = "not_found"
	ReservationError        = "error"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	reservations     *prometheus.CounterVec
	releaseClamped   prometheus.Counter
	transitions      *prometheus.CounterVec
	historyFailures  prometheus.Counter
	historyDropped   prometheus.Counter
	lockContention   prometheus.Counter
	historyQueueSize prometheus.Gauge

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	historyFailureCount  uint64
	clampCount           uint64
}

// MetricsSnapshot summarises counters for the JSON metrics endpoint.
type MetricsSnapshot struct {
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	HistoryAppendFailures    uint64    `json:"historyAppendFailures"`
	StockReleaseClamps       uint64    `json:"stockReleaseClamps"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservations_total",
		Help: "Stock reservation attempts by outcome",
	}, []string{"outcome"})

	releaseClamped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_release_clamped_total",
		Help: "Releases that would have pushed available above total",
	})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "request_transitions_total",
		Help: "Request lifecycle transitions by target status and result",
	}, []string{"to", "result"})

	historyFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "history_append_failures_total",
		Help: "History entries that failed to persist on first attempt",
	})

	historyDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "history_append_dropped_total",
		Help: "History entries abandoned after exhausting retries",
	})

	lockContention := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "request_lock_contention_total",
		Help: "Transitions rejected because another worker held the request lock",
	})

	historyQueueSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "history_retry_queue_size",
		Help: "History entries waiting for a retry",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		reservations, releaseClamped, transitions, historyFailures, historyDropped, lockContention, historyQueueSize, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:         registry,
		handler:          handler,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheLatency:     cacheLatency,
		cacheWrite:       cacheWrite,
		cacheHitRatio:    cacheHitRatio,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		reservations:     reservations,
		releaseClamped:   releaseClamped,
		transitions:      transitions,
		historyFailures:  historyFailures,
		historyDropped:   historyDropped,
		lockContention:   lockContention,
		historyQueueSize: historyQueueSize,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordReservation counts a reservation attempt by outcome.
func (m *MetricsService) RecordReservation(outcome string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(outcome).Inc()
}

// RecordReleaseClamp counts a release that hit the total ceiling.
func (m *MetricsService) RecordReleaseClamp() {
	if m == nil {
		return
	}
	m.releaseClamped.Inc()
	atomic.AddUint64(&m.clampCount, 1)
}

// RecordTransition counts a lifecycle transition attempt.
func (m *MetricsService) RecordTransition(to string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.transitions.WithLabelValues(to, result).Inc()
}

// RecordHistoryFailure counts a failed first attempt to append history.
func (m *MetricsService) RecordHistoryFailure() {
	if m == nil {
		return
	}
	m.historyFailures.Inc()
	atomic.AddUint64(&m.historyFailureCount, 1)
}

// RecordHistoryDropped counts a history entry that was abandoned.
func (m *MetricsService) RecordHistoryDropped() {
	if m == nil {
		return
	}
	m.historyDropped.Inc()
}

// SetHistoryQueueSize reports the retry backlog.
func (m *MetricsService) SetHistoryQueueSize(n int) {
	if m == nil {
		return
	}
	m.historyQueueSize.Set(float64(n))
}

// RecordLockContention counts a transition turned away by a held lock.
func (m *MetricsService) RecordLockContention() {
	if m == nil {
		return
	}
	m.lockContention.Inc()
}

// Snapshot returns aggregated metrics suitable for the JSON metrics endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if totalLookups := hits + misses; totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		HistoryAppendFailures:    atomic.LoadUint64(&m.historyFailureCount),
		StockReleaseClamps:       atomic.LoadUint64(&m.clampCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
