// Package metrics provides Prometheus metrics for the NEO tracker service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Cache
	cacheRequests      *prometheus.CounterVec
	cacheEntries       prometheus.Gauge
	cacheInvalidations prometheus.Counter
	staleServed        prometheus.Counter

	// Upstream
	upstreamFetches       *prometheus.CounterVec
	upstreamFetchDuration prometheus.Histogram

	// Domain
	objectsByRiskLevel *prometheus.GaugeVec
	sinkErrors         *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager registered on the configured registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "neo",
		subsystem:        "tracker",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.cacheRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_requests_total",
		Help:      "Cache lookups by result (hit, miss)",
	}, []string{"result"})

	m.cacheEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_entries",
		Help:      "Number of keys currently held by the upstream cache",
	})

	m.cacheInvalidations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_invalidations_total",
		Help:      "Manual cache invalidations",
	})

	m.staleServed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_stale_served_total",
		Help:      "Responses served from an expired entry because the refresh failed",
	})

	m.upstreamFetches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "upstream_fetches_total",
		Help:      "Upstream fetches started by the cache, by outcome",
	}, []string{"outcome"})

	m.upstreamFetchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "upstream_fetch_duration_milliseconds",
		Help:      "Duration of upstream fetches in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.objectsByRiskLevel = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "objects_by_risk_level",
		Help:      "Objects in the latest feed refresh by risk level",
	}, []string{"level"})

	m.sinkErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_errors_total",
		Help:      "Failed writes to downstream sinks",
	}, []string{"sink"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by route, method and status",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordCacheHit counts a lookup answered from a fresh entry.
func RecordCacheHit() { globalManager.cacheRequests.WithLabelValues("hit").Inc() }

// RecordCacheMiss counts a lookup that had to join or start a fetch.
func RecordCacheMiss() { globalManager.cacheRequests.WithLabelValues("miss").Inc() }

// UpdateCacheEntries sets the number of cached keys.
func UpdateCacheEntries(n int) { globalManager.cacheEntries.Set(float64(n)) }

// RecordCacheInvalidation counts a manual invalidation.
func RecordCacheInvalidation() { globalManager.cacheInvalidations.Inc() }

// RecordStaleServed counts a stale fallback.
func RecordStaleServed() { globalManager.staleServed.Inc() }

// RecordUpstreamFetch records the outcome and latency of one upstream fetch.
func RecordUpstreamFetch(outcome string, latencyMs float64) {
	globalManager.upstreamFetches.WithLabelValues(outcome).Inc()
	globalManager.upstreamFetchDuration.Observe(latencyMs)
}

// UpdateObjectsByRiskLevel replaces the per-level gauge values.
func UpdateObjectsByRiskLevel(counts map[string]int) {
	globalManager.objectsByRiskLevel.Reset()
	for level, n := range counts {
		globalManager.objectsByRiskLevel.WithLabelValues(level).Set(float64(n))
	}
}

// RecordSinkError counts a failed sink write.
func RecordSinkError(sink string) { globalManager.sinkErrors.WithLabelValues(sink).Inc() }

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// GetRegistry returns the registry backing the package-level helpers.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
