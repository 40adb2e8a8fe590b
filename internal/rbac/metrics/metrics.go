package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors of the engine
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization gate
	ChecksTotal          *prometheus.CounterVec
	CheckDuration        prometheus.Histogram
	ResolveErrorsTotal   prometheus.Counter
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CacheEvictionsTotal  *prometheus.CounterVec
	EventPublishFailures prometheus.Counter

	// Audit
	AuditWritesTotal        prometheus.Counter
	AuditWriteFailuresTotal prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers all collectors on registry.
// A nil registry gets a private one, which keeps tests isolated.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rbac_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rbac_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rbac_checks_total",
				Help: "Authorization checks by outcome",
			},
			[]string{"result"},
		),
		CheckDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rbac_check_duration_seconds",
				Help:    "Authorization check latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
			},
		),
		ResolveErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rbac_resolve_errors_total",
				Help: "Effective permission resolutions that failed and were denied",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rbac_cache_hits_total",
				Help: "Effective permission cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rbac_cache_misses_total",
				Help: "Effective permission cache misses",
			},
		),
		CacheEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rbac_cache_invalidations_total",
				Help: "Cache invalidations by scope",
			},
			[]string{"scope"},
		),
		EventPublishFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rbac_event_publish_failures_total",
				Help: "Invalidation events that could not be published to peers",
			},
		),
		AuditWritesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rbac_audit_writes_total",
				Help: "Activity records written",
			},
		),
		AuditWriteFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rbac_audit_write_failures_total",
				Help: "Activity records that could not be written",
			},
		),
		registry: registry,
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ChecksTotal,
		m.CheckDuration,
		m.ResolveErrorsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEvictionsTotal,
		m.EventPublishFailures,
		m.AuditWritesTotal,
		m.AuditWriteFailuresTotal,
	)

	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HTTPMiddleware records request counts and latency per route template
func (m *Metrics) HTTPMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)

			m.HTTPRequestsTotal.WithLabelValues(c.Request().Method, path, status).Inc()
			m.HTTPRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
