// Package metrics provides Prometheus metrics for the PageSpeed pipeline and
// the HTTP server.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pagelens/pagelens/internal/core"
)

// Namespace prefixes every metric name.
const Namespace = "pagelens"

// Collector holds all Prometheus metrics. It implements core.Observer so it can
// be attached directly to the manager and rate limiter.
type Collector struct {
	registry *prometheus.Registry

	// Pipeline metrics
	CacheLookups      *prometheus.CounterVec
	Admissions        prometheus.Counter
	Denials           *prometheus.CounterVec
	UpstreamRequests  *prometheus.CounterVec
	UpstreamDuration  *prometheus.HistogramVec
	Fallbacks         *prometheus.CounterVec
	PersistFailures   *prometheus.CounterVec
	QuotaUsed         prometheus.Gauge
	BackoffSeconds    prometheus.Gauge
	ConsecutiveErrors prometheus.Gauge

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPErrors   *prometheus.CounterVec
	Panics       prometheus.Counter

	// Server lifecycle
	HealthChecks    *prometheus.CounterVec
	ServerStartTime prometheus.Gauge
}

// New creates a collector on its own registry, including Go runtime and
// process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg)
}

// NewWithRegistry creates a collector registering into reg.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	c := &Collector{
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "cache_lookups_total",
				Help:      "Response cache lookups by result",
			},
			[]string{"result"},
		),
		Admissions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "ratelimit_admitted_total",
				Help:      "Upstream requests admitted by the rate limiter",
			},
		),
		Denials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "ratelimit_denied_total",
				Help:      "Rate limiter denials by reason",
			},
			[]string{"reason"},
		),
		UpstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "upstream_requests_total",
				Help:      "PageSpeed API requests by strategy and status code",
			},
			[]string{"strategy", "status"},
		),
		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "upstream_duration_seconds",
				Help:      "PageSpeed API request duration in seconds",
				Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 15, 20, 30, 60},
			},
			[]string{"strategy"},
		),
		Fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "fallback_total",
				Help:      "Fallback estimates by reason",
			},
			[]string{"reason"},
		),
		PersistFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "state_persist_failures_total",
				Help:      "Failed writes of limiter state",
			},
			[]string{"state"},
		),
		QuotaUsed: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "quota_requests_today",
				Help:      "Upstream requests counted against today's quota",
			},
		),
		BackoffSeconds: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "backoff_window_seconds",
				Help:      "Length of the most recent backoff window",
			},
		),
		ConsecutiveErrors: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "upstream_consecutive_failures",
				Help:      "Consecutive upstream failures since the last success",
			},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests processed",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "endpoint"},
		),
		HTTPErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "errors_total",
				Help:      "Error responses by code and status",
			},
			[]string{"error_code", "http_status"},
		),
		Panics: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "panics_total",
				Help:      "Recovered handler panics",
			},
		),

		HealthChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "health_check_total",
				Help:      "Health checks by name and status",
			},
			[]string{"check", "status"},
		),
		ServerStartTime: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "server_start_time_seconds",
				Help:      "Unix time the server started",
			},
		),
	}

	if r, ok := reg.(*prometheus.Registry); ok {
		c.registry = r
	}
	return c
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Observe implements core.Observer.
func (c *Collector) Observe(e core.Event) {
	if c == nil {
		return
	}

	switch e.Kind {
	case core.EventCacheHit:
		c.CacheLookups.WithLabelValues("hit").Inc()
	case core.EventCacheMiss:
		c.CacheLookups.WithLabelValues("miss").Inc()
	case core.EventAdmitted:
		c.Admissions.Inc()
		c.QuotaUsed.Set(float64(e.RequestsUsed))
	case core.EventDenied:
		c.Denials.WithLabelValues(labelOrUnknown(e.Reason)).Inc()
	case core.EventUpstream:
		c.UpstreamRequests.WithLabelValues(string(e.Variant), strconv.Itoa(e.StatusCode)).Inc()
		if e.Duration > 0 {
			c.UpstreamDuration.WithLabelValues(string(e.Variant)).Observe(e.Duration.Seconds())
		}
		if e.Err == nil {
			c.ConsecutiveErrors.Set(0)
			c.BackoffSeconds.Set(0)
		}
	case core.EventBackoff:
		c.BackoffSeconds.Set(e.Wait.Seconds())
		c.ConsecutiveErrors.Set(float64(e.RequestsUsed))
	case core.EventFallback:
		c.Fallbacks.WithLabelValues(labelOrUnknown(e.Reason)).Inc()
	case core.EventPersistFailed:
		c.PersistFailures.WithLabelValues(labelOrUnknown(e.Reason)).Inc()
	}
}

func labelOrUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
