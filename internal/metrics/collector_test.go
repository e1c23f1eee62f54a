package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/pagelens/pagelens/internal/core"
	"github.com/pagelens/pagelens/internal/metrics"
)

func TestCollectorObservesPipelineEvents(t *testing.T) {
	c := metrics.NewWithRegistry(prometheus.NewRegistry())

	c.Observe(core.Event{Kind: core.EventCacheMiss})
	c.Observe(core.Event{Kind: core.EventCacheHit})
	c.Observe(core.Event{Kind: core.EventCacheHit})
	c.Observe(core.Event{Kind: core.EventAdmitted, RequestsUsed: 12})
	c.Observe(core.Event{Kind: core.EventDenied, Reason: "daily_quota_exceeded"})
	c.Observe(core.Event{Kind: core.EventDenied})
	c.Observe(core.Event{Kind: core.EventBackoff, StatusCode: 429, Wait: 4 * time.Second, RequestsUsed: 2})
	c.Observe(core.Event{Kind: core.EventFallback, Reason: "rate_limited"})

	require.Equal(t, 2.0, testutil.ToFloat64(c.CacheLookups.WithLabelValues("hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.CacheLookups.WithLabelValues("miss")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.Admissions))
	require.Equal(t, 12.0, testutil.ToFloat64(c.QuotaUsed))
	require.Equal(t, 1.0, testutil.ToFloat64(c.Denials.WithLabelValues("daily_quota_exceeded")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.Denials.WithLabelValues("unknown")))
	require.Equal(t, 4.0, testutil.ToFloat64(c.BackoffSeconds))
	require.Equal(t, 2.0, testutil.ToFloat64(c.ConsecutiveErrors))
	require.Equal(t, 1.0, testutil.ToFloat64(c.Fallbacks.WithLabelValues("rate_limited")))

	c.Observe(core.Event{Kind: core.EventUpstream, Variant: core.VariantMobile, StatusCode: 200, Duration: 2 * time.Second})
	require.Equal(t, 1.0, testutil.ToFloat64(c.UpstreamRequests.WithLabelValues("mobile", "200")))
	require.Zero(t, testutil.ToFloat64(c.BackoffSeconds))
	require.Zero(t, testutil.ToFloat64(c.ConsecutiveErrors))
}

func TestCollectorHandler(t *testing.T) {
	c := metrics.New()
	c.RecordHTTPRequest("GET", "/v1/performance", 200, 150*time.Millisecond)
	c.RecordError("INVALID_INPUT", 400)
	c.RecordPanic()
	c.RecordHealthCheck("store", false)
	c.SetServerStartTime(time.Unix(1700000000, 0))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	require.True(t, strings.Contains(text, `pagelens_http_requests_total{endpoint="/v1/performance",method="GET",status="200"} 1`))
	require.True(t, strings.Contains(text, `pagelens_errors_total{error_code="INVALID_INPUT",http_status="400"} 1`))
	require.True(t, strings.Contains(text, "pagelens_panics_total 1"))
	require.True(t, strings.Contains(text, `pagelens_health_check_total{check="store",status="unhealthy"} 1`))
	require.True(t, strings.Contains(text, "go_goroutines"))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *metrics.Collector
	require.NotPanics(t, func() {
		c.Observe(core.Event{Kind: core.EventAdmitted})
		c.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
		c.RecordError("X", 500)
		c.RecordPanic()
		c.RecordHealthCheck("x", true)
		c.SetServerStartTime(time.Now())
	})
}
