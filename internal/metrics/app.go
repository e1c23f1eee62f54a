package metrics

import (
	"strconv"
	"time"
)

// RecordHTTPRequest records a completed HTTP request. Endpoint must be a route
// pattern, never a raw path, to keep label cardinality bounded.
func (c *Collector) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordHealthCheck records a health check execution
func (c *Collector) RecordHealthCheck(checkName string, healthy bool) {
	if c == nil {
		return
	}
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	c.HealthChecks.WithLabelValues(checkName, status).Inc()
}

// SetServerStartTime records the server start time
func (c *Collector) SetServerStartTime(t time.Time) {
	if c == nil {
		return
	}
	c.ServerStartTime.Set(float64(t.Unix()))
}
