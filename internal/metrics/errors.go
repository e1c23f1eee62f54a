package metrics

import "strconv"

// RecordError records an error response with code and status
func (c *Collector) RecordError(errorCode string, httpStatus int) {
	if c == nil {
		return
	}
	c.HTTPErrors.WithLabelValues(errorCode, strconv.Itoa(httpStatus)).Inc()
}

// RecordPanic records a panic recovery
func (c *Collector) RecordPanic() {
	if c == nil {
		return
	}
	c.Panics.Inc()
}
