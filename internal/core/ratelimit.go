package core

import "time"

// BackoffState captures the failure backoff of the upstream endpoint.
type BackoffState struct {
	ConsecutiveFailures int        `json:"consecutive_failures" yaml:"consecutive_failures"`
	BackoffUntil        *time.Time `json:"backoff_until,omitempty" yaml:"backoff_until,omitempty"`
	Last429At           *time.Time `json:"last_429_at,omitempty" yaml:"last_429_at,omitempty"`
}

// QuotaUsage is the request count recorded for one calendar day.
type QuotaUsage struct {
	Day          string    `json:"day" yaml:"day"`
	RequestCount int       `json:"request_count" yaml:"request_count"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

// LimiterSnapshot reports the limiter state at a point in time.
type LimiterSnapshot struct {
	Endpoint          string       `json:"endpoint" yaml:"endpoint"`
	Day               string       `json:"day" yaml:"day"`
	RequestsToday     int          `json:"requests_today" yaml:"requests_today"`
	DailyQuota        int          `json:"daily_quota" yaml:"daily_quota"`
	RequestsPerSecond float64      `json:"requests_per_second" yaml:"requests_per_second"`
	Backoff           BackoffState `json:"backoff" yaml:"backoff"`
}
