package core

import "time"

// Variant identifies the measurement context of a performance run.
type Variant string

const (
	VariantMobile  Variant = "mobile"
	VariantDesktop Variant = "desktop"
)

// Variants returns every variant in analysis order.
func Variants() []Variant {
	return []Variant{VariantMobile, VariantDesktop}
}

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	return v == VariantMobile || v == VariantDesktop
}

// Source records where a metrics snapshot came from.
type Source string

const (
	SourceAPI      Source = "api"
	SourceFallback Source = "fallback"
)

// PerformanceMetrics is a single variant measurement.
// Nil numeric fields mean the value is unavailable, not zero.
type PerformanceMetrics struct {
	Variant          Variant   `json:"variant" yaml:"variant"`
	Source           Source    `json:"source" yaml:"source"`
	LCP              *float64  `json:"largest_contentful_paint_ms" yaml:"largest_contentful_paint_ms"`
	INP              *float64  `json:"interaction_to_next_paint_ms" yaml:"interaction_to_next_paint_ms"`
	CLS              *float64  `json:"cumulative_layout_shift" yaml:"cumulative_layout_shift"`
	FCP              *float64  `json:"first_contentful_paint_ms" yaml:"first_contentful_paint_ms"`
	SpeedIndex       *float64  `json:"speed_index_ms" yaml:"speed_index_ms"`
	PerformanceScore *int      `json:"performance_score" yaml:"performance_score"`
	LoadTime         *float64  `json:"load_time_seconds,omitempty" yaml:"load_time_seconds,omitempty"`
	Band             string    `json:"band,omitempty" yaml:"band,omitempty"`
	Error            string    `json:"error,omitempty" yaml:"error,omitempty"`
	FetchedAt        time.Time `json:"fetched_at" yaml:"fetched_at"`
}

// Clone returns a deep copy so cached snapshots cannot be mutated by callers.
func (m *PerformanceMetrics) Clone() *PerformanceMetrics {
	if m == nil {
		return nil
	}
	out := *m
	out.LCP = cloneFloat(m.LCP)
	out.INP = cloneFloat(m.INP)
	out.CLS = cloneFloat(m.CLS)
	out.FCP = cloneFloat(m.FCP)
	out.SpeedIndex = cloneFloat(m.SpeedIndex)
	out.LoadTime = cloneFloat(m.LoadTime)
	if m.PerformanceScore != nil {
		score := *m.PerformanceScore
		out.PerformanceScore = &score
	}
	return &out
}

// CompositeResult combines both variants for one URL.
type CompositeResult struct {
	CheckID      string              `json:"check_id" yaml:"check_id"`
	URL          string              `json:"url" yaml:"url"`
	Mobile       *PerformanceMetrics `json:"mobile" yaml:"mobile"`
	Desktop      *PerformanceMetrics `json:"desktop" yaml:"desktop"`
	OverallScore *float64            `json:"overall_score" yaml:"overall_score"`
	APIAvailable bool                `json:"api_available" yaml:"api_available"`
	FallbackUsed bool                `json:"fallback_used" yaml:"fallback_used"`
	RateLimitHit bool                `json:"rate_limit_hit" yaml:"rate_limit_hit"`
	CacheUsed    bool                `json:"cache_used" yaml:"cache_used"`
	RequestedAt  time.Time           `json:"requested_at" yaml:"requested_at"`
	ResolvedAt   time.Time           `json:"resolved_at" yaml:"resolved_at"`
}

// Metrics returns the snapshot for a variant.
func (r *CompositeResult) Metrics(variant Variant) *PerformanceMetrics {
	if r == nil {
		return nil
	}
	switch variant {
	case VariantMobile:
		return r.Mobile
	case VariantDesktop:
		return r.Desktop
	default:
		return nil
	}
}

// UpstreamResponse is the outcome of one upstream API attempt.
// Metrics is only set for a 200 response that parsed cleanly.
type UpstreamResponse struct {
	StatusCode int
	RetryAfter time.Duration
	Metrics    *PerformanceMetrics
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
