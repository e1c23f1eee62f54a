package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/pagelens/pagelens/internal/core"
)

const notAvailable = "n/a"

// metricRow is one line of the per-variant comparison.
type metricRow struct {
	label   string
	mobile  string
	desktop string
}

func metricRows(result *core.CompositeResult) []metricRow {
	m, d := result.Mobile, result.Desktop
	return []metricRow{
		{"Performance score", scoreValue(m), scoreValue(d)},
		{"Largest Contentful Paint", msValue(m, func(p *core.PerformanceMetrics) *float64 { return p.LCP }), msValue(d, func(p *core.PerformanceMetrics) *float64 { return p.LCP })},
		{"Interaction to Next Paint", msValue(m, func(p *core.PerformanceMetrics) *float64 { return p.INP }), msValue(d, func(p *core.PerformanceMetrics) *float64 { return p.INP })},
		{"Cumulative Layout Shift", clsValue(m), clsValue(d)},
		{"First Contentful Paint", msValue(m, func(p *core.PerformanceMetrics) *float64 { return p.FCP }), msValue(d, func(p *core.PerformanceMetrics) *float64 { return p.FCP })},
		{"Speed Index", msValue(m, func(p *core.PerformanceMetrics) *float64 { return p.SpeedIndex }), msValue(d, func(p *core.PerformanceMetrics) *float64 { return p.SpeedIndex })},
		{"Source", sourceValue(m), sourceValue(d)},
	}
}

func scoreValue(m *core.PerformanceMetrics) string {
	if m == nil || m.PerformanceScore == nil {
		return notAvailable
	}
	return fmt.Sprintf("%d", *m.PerformanceScore)
}

func msValue(m *core.PerformanceMetrics, field func(*core.PerformanceMetrics) *float64) string {
	if m == nil {
		return notAvailable
	}
	v := field(m)
	if v == nil {
		return notAvailable
	}
	if *v >= 1000 {
		return fmt.Sprintf("%.2f s", *v/1000)
	}
	return fmt.Sprintf("%.0f ms", *v)
}

func clsValue(m *core.PerformanceMetrics) string {
	if m == nil || m.CLS == nil {
		return notAvailable
	}
	return fmt.Sprintf("%.3f", *m.CLS)
}

func sourceValue(m *core.PerformanceMetrics) string {
	if m == nil || m.Source == "" {
		return notAvailable
	}
	if m.Source == core.SourceFallback && m.Band != "" {
		return fmt.Sprintf("%s (%s)", m.Source, m.Band)
	}
	return string(m.Source)
}

func overallValue(result *core.CompositeResult) string {
	if result == nil || result.OverallScore == nil {
		return notAvailable
	}
	return fmt.Sprintf("%.1f", *result.OverallScore)
}

// flagsValue lists the result flags that are set.
func flagsValue(result *core.CompositeResult) string {
	var flags []string
	if result.APIAvailable {
		flags = append(flags, "api")
	}
	if result.FallbackUsed {
		flags = append(flags, "fallback")
	}
	if result.RateLimitHit {
		flags = append(flags, "rate limited")
	}
	if result.CacheUsed {
		flags = append(flags, "cached")
	}
	if len(flags) == 0 {
		return "none"
	}
	return strings.Join(flags, ", ")
}

// variantErrors collects per-variant error text for display under the table.
func variantErrors(result *core.CompositeResult) []string {
	var out []string
	for _, variant := range core.Variants() {
		m := result.Metrics(variant)
		if m != nil && m.Error != "" {
			out = append(out, fmt.Sprintf("%s: %s", variant, m.Error))
		}
	}
	return out
}

func timeValue(t time.Time) string {
	if t.IsZero() {
		return notAvailable
	}
	return t.UTC().Format(time.RFC3339)
}
