package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pagelens/pagelens/internal/core"
)

func sampleResult() *core.CompositeResult {
	return &core.CompositeResult{
		URL: "https://example.com",
		Mobile: &core.PerformanceMetrics{
			Variant:          core.VariantMobile,
			Source:           core.SourceAPI,
			LCP:              core.Float(2500),
			CLS:              core.Float(0.05),
			FCP:              core.Float(800),
			PerformanceScore: core.Int(70),
		},
		Desktop: &core.PerformanceMetrics{
			Variant: core.VariantDesktop,
			Source:  core.SourceFallback,
			Band:    "moderate",
			Error:   "upstream rate limited",
		},
		OverallScore: core.Float(70),
		APIAvailable: true,
		FallbackUsed: true,
		RateLimitHit: true,
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("yml")
	require.NoError(t, err)
	require.Equal(t, FormatYAML, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func TestFormatResultListJSON(t *testing.T) {
	rendered, err := FormatResultList(FormatJSON, []*core.CompositeResult{sampleResult()})
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Len(t, decoded, 1)
	require.Equal(t, "https://example.com", decoded[0]["url"])
	require.Nil(t, decoded[0]["desktop"].(map[string]any)["performance_score"])
}

func TestFormatResultListYAML(t *testing.T) {
	rendered, err := FormatResultList(FormatYAML, []*core.CompositeResult{sampleResult()})
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(rendered), &decoded))
	require.Equal(t, true, decoded[0]["rate_limit_hit"])
}

func TestFormatters(t *testing.T) {
	result := sampleResult()

	tableRendered, err := NewFormatter(FormatTable).FormatResult(result)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "METRIC")
	require.Contains(t, tableRendered, "https://example.com")
	require.Contains(t, tableRendered, "2.50 s")
	require.Contains(t, tableRendered, "800 ms")
	require.Contains(t, tableRendered, "0.050")
	require.Contains(t, tableRendered, "fallback (moderate)")
	require.Contains(t, tableRendered, "n/a")
	require.Contains(t, tableRendered, "desktop: upstream rate limited")

	mdRendered, err := NewFormatter(FormatMarkdown).FormatResult(result)
	require.NoError(t, err)
	require.Contains(t, mdRendered, "| Metric | Mobile | Desktop |")
	require.Contains(t, mdRendered, "| Performance score | 70 | n/a |")
	require.Contains(t, mdRendered, "**Overall score**: 70.0")
	require.Contains(t, mdRendered, "**Flags**: api, fallback, rate limited")

	jsonRendered, err := NewFormatter(FormatJSON).FormatResult(result)
	require.NoError(t, err)
	require.Contains(t, jsonRendered, "\"overall_score\": 70")
}

func TestNilValuesRenderNotAvailable(t *testing.T) {
	rendered, err := NewFormatter(FormatMarkdown).FormatResult(&core.CompositeResult{URL: "https://empty.test"})
	require.NoError(t, err)
	require.Contains(t, rendered, "| Largest Contentful Paint | n/a | n/a |")
	require.Contains(t, rendered, "**Overall score**: n/a")
	require.Contains(t, rendered, "**Flags**: none")
}

func TestFormatResultListSkipsNil(t *testing.T) {
	rendered, err := FormatResultList(FormatMarkdown, []*core.CompositeResult{nil, sampleResult(), sampleResult()})
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(rendered, "## Performance:"))
}

func TestFormatQuota(t *testing.T) {
	updated := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	usage := []core.QuotaUsage{{Day: "2025-03-01", RequestCount: 42, UpdatedAt: updated}}
	snapshot := &core.LimiterSnapshot{Day: "2025-03-01", RequestsToday: 42, DailyQuota: -1, RequestsPerSecond: 4.5}

	tableRendered, err := NewFormatter(FormatTable).FormatQuota(usage, snapshot)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "2025-03-01")
	require.Contains(t, tableRendered, "42/unlimited requests")

	jsonRendered, err := NewFormatter(FormatJSON).FormatQuota(nil, nil)
	require.NoError(t, err)
	require.Contains(t, jsonRendered, "\"usage\": []")
	require.NotContains(t, jsonRendered, "current")

	yamlRendered, err := NewFormatter(FormatYAML).FormatQuota(usage, nil)
	require.NoError(t, err)
	require.Contains(t, yamlRendered, "request_count: 42")
}
