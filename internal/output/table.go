package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/pagelens/pagelens/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatResult renders one URL's variants side by side.
func (f *TableFormatter) FormatResult(result *core.CompositeResult) (string, error) {
	if result == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(result.URL)
	t.AppendHeader(table.Row{"Metric", "Mobile", "Desktop"})

	for _, row := range metricRows(result) {
		t.AppendRow(table.Row{row.label, row.mobile, row.desktop})
	}

	t.AppendFooter(table.Row{"Overall", overallValue(result), flagsValue(result)})

	var sb strings.Builder
	sb.WriteString(t.Render())
	for _, line := range variantErrors(result) {
		sb.WriteString(fmt.Sprintf("\n  ! %s", line))
	}
	return sb.String(), nil
}

// FormatQuota renders stored per-day usage and, when given, the live limiter.
func (f *TableFormatter) FormatQuota(usage []core.QuotaUsage, snapshot *core.LimiterSnapshot) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Day", "Requests", "Updated"})

	for _, u := range usage {
		t.AppendRow(table.Row{u.Day, u.RequestCount, timeValue(u.UpdatedAt)})
	}
	if len(usage) == 0 {
		t.AppendRow(table.Row{"(none)", "", ""})
	}

	rendered := t.Render()
	if snapshot != nil {
		rendered += "\n" + snapshotSummary(snapshot)
	}
	return rendered, nil
}

func snapshotSummary(s *core.LimiterSnapshot) string {
	quota := fmt.Sprintf("%d", s.DailyQuota)
	if s.DailyQuota < 0 {
		quota = "unlimited"
	}

	summary := fmt.Sprintf("Today (%s): %d/%s requests, %.2f req/s", s.Day, s.RequestsToday, quota, s.RequestsPerSecond)
	if s.Backoff.BackoffUntil != nil {
		summary += fmt.Sprintf(", backoff until %s after %d failures", timeValue(*s.Backoff.BackoffUntil), s.Backoff.ConsecutiveFailures)
	}
	return summary
}
