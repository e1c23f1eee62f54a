package output

import (
	"fmt"
	"strings"

	"github.com/pagelens/pagelens/internal/core"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatResult renders a composite result as Markdown.
func (f *MarkdownFormatter) FormatResult(result *core.CompositeResult) (string, error) {
	if result == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Performance: %s\n\n", escapeMarkdownCell(result.URL)))
	sb.WriteString("| Metric | Mobile | Desktop |\n")
	sb.WriteString("|--------|--------|---------|\n")

	for _, row := range metricRows(result) {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
			escapeMarkdownCell(row.label),
			escapeMarkdownCell(row.mobile),
			escapeMarkdownCell(row.desktop),
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Overall score**: %s\n", overallValue(result)))
	sb.WriteString(fmt.Sprintf("**Flags**: %s\n", flagsValue(result)))

	if errs := variantErrors(result); len(errs) > 0 {
		sb.WriteString("\n")
		for _, line := range errs {
			sb.WriteString(fmt.Sprintf("- %s\n", line))
		}
	}
	return sb.String(), nil
}

// FormatQuota renders quota usage as Markdown.
func (f *MarkdownFormatter) FormatQuota(usage []core.QuotaUsage, snapshot *core.LimiterSnapshot) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Day | Requests | Updated |\n")
	sb.WriteString("|-----|----------|---------|\n")
	for _, u := range usage {
		sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n", escapeMarkdownCell(u.Day), u.RequestCount, timeValue(u.UpdatedAt)))
	}
	if snapshot != nil {
		sb.WriteString("\n" + snapshotSummary(snapshot) + "\n")
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
