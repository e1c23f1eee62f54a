package output

import (
	"gopkg.in/yaml.v3"

	"github.com/pagelens/pagelens/internal/core"
)

// YAMLFormatter renders results as YAML.
type YAMLFormatter struct{}

// FormatResult renders a composite result as YAML.
func (f *YAMLFormatter) FormatResult(result *core.CompositeResult) (string, error) {
	if result == nil {
		return "", nil
	}
	data, err := yaml.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FormatQuota renders quota usage as YAML.
func (f *YAMLFormatter) FormatQuota(usage []core.QuotaUsage, snapshot *core.LimiterSnapshot) (string, error) {
	if usage == nil {
		usage = []core.QuotaUsage{}
	}
	data, err := yaml.Marshal(quotaDocument{Usage: usage, Current: snapshot})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
