package output

import (
	"encoding/json"

	"github.com/pagelens/pagelens/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatResult renders a composite result as JSON.
func (f *JSONFormatter) FormatResult(result *core.CompositeResult) (string, error) {
	if result == nil {
		return "", nil
	}
	return f.marshal(result)
}

// FormatQuota renders quota usage as JSON.
func (f *JSONFormatter) FormatQuota(usage []core.QuotaUsage, snapshot *core.LimiterSnapshot) (string, error) {
	if usage == nil {
		usage = []core.QuotaUsage{}
	}
	return f.marshal(quotaDocument{Usage: usage, Current: snapshot})
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// quotaDocument is the JSON and YAML shape of a quota listing.
type quotaDocument struct {
	Usage   []core.QuotaUsage     `json:"usage" yaml:"usage"`
	Current *core.LimiterSnapshot `json:"current,omitempty" yaml:"current,omitempty"`
}
