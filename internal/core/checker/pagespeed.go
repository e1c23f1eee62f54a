package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pagelens/pagelens/internal/core"
)

// DefaultPageSpeedURL is the public PageSpeed Insights v5 endpoint.
const DefaultPageSpeedURL = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

const (
	defaultRequestTimeout = 30 * time.Second
	maxResponseBytes      = 16 << 20
)

// Audit ids read from lighthouseResult.audits.
const (
	auditLCP        = "largest-contentful-paint"
	auditINP        = "interaction-to-next-paint"
	auditCLS        = "cumulative-layout-shift"
	auditFCP        = "first-contentful-paint"
	auditSpeedIndex = "speed-index"
)

// PageSpeedClient calls the PageSpeed Insights runPagespeed endpoint.
type PageSpeedClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	// Timeout bounds one request and is independent of limiter waits.
	Timeout time.Duration
	Clock   func() time.Time
}

// HasCredential reports whether an API key is configured.
func (c *PageSpeedClient) HasCredential() bool {
	return c != nil && strings.TrimSpace(c.APIKey) != ""
}

// Fetch performs one API attempt. Non-200 responses are not errors; the
// status code and Retry-After hint are returned for the limiter. Transport
// failures return StatusTimeout or StatusNetworkError with the error.
func (c *PageSpeedClient) Fetch(ctx context.Context, target string, variant core.Variant) (core.UpstreamResponse, error) {
	if c == nil {
		return core.UpstreamResponse{StatusCode: core.StatusNetworkError}, errors.New("pagespeed client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(target, variant), nil)
	if err != nil {
		return core.UpstreamResponse{StatusCode: core.StatusNetworkError}, err
	}
	req.Header.Set("Accept", "application/json")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return core.UpstreamResponse{StatusCode: transportStatus(err)}, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return core.UpstreamResponse{
			StatusCode: resp.StatusCode,
			RetryAfter: retryAfterHeader(resp, c.now()),
		}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return core.UpstreamResponse{StatusCode: transportStatus(err)}, err
	}

	metrics, err := ParsePageSpeed(body)
	if err != nil {
		return core.UpstreamResponse{StatusCode: resp.StatusCode}, err
	}
	metrics.Variant = variant
	metrics.Source = core.SourceAPI
	metrics.FetchedAt = c.now()
	return core.UpstreamResponse{StatusCode: resp.StatusCode, Metrics: metrics}, nil
}

func (c *PageSpeedClient) requestURL(target string, variant core.Variant) string {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		base = DefaultPageSpeedURL
	}

	query := url.Values{}
	query.Set("url", target)
	query.Set("strategy", string(variant))
	query.Set("category", "performance")
	if key := strings.TrimSpace(c.APIKey); key != "" {
		query.Set("key", key)
	}

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + query.Encode()
}

func (c *PageSpeedClient) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

type pageSpeedResponse struct {
	LighthouseResult *struct {
		Audits     map[string]lighthouseAudit `json:"audits"`
		Categories struct {
			Performance *struct {
				Score *float64 `json:"score"`
			} `json:"performance"`
		} `json:"categories"`
	} `json:"lighthouseResult"`
	LoadingExperience *struct {
		Metrics map[string]struct {
			Percentile *float64 `json:"percentile"`
		} `json:"metrics"`
	} `json:"loadingExperience"`
}

type lighthouseAudit struct {
	NumericValue *float64 `json:"numericValue"`
}

// ParsePageSpeed extracts metrics from a runPagespeed response body.
// Missing audits stay nil.
func ParsePageSpeed(body []byte) (*core.PerformanceMetrics, error) {
	var payload pageSpeedResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode pagespeed response: %w", err)
	}
	if payload.LighthouseResult == nil {
		return nil, errors.New("pagespeed response has no lighthouseResult")
	}

	audits := payload.LighthouseResult.Audits
	metrics := &core.PerformanceMetrics{
		LCP:        auditValue(audits, auditLCP),
		INP:        auditValue(audits, auditINP),
		CLS:        auditValue(audits, auditCLS),
		FCP:        auditValue(audits, auditFCP),
		SpeedIndex: auditValue(audits, auditSpeedIndex),
	}

	// Lab runs rarely carry INP; use the field percentile when present.
	if metrics.INP == nil && payload.LoadingExperience != nil {
		if field, ok := payload.LoadingExperience.Metrics["INTERACTION_TO_NEXT_PAINT"]; ok && field.Percentile != nil {
			metrics.INP = core.Float(*field.Percentile)
		}
	}

	if perf := payload.LighthouseResult.Categories.Performance; perf != nil && perf.Score != nil {
		metrics.PerformanceScore = core.Int(int(math.Round(*perf.Score * 100)))
	}
	return metrics, nil
}

func auditValue(audits map[string]lighthouseAudit, id string) *float64 {
	audit, ok := audits[id]
	if !ok || audit.NumericValue == nil {
		return nil
	}
	return core.Float(*audit.NumericValue)
}
