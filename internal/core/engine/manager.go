package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pagelens/pagelens/internal/core"
	"github.com/pagelens/pagelens/internal/core/cache"
)

// DefaultAcquireTimeout bounds how long one variant waits for admission.
const DefaultAcquireTimeout = 5 * time.Second

// Upstream performs one performance API attempt.
type Upstream interface {
	Fetch(ctx context.Context, target string, variant core.Variant) (core.UpstreamResponse, error)
	HasCredential() bool
}

// Estimator derives metrics without the upstream API.
type Estimator interface {
	Estimate(ctx context.Context, target string, variant core.Variant) *core.PerformanceMetrics
}

// ResponseCache stores successful upstream metrics.
type ResponseCache interface {
	Get(ctx context.Context, key cache.Key) (*core.PerformanceMetrics, bool)
	Put(ctx context.Context, key cache.Key, metrics *core.PerformanceMetrics)
}

// Manager resolves performance metrics for a URL from cache, the upstream API
// or the fallback estimator. It is built once and shared by all callers.
type Manager struct {
	Upstream       Upstream
	Estimator      Estimator
	Limiter        *RateLimiter
	Cache          ResponseCache
	AcquireTimeout time.Duration
	Observer       core.Observer
	Clock          func() time.Time
}

type variantOutcome struct {
	metrics      *core.PerformanceMetrics
	apiAvailable bool
	fallbackUsed bool
	rateLimitHit bool
	cacheUsed    bool
}

// AnalyzePerformance resolves both variants for target. It never fails: every
// failure path ends in cached, live or fallback metrics, and the result
// flags say which.
func (m *Manager) AnalyzePerformance(ctx context.Context, target string) *core.CompositeResult {
	if ctx == nil {
		ctx = context.Background()
	}
	target = strings.TrimSpace(target)

	result := &core.CompositeResult{
		CheckID:     uuid.NewString(),
		URL:         target,
		RequestedAt: m.now(),
	}

	for _, variant := range core.Variants() {
		outcome := m.resolveVariant(ctx, target, variant)
		switch variant {
		case core.VariantMobile:
			result.Mobile = outcome.metrics
		case core.VariantDesktop:
			result.Desktop = outcome.metrics
		}
		result.APIAvailable = result.APIAvailable || outcome.apiAvailable
		result.FallbackUsed = result.FallbackUsed || outcome.fallbackUsed
		result.RateLimitHit = result.RateLimitHit || outcome.rateLimitHit
		result.CacheUsed = result.CacheUsed || outcome.cacheUsed
	}

	result.OverallScore = CombineScores(score(result.Mobile), score(result.Desktop))
	result.ResolvedAt = m.now()
	return result
}

func (m *Manager) resolveVariant(ctx context.Context, target string, variant core.Variant) variantOutcome {
	key := cache.Key{Target: target, Variant: variant}

	if m.Cache != nil {
		if cached, ok := m.Cache.Get(ctx, key); ok {
			m.emit(core.Event{Kind: core.EventCacheHit, Target: target, Variant: variant})
			return variantOutcome{metrics: cached, cacheUsed: true, apiAvailable: cached.Source == core.SourceAPI}
		}
		m.emit(core.Event{Kind: core.EventCacheMiss, Target: target, Variant: variant})
	}

	if m.Upstream == nil || !m.Upstream.HasCredential() {
		m.emit(core.Event{Kind: core.EventCredentialMissing, Target: target, Variant: variant, Err: core.ErrMissingCredential})
		return m.fallback(ctx, target, variant, core.ErrMissingCredential, variantOutcome{})
	}

	if m.Limiter != nil {
		if decision := m.Limiter.AcquireDecision(ctx, m.acquireTimeout()); !decision.Allowed {
			reason := decision.Err()
			if reason == nil {
				reason = core.ErrRateLimited
			}
			return m.fallback(ctx, target, variant, reason, variantOutcome{rateLimitHit: true})
		}
	}

	start := time.Now()
	resp, err := m.Upstream.Fetch(ctx, target, variant)
	elapsed := time.Since(start)
	m.emit(core.Event{Kind: core.EventUpstream, Target: target, Variant: variant, StatusCode: resp.StatusCode, Duration: elapsed, Err: err})

	// The caller gave up; the upstream did not fail, so the shared backoff
	// is left alone. The client's own request timeout is not ctx's deadline.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return m.fallback(ctx, target, variant, ctxErr, variantOutcome{})
	}

	if resp.StatusCode == http.StatusOK && resp.Metrics != nil {
		if m.Limiter != nil {
			m.Limiter.RecordSuccess()
		}
		metrics := resp.Metrics
		metrics.Variant = variant
		metrics.Source = core.SourceAPI
		if metrics.FetchedAt.IsZero() {
			metrics.FetchedAt = m.now()
		}
		if m.Cache != nil {
			m.Cache.Put(ctx, key, metrics)
		}
		return variantOutcome{metrics: metrics, apiAvailable: true}
	}

	status := resp.StatusCode
	if status == http.StatusOK {
		// 200 with a body that did not parse counts as a generic failure.
		status = http.StatusBadGateway
	}
	if m.Limiter != nil {
		m.Limiter.RecordFailureRetryAfter(status, resp.RetryAfter)
	}

	reason := core.ClassifyStatus(status)
	if err != nil {
		reason = fmt.Errorf("%w: %v", reason, err)
	}
	outcome := variantOutcome{rateLimitHit: status == http.StatusTooManyRequests}
	return m.fallback(ctx, target, variant, reason, outcome)
}

func (m *Manager) fallback(ctx context.Context, target string, variant core.Variant, reason error, outcome variantOutcome) variantOutcome {
	var metrics *core.PerformanceMetrics
	if m.Estimator != nil {
		metrics = m.Estimator.Estimate(ctx, target, variant)
	}
	if metrics == nil {
		metrics = &core.PerformanceMetrics{
			Error:     core.ErrFallbackFetchFailed.Error(),
			FetchedAt: m.now(),
		}
	}
	metrics.Variant = variant
	metrics.Source = core.SourceFallback

	m.emit(core.Event{Kind: core.EventFallback, Target: target, Variant: variant, Reason: fallbackReason(reason), Err: reason})

	outcome.metrics = metrics
	outcome.fallbackUsed = true
	return outcome
}

func fallbackReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, core.ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, core.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, core.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, core.ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "api_error"
	}
}

func score(metrics *core.PerformanceMetrics) *int {
	if metrics == nil {
		return nil
	}
	return metrics.PerformanceScore
}

func (m *Manager) acquireTimeout() time.Duration {
	if m.AcquireTimeout > 0 {
		return m.AcquireTimeout
	}
	return DefaultAcquireTimeout
}

func (m *Manager) emit(e core.Event) {
	if m.Observer != nil {
		m.Observer.Observe(e)
	}
}

func (m *Manager) now() time.Time {
	if m != nil && m.Clock != nil {
		return m.Clock()
	}
	return time.Now().UTC()
}
