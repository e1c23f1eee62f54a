package checker

import (
	"context"
	"math"
	"time"

	"github.com/pagelens/pagelens/internal/core"
)

// Performance bands for fetch-latency estimates.
const (
	BandExcellent = "excellent"
	BandGood      = "good"
	BandFair      = "fair"
	BandPoor      = "poor"
)

// Band upper bounds in seconds.
const (
	excellentMax = 1.5
	goodMax      = 3.0
	fairMax      = 5.0
)

// LoadBand maps a fetch duration in seconds to a band.
func LoadBand(seconds float64) string {
	switch {
	case seconds <= excellentMax:
		return BandExcellent
	case seconds <= goodMax:
		return BandGood
	case seconds <= fairMax:
		return BandFair
	default:
		return BandPoor
	}
}

// EstimateScore converts a fetch duration in seconds to a 10-100 score.
func EstimateScore(seconds float64) int {
	var score float64
	switch LoadBand(seconds) {
	case BandExcellent:
		score = 95
	case BandGood:
		score = 80 - (seconds-excellentMax)*20
	case BandFair:
		score = 60 - (seconds-goodMax)*15
	default:
		score = math.Max(10, 50-seconds*5)
	}
	score = math.Min(100, math.Max(10, score))
	return int(score)
}

// EstimateMetrics derives a fallback snapshot from a fetch duration.
func EstimateMetrics(variant core.Variant, elapsed time.Duration) *core.PerformanceMetrics {
	seconds := elapsed.Seconds()
	return &core.PerformanceMetrics{
		Variant:          variant,
		Source:           core.SourceFallback,
		LCP:              core.Float(seconds * 1000),
		FCP:              core.Float(seconds * 800),
		CLS:              core.Float(math.Min(0.5, seconds*0.1)),
		INP:              core.Float(math.Min(500, seconds*100)),
		PerformanceScore: core.Int(EstimateScore(seconds)),
		LoadTime:         core.Float(seconds),
		Band:             LoadBand(seconds),
	}
}

// FallbackEstimator scores a page from raw fetch latency when the upstream
// API cannot be used.
type FallbackEstimator struct {
	Fetcher Fetcher
	Clock   func() time.Time
}

// Estimate never fails. A failed fetch yields a snapshot with every numeric
// field nil and Error set.
func (e *FallbackEstimator) Estimate(ctx context.Context, target string, variant core.Variant) *core.PerformanceMetrics {
	var fetcher Fetcher = &HTTPFetcher{}
	if e != nil && e.Fetcher != nil {
		fetcher = e.Fetcher
	}

	elapsed, err := fetcher.Fetch(ctx, target, variant)
	if err != nil {
		return &core.PerformanceMetrics{
			Variant:   variant,
			Source:    core.SourceFallback,
			Error:     err.Error(),
			FetchedAt: e.now(),
		}
	}

	metrics := EstimateMetrics(variant, elapsed)
	metrics.FetchedAt = e.now()
	return metrics
}

func (e *FallbackEstimator) now() time.Time {
	if e != nil && e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}
