// Package checker talks to the network: the PageSpeed upstream API and the
// plain page fetch behind fallback estimates.
package checker

import (
	"context"

	"github.com/pagelens/pagelens/internal/core"
)

// Upstream is satisfied by PageSpeedClient.
type Upstream interface {
	// Fetch performs one upstream attempt for target.
	Fetch(ctx context.Context, target string, variant core.Variant) (core.UpstreamResponse, error)

	// HasCredential returns true when the API can be called at all.
	HasCredential() bool
}

// Estimator is satisfied by FallbackEstimator.
type Estimator interface {
	// Estimate derives metrics without the upstream API. It never fails.
	Estimate(ctx context.Context, target string, variant core.Variant) *core.PerformanceMetrics
}

var (
	_ Upstream  = (*PageSpeedClient)(nil)
	_ Estimator = (*FallbackEstimator)(nil)
	_ Fetcher   = (*HTTPFetcher)(nil)
)
