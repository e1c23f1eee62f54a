package cache

import (
	"context"

	"github.com/pagelens/pagelens/internal/core"
)

// Tiered reads the in-process cache first and falls through to a shared
// backend. Secondary hits are promoted into the primary tier.
type Tiered struct {
	Primary   *Memory
	Secondary Cache
}

// Get looks up key in each tier.
func (t *Tiered) Get(ctx context.Context, key Key) (*core.PerformanceMetrics, bool) {
	if t.Primary != nil {
		if metrics, ok := t.Primary.Get(ctx, key); ok {
			return metrics, true
		}
	}
	if t.Secondary == nil {
		return nil, false
	}
	metrics, ok := t.Secondary.Get(ctx, key)
	if !ok {
		return nil, false
	}
	if t.Primary != nil {
		// Keep the original age so promotion never extends the TTL.
		createdAt := metrics.FetchedAt
		if createdAt.IsZero() {
			createdAt = t.Primary.clock()
		}
		t.Primary.putAt(key, metrics, createdAt)
	}
	return metrics, true
}

// Put writes key to every tier.
func (t *Tiered) Put(ctx context.Context, key Key, metrics *core.PerformanceMetrics) {
	if t.Primary != nil {
		t.Primary.Put(ctx, key, metrics)
	}
	if t.Secondary != nil {
		t.Secondary.Put(ctx, key, metrics)
	}
}
