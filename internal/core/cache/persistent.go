package cache

import (
	"context"
	"time"

	"github.com/pagelens/pagelens/internal/core"
)

// MetricsStore is the durable table behind Persistent.
type MetricsStore interface {
	GetCachedMetrics(ctx context.Context, target string, variant core.Variant) (*core.PerformanceMetrics, time.Time, error)
	SetCachedMetrics(ctx context.Context, target string, variant core.Variant, metrics *core.PerformanceMetrics, createdAt time.Time) error
}

// Persistent keeps snapshots across CLI runs in the local store.
type Persistent struct {
	Store   MetricsStore
	TTL     time.Duration
	Clock   func() time.Time
	OnError ErrorHandler
}

// NewPersistent wraps store.
func NewPersistent(store MetricsStore, ttl time.Duration, clock func() time.Time) *Persistent {
	return &Persistent{Store: store, TTL: ttlOrDefault(ttl), Clock: clock}
}

// Get returns the fresh snapshot for key.
func (p *Persistent) Get(ctx context.Context, key Key) (*core.PerformanceMetrics, bool) {
	if p == nil || p.Store == nil {
		return nil, false
	}
	key = key.Normalize()
	metrics, createdAt, err := p.Store.GetCachedMetrics(ctx, key.Target, key.Variant)
	if err != nil {
		p.fail("get", key, err)
		return nil, false
	}
	if metrics == nil || !valid(createdAt, clockOrDefault(p.Clock)(), ttlOrDefault(p.TTL)) {
		return nil, false
	}
	return metrics, true
}

// Put stores metrics under key.
func (p *Persistent) Put(ctx context.Context, key Key, metrics *core.PerformanceMetrics) {
	if p == nil || p.Store == nil || metrics == nil || ttlOrDefault(p.TTL) <= 0 {
		return
	}
	key = key.Normalize()
	if err := p.Store.SetCachedMetrics(ctx, key.Target, key.Variant, metrics, clockOrDefault(p.Clock)()); err != nil {
		p.fail("put", key, err)
	}
}

func (p *Persistent) fail(op string, key Key, err error) {
	if p.OnError != nil {
		p.OnError(op, key, err)
	}
}
