// Package cache holds TTL caches for upstream performance metrics.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pagelens/pagelens/internal/core"
)

// DefaultTTL is how long an upstream snapshot stays valid.
const DefaultTTL = time.Hour

// ErrCacheMiss is returned by byte-level backends for absent keys.
var ErrCacheMiss = errors.New("cache miss")

// Key identifies one cached snapshot.
type Key struct {
	Target  string
	Variant core.Variant
}

// Normalize trims the target so equivalent lookups share an entry.
func (k Key) Normalize() Key {
	return Key{Target: strings.TrimSpace(k.Target), Variant: k.Variant}
}

// String returns the key as variant:target.
func (k Key) String() string {
	k = k.Normalize()
	return string(k.Variant) + ":" + k.Target
}

// Cache is implemented by every backend in this package.
type Cache interface {
	Get(ctx context.Context, key Key) (*core.PerformanceMetrics, bool)
	Put(ctx context.Context, key Key, metrics *core.PerformanceMetrics)
}

// ErrorHandler receives backend failures that Get and Put swallow.
type ErrorHandler func(op string, key Key, err error)

// valid reports whether an entry created at createdAt is still fresh at now.
// The bound is strict: an entry exactly ttl old is stale.
func valid(createdAt, now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(createdAt) < ttl
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return DefaultTTL
	}
	return ttl
}

func clockOrDefault(clock func() time.Time) func() time.Time {
	if clock == nil {
		return time.Now
	}
	return clock
}
