package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pagelens/pagelens/internal/core"
)

type memoryEntry struct {
	metrics   *core.PerformanceMetrics
	createdAt time.Time
}

// Memory is a process-local cache. Stale entries stay in the map until the
// next Put for the same key overwrites them.
type Memory struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.RWMutex
	entries map[Key]memoryEntry
}

// NewMemory returns an empty cache. A zero ttl uses DefaultTTL; a negative
// ttl disables caching.
func NewMemory(ttl time.Duration, clock func() time.Time) *Memory {
	return &Memory{
		ttl:     ttlOrDefault(ttl),
		clock:   clockOrDefault(clock),
		entries: make(map[Key]memoryEntry),
	}
}

// TTL returns the entry lifetime.
func (m *Memory) TTL() time.Duration {
	return m.ttl
}

// Get returns a copy of the fresh entry for key.
func (m *Memory) Get(_ context.Context, key Key) (*core.PerformanceMetrics, bool) {
	key = key.Normalize()

	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || !valid(entry.createdAt, m.clock(), m.ttl) {
		return nil, false
	}
	return entry.metrics.Clone(), true
}

// Put replaces the entry for key.
func (m *Memory) Put(_ context.Context, key Key, metrics *core.PerformanceMetrics) {
	m.putAt(key, metrics, m.clock())
}

func (m *Memory) putAt(key Key, metrics *core.PerformanceMetrics, createdAt time.Time) {
	if metrics == nil || m.ttl <= 0 {
		return
	}
	entry := memoryEntry{metrics: metrics.Clone(), createdAt: createdAt}

	m.mu.Lock()
	m.entries[key.Normalize()] = entry
	m.mu.Unlock()
}

// Purge removes every entry and returns how many were held.
func (m *Memory) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	m.entries = make(map[Key]memoryEntry)
	return n
}

// Len returns the number of stored entries, stale ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
