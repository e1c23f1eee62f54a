package core

import "time"

// EventKind names a decision point in the performance pipeline.
type EventKind string

const (
	EventCacheHit          EventKind = "cache_hit"
	EventCacheMiss         EventKind = "cache_miss"
	EventAdmitted          EventKind = "admitted"
	EventDenied            EventKind = "denied"
	EventUpstream          EventKind = "upstream"
	EventBackoff           EventKind = "backoff"
	EventFallback          EventKind = "fallback"
	EventCredentialMissing EventKind = "credential_missing"
	EventPersistFailed     EventKind = "persist_failed"
)

// Event is emitted by the engine instead of narrating to stdout.
type Event struct {
	Kind         EventKind
	Target       string
	Variant      Variant
	Reason       string
	StatusCode   int
	Wait         time.Duration
	Duration     time.Duration
	RequestsUsed int
	Err          error
}

// Observer receives pipeline events. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) {
	f(e)
}

// MultiObserver fans events out to each non-nil observer.
type MultiObserver []Observer

// Observe forwards e to every observer.
func (m MultiObserver) Observe(e Event) {
	for _, o := range m {
		if o != nil {
			o.Observe(e)
		}
	}
}

// NopObserver discards events.
type NopObserver struct{}

// Observe does nothing.
func (NopObserver) Observe(Event) {}
