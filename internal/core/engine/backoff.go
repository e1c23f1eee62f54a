package engine

import (
	"net/http"
	"time"

	"github.com/pagelens/pagelens/internal/core"
)

const (
	maxThrottleBackoff = 300 * time.Second
	maxFailureBackoff  = 60 * time.Second
	failureBackoffStep = 5 * time.Second
)

// BackoffController tracks consecutive failures and the suppression window.
// It is not safe for concurrent use; RateLimiter guards it.
type BackoffController struct {
	consecutiveFailures int
	backoffUntil        time.Time
	last429At           time.Time
}

// Active reports whether new requests are suppressed at now.
func (b *BackoffController) Active(now time.Time) bool {
	return now.Before(b.backoffUntil)
}

// Remaining returns how long the backoff window stays open.
func (b *BackoffController) Remaining(now time.Time) time.Duration {
	if !b.Active(now) {
		return 0
	}
	return b.backoffUntil.Sub(now)
}

// ConsecutiveFailures returns the failure count since the last success.
func (b *BackoffController) ConsecutiveFailures() int {
	return b.consecutiveFailures
}

// RecordFailure opens a backoff window for the Nth consecutive failure:
// min(300s, 2^N s) for 429, min(60s, N*5s) otherwise. A larger Retry-After
// hint extends the window up to the 429 cap.
func (b *BackoffController) RecordFailure(now time.Time, statusCode int, retryAfter time.Duration) time.Duration {
	b.consecutiveFailures++

	var window time.Duration
	if statusCode == http.StatusTooManyRequests {
		window = throttleWindow(b.consecutiveFailures)
		b.last429At = now
		if retryAfter > window {
			window = min(retryAfter, maxThrottleBackoff)
		}
	} else {
		window = min(time.Duration(b.consecutiveFailures)*failureBackoffStep, maxFailureBackoff)
	}

	b.backoffUntil = now.Add(window)
	return window
}

// RecordSuccess clears the failure count and any backoff.
func (b *BackoffController) RecordSuccess() {
	b.consecutiveFailures = 0
	b.backoffUntil = time.Time{}
}

// State returns a persistable copy of the controller state.
func (b *BackoffController) State() core.BackoffState {
	state := core.BackoffState{ConsecutiveFailures: b.consecutiveFailures}
	if !b.backoffUntil.IsZero() {
		until := b.backoffUntil
		state.BackoffUntil = &until
	}
	if !b.last429At.IsZero() {
		last := b.last429At
		state.Last429At = &last
	}
	return state
}

// Restore loads previously persisted state.
func (b *BackoffController) Restore(state core.BackoffState) {
	if state.ConsecutiveFailures > 0 {
		b.consecutiveFailures = state.ConsecutiveFailures
	}
	if state.BackoffUntil != nil && state.BackoffUntil.After(b.backoffUntil) {
		b.backoffUntil = *state.BackoffUntil
	}
	if state.Last429At != nil {
		b.last429At = *state.Last429At
	}
}

func throttleWindow(failures int) time.Duration {
	// 2^9 already exceeds the cap.
	if failures >= 9 {
		return maxThrottleBackoff
	}
	return min(time.Duration(1<<failures)*time.Second, maxThrottleBackoff)
}
