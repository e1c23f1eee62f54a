package engine

import (
	"context"
	"sync"
	"time"

	"github.com/pagelens/pagelens/internal/core"
)

// Denial reasons reported by CanProceed.
const (
	ReasonQuotaExceeded = "daily_quota_exceeded"
	ReasonBackoff       = "backoff_active"
	ReasonSpacing       = "min_interval"
)

const (
	// DefaultRequestsPerSecond matches the upstream per-user burst allowance.
	DefaultRequestsPerSecond = 4.5
	// DefaultDailyQuota leaves headroom under the upstream 25k/day project quota.
	DefaultDailyQuota     = 24000
	DefaultMaxAcquireWait = time.Minute
	DefaultEndpoint       = "pagespeed"

	maxPollInterval = time.Second
)

// StateStore persists limiter state across processes.
type StateStore interface {
	GetQuotaUsage(ctx context.Context, day string) (int, error)
	SetQuotaUsage(ctx context.Context, day string, count int) error
	GetBackoff(ctx context.Context, endpoint string) (*core.BackoffState, error)
	SetBackoff(ctx context.Context, endpoint string, state core.BackoffState) error
}

// RateLimiterConfig is fixed at construction.
type RateLimiterConfig struct {
	Endpoint          string
	RequestsPerSecond float64
	DailyQuota        int
	MaxAcquireWait    time.Duration
	Location          *time.Location
	Clock             func() time.Time
	Sleep             func(ctx context.Context, d time.Duration) error
	Store             StateStore
	Observer          core.Observer
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool
	Reason  string
	Wait    time.Duration
}

// RateLimiter admits upstream requests against a daily quota, a failure
// backoff and a minimum spacing between grants. All state changes happen
// under one mutex so grants are totally ordered.
type RateLimiter struct {
	endpoint       string
	interval       time.Duration
	maxAcquireWait time.Duration
	clock          func() time.Time
	sleep          func(ctx context.Context, d time.Duration) error
	store          StateStore
	observer       core.Observer

	mu        sync.Mutex
	quota     *QuotaTracker
	backoff   BackoffController
	lastGrant time.Time
	rps       float64
}

// NewRateLimiter builds a limiter from cfg. Zero Endpoint, MaxAcquireWait,
// Location, Clock, Sleep and Observer take defaults. Zero RequestsPerSecond
// disables spacing, and zero DailyQuota is a valid ceiling that always denies.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	maxWait := cfg.MaxAcquireWait
	if maxWait <= 0 {
		maxWait = DefaultMaxAcquireWait
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	observer := cfg.Observer
	if observer == nil {
		observer = core.NopObserver{}
	}

	var interval time.Duration
	if cfg.RequestsPerSecond > 0 {
		interval = time.Duration(float64(time.Second) / cfg.RequestsPerSecond)
	}

	return &RateLimiter{
		endpoint:       endpoint,
		interval:       interval,
		maxAcquireWait: maxWait,
		clock:          clock,
		sleep:          sleep,
		store:          cfg.Store,
		observer:       observer,
		quota:          NewQuotaTracker(cfg.DailyQuota, cfg.Location),
		rps:            cfg.RequestsPerSecond,
	}
}

// Endpoint returns the name the limiter persists its state under.
func (r *RateLimiter) Endpoint() string {
	return r.endpoint
}

// Interval returns the minimum spacing between grants.
func (r *RateLimiter) Interval() time.Duration {
	return r.interval
}

// CanProceed reports whether a request could be granted now without
// recording a grant.
func (r *RateLimiter) CanProceed() Decision {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.decide(r.clock())
}

// Acquire waits up to timeout for admission. It returns false as soon as the
// required wait exceeds the remaining budget, when ctx is done, or when the
// timeout (capped at MaxAcquireWait) runs out.
func (r *RateLimiter) Acquire(ctx context.Context, timeout time.Duration) bool {
	return r.AcquireDecision(ctx, timeout).Allowed
}

// AcquireDecision is Acquire returning the decision that ended the wait. A
// denial carries the reason in force when the limiter gave up.
func (r *RateLimiter) AcquireDecision(ctx context.Context, timeout time.Duration) Decision {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > r.maxAcquireWait {
		timeout = r.maxAcquireWait
	}
	if timeout < 0 {
		timeout = 0
	}

	deadline := r.clock().Add(timeout)
	var slept time.Duration
	for {
		r.mu.Lock()
		now := r.clock()
		decision := r.decide(now)
		var (
			day   string
			count int
		)
		if decision.Allowed {
			r.lastGrant = now
			count = r.quota.Increment(now)
			day = r.quota.Day(now)
		}
		r.mu.Unlock()

		if decision.Allowed {
			r.observer.Observe(core.Event{Kind: core.EventAdmitted, RequestsUsed: count})
			r.persistQuota(ctx, day, count)
			return decision
		}

		// Bound by time actually slept too, so a stalled clock cannot spin.
		remaining := min(deadline.Sub(now), timeout-slept)
		if decision.Wait > remaining {
			r.observer.Observe(core.Event{Kind: core.EventDenied, Reason: decision.Reason, Wait: decision.Wait, Err: decision.Err()})
			return decision
		}

		step := min(decision.Wait, maxPollInterval)
		if step <= 0 {
			step = time.Millisecond
		}
		slept += step
		if err := r.sleep(ctx, step); err != nil {
			r.observer.Observe(core.Event{Kind: core.EventDenied, Reason: decision.Reason, Wait: decision.Wait, Err: err})
			return decision
		}
	}
}

// RecordSuccess clears the failure backoff.
func (r *RateLimiter) RecordSuccess() {
	r.mu.Lock()
	hadFailures := r.backoff.ConsecutiveFailures() > 0
	r.backoff.RecordSuccess()
	state := r.backoff.State()
	r.mu.Unlock()

	if hadFailures {
		r.persistBackoff(context.Background(), state)
	}
}

// RecordFailure applies the backoff policy for an upstream failure.
func (r *RateLimiter) RecordFailure(statusCode int) {
	r.RecordFailureRetryAfter(statusCode, 0)
}

// RecordFailureRetryAfter is RecordFailure with the upstream Retry-After hint.
// A 429 hint longer than 2^N seconds replaces that window, still capped at 300s.
func (r *RateLimiter) RecordFailureRetryAfter(statusCode int, retryAfter time.Duration) {
	r.mu.Lock()
	window := r.backoff.RecordFailure(r.clock(), statusCode, retryAfter)
	failures := r.backoff.ConsecutiveFailures()
	state := r.backoff.State()
	r.mu.Unlock()

	r.observer.Observe(core.Event{
		Kind:         core.EventBackoff,
		StatusCode:   statusCode,
		Wait:         window,
		RequestsUsed: failures,
		Err:          core.ClassifyStatus(statusCode),
	})
	r.persistBackoff(context.Background(), state)
}

// Snapshot returns the current quota and backoff state.
func (r *RateLimiter) Snapshot() core.LimiterSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	return core.LimiterSnapshot{
		Endpoint:          r.endpoint,
		Day:               r.quota.Day(now),
		RequestsToday:     r.quota.Count(now),
		DailyQuota:        r.quota.Limit(),
		RequestsPerSecond: r.rps,
		Backoff:           r.backoff.State(),
	}
}

// Usage returns the per-day counts seen by this process.
func (r *RateLimiter) Usage() []core.QuotaUsage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quota.Usage()
}

// Restore seeds today's quota count and the backoff state from the store.
func (r *RateLimiter) Restore(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	day := r.quota.Day(r.clock())
	r.mu.Unlock()

	count, err := r.store.GetQuotaUsage(ctx, day)
	if err != nil {
		return err
	}
	state, err := r.store.GetBackoff(ctx, r.endpoint)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.quota.Restore(day, count)
	if state != nil {
		r.backoff.Restore(*state)
	}
	return nil
}

// Err maps a denial to the failure taxonomy.
func (d Decision) Err() error {
	switch d.Reason {
	case "":
		return nil
	case ReasonQuotaExceeded:
		return core.ErrQuotaExceeded
	default:
		return core.ErrRateLimited
	}
}

func (r *RateLimiter) decide(now time.Time) Decision {
	if r.quota.Exceeded(now) {
		return Decision{Reason: ReasonQuotaExceeded, Wait: r.quota.UntilNextDay(now)}
	}
	if r.backoff.Active(now) {
		return Decision{Reason: ReasonBackoff, Wait: r.backoff.Remaining(now)}
	}
	if !r.lastGrant.IsZero() && r.interval > 0 {
		elapsed := now.Sub(r.lastGrant)
		if elapsed < r.interval {
			return Decision{Reason: ReasonSpacing, Wait: r.interval - elapsed}
		}
	}
	return Decision{Allowed: true}
}

func (r *RateLimiter) persistQuota(ctx context.Context, day string, count int) {
	if r.store == nil || day == "" {
		return
	}
	if err := r.store.SetQuotaUsage(context.WithoutCancel(ctx), day, count); err != nil {
		r.observer.Observe(core.Event{Kind: core.EventPersistFailed, Reason: "quota_usage", Err: err})
	}
}

func (r *RateLimiter) persistBackoff(ctx context.Context, state core.BackoffState) {
	if r.store == nil {
		return
	}
	if err := r.store.SetBackoff(ctx, r.endpoint, state); err != nil {
		r.observer.Observe(core.Event{Kind: core.EventPersistFailed, Reason: "backoff_state", Err: err})
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
