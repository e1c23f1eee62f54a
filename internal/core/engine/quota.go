package engine

import (
	"sort"
	"time"

	"github.com/pagelens/pagelens/internal/core"
)

const dayLayout = "2006-01-02"

// QuotaTracker counts requests per calendar day against a daily ceiling.
// It is not safe for concurrent use; RateLimiter guards it.
type QuotaTracker struct {
	limit    int
	location *time.Location
	counts   map[string]int
	updated  map[string]time.Time
}

// NewQuotaTracker returns a tracker with the given daily ceiling.
// A ceiling of 0 always denies; a negative ceiling is unlimited.
func NewQuotaTracker(limit int, location *time.Location) *QuotaTracker {
	if location == nil {
		location = time.UTC
	}
	return &QuotaTracker{
		limit:    limit,
		location: location,
		counts:   make(map[string]int),
		updated:  make(map[string]time.Time),
	}
}

// Limit returns the configured daily ceiling.
func (q *QuotaTracker) Limit() int {
	return q.limit
}

// Day returns the calendar day key for now.
func (q *QuotaTracker) Day(now time.Time) string {
	return now.In(q.location).Format(dayLayout)
}

// Count returns the request count recorded for now's day.
func (q *QuotaTracker) Count(now time.Time) int {
	return q.counts[q.Day(now)]
}

// Exceeded reports whether today's count has reached the ceiling.
func (q *QuotaTracker) Exceeded(now time.Time) bool {
	if q.limit < 0 {
		return false
	}
	return q.Count(now) >= q.limit
}

// Increment records one request for now's day and returns the new count.
func (q *QuotaTracker) Increment(now time.Time) int {
	day := q.Day(now)
	q.counts[day]++
	q.updated[day] = now
	return q.counts[day]
}

// Restore seeds a day's count from storage. Counts never go down.
func (q *QuotaTracker) Restore(day string, count int) {
	if count > q.counts[day] {
		q.counts[day] = count
	}
}

// UntilNextDay returns the time left before the next calendar day starts.
func (q *QuotaTracker) UntilNextDay(now time.Time) time.Duration {
	local := now.In(q.location)
	next := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, q.location)
	return next.Sub(local)
}

// Usage returns every recorded day, oldest first.
func (q *QuotaTracker) Usage() []core.QuotaUsage {
	days := make([]string, 0, len(q.counts))
	for day := range q.counts {
		days = append(days, day)
	}
	sort.Strings(days)

	usage := make([]core.QuotaUsage, 0, len(days))
	for _, day := range days {
		usage = append(usage, core.QuotaUsage{
			Day:          day,
			RequestCount: q.counts[day],
			UpdatedAt:    q.updated[day],
		})
	}
	return usage
}
