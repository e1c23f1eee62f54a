package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pagelens/pagelens/internal/core"
)

// GetQuotaUsage returns the stored request count for day (YYYY-MM-DD).
func (s *Store) GetQuotaUsage(ctx context.Context, day string) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	day = strings.TrimSpace(day)
	if day == "" {
		return 0, errors.New("quota day is required")
	}

	var count int
	row := s.DB.QueryRowContext(ctx, `
		SELECT request_count
		FROM quota_usage
		WHERE day = ?
	`, day)
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("fetch quota usage: %w", err)
	}

	return count, nil
}

// SetQuotaUsage records count for day. The stored count never decreases, so
// concurrent processes racing on the same day keep the highest value.
func (s *Store) SetQuotaUsage(ctx context.Context, day string, count int) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	day = strings.TrimSpace(day)
	if day == "" {
		return errors.New("quota day is required")
	}
	if count < 0 {
		return errors.New("quota count must not be negative")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO quota_usage (day, request_count, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			request_count = MAX(quota_usage.request_count, excluded.request_count),
			updated_at = excluded.updated_at
	`, day, count, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("store quota usage: %w", err)
	}

	return nil
}

// GetBackoff returns stored backoff state for an endpoint.
func (s *Store) GetBackoff(ctx context.Context, endpoint string) (*core.BackoffState, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	var (
		failures     int
		backoffUntil sql.NullInt64
		last429At    sql.NullInt64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT consecutive_failures, backoff_until, last_429_at
		FROM backoff_state
		WHERE endpoint = ?
	`, endpoint)

	if err := row.Scan(&failures, &backoffUntil, &last429At); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch backoff state: %w", err)
	}

	state := &core.BackoffState{ConsecutiveFailures: failures}
	if backoffUntil.Valid {
		value := time.UnixMilli(backoffUntil.Int64).UTC()
		state.BackoffUntil = &value
	}
	if last429At.Valid {
		value := time.UnixMilli(last429At.Int64).UTC()
		state.Last429At = &value
	}

	return state, nil
}

// SetBackoff persists backoff state for an endpoint.
func (s *Store) SetBackoff(ctx context.Context, endpoint string, state core.BackoffState) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return errors.New("endpoint is required")
	}

	var backoffUntil sql.NullInt64
	if state.BackoffUntil != nil {
		backoffUntil = sql.NullInt64{Int64: state.BackoffUntil.UTC().UnixMilli(), Valid: true}
	}

	var last429At sql.NullInt64
	if state.Last429At != nil {
		last429At = sql.NullInt64{Int64: state.Last429At.UTC().UnixMilli(), Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO backoff_state (endpoint, consecutive_failures, backoff_until, last_429_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
			consecutive_failures = excluded.consecutive_failures,
			backoff_until = excluded.backoff_until,
			last_429_at = excluded.last_429_at,
			updated_at = excluded.updated_at
	`, endpoint, state.ConsecutiveFailures, backoffUntil, last429At, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("store backoff state: %w", err)
	}

	return nil
}
