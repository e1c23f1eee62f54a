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

type BackoffEntry struct {
	Endpoint  string
	State     core.BackoffState
	UpdatedAt time.Time
}

type QuotaQuery struct {
	All    bool
	Day    string
	Prefix string
}

func (q QuotaQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Day) != "" {
		return nil
	}
	if strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --day, or --prefix")
}

func (q QuotaQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	if day := strings.TrimSpace(q.Day); day != "" {
		return "WHERE day = ?", []any{day}, nil
	}
	prefix := strings.TrimSpace(q.Prefix)
	if prefix == "" {
		return "", nil, errors.New("prefix is required")
	}
	return "WHERE day LIKE ?", []any{prefix + "%"}, nil
}

// ListQuotaUsage returns stored per-day counts, oldest first.
func (s *Store) ListQuotaUsage(ctx context.Context, q QuotaQuery) ([]core.QuotaUsage, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT day, request_count, updated_at
		FROM quota_usage
		%s
		ORDER BY day
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list quota usage: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	usage := []core.QuotaUsage{}
	for rows.Next() {
		var (
			day       string
			count     int
			updatedAt int64
		)
		if err := rows.Scan(&day, &count, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan quota usage: %w", err)
		}
		usage = append(usage, core.QuotaUsage{
			Day:          day,
			RequestCount: count,
			UpdatedAt:    time.Unix(updatedAt, 0).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list quota usage: %w", err)
	}

	return usage, nil
}

func (s *Store) CountQuotaUsage(ctx context.Context, q QuotaQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM quota_usage
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count quota usage: %w", err)
	}
	return count, nil
}

func (s *Store) ResetQuotaUsage(ctx context.Context, q QuotaQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM quota_usage
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset quota usage: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset quota usage: %w", err)
	}
	return affected, nil
}

// ListBackoff returns stored backoff state for every endpoint.
func (s *Store) ListBackoff(ctx context.Context) ([]BackoffEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT endpoint, consecutive_failures, backoff_until, last_429_at, updated_at
		FROM backoff_state
		ORDER BY endpoint
	`)
	if err != nil {
		return nil, fmt.Errorf("list backoff state: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []BackoffEntry{}
	for rows.Next() {
		var (
			endpoint     string
			failures     int
			backoffUntil sql.NullInt64
			last429At    sql.NullInt64
			updatedAt    int64
		)
		if err := rows.Scan(&endpoint, &failures, &backoffUntil, &last429At, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan backoff state: %w", err)
		}

		state := core.BackoffState{ConsecutiveFailures: failures}
		if backoffUntil.Valid {
			value := time.UnixMilli(backoffUntil.Int64).UTC()
			state.BackoffUntil = &value
		}
		if last429At.Valid {
			value := time.UnixMilli(last429At.Int64).UTC()
			state.Last429At = &value
		}

		entries = append(entries, BackoffEntry{Endpoint: endpoint, State: state, UpdatedAt: time.Unix(updatedAt, 0).UTC()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list backoff state: %w", err)
	}

	return entries, nil
}

// ResetBackoff clears backoff for endpoint, or for every endpoint when it is empty.
func (s *Store) ResetBackoff(ctx context.Context, endpoint string) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	query := "DELETE FROM backoff_state"
	var args []any
	if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
		query += " WHERE endpoint = ?"
		args = append(args, endpoint)
	}

	result, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset backoff state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset backoff state: %w", err)
	}
	return affected, nil
}
