package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pagelens/pagelens/internal/core"
)

// GetCachedMetrics returns the snapshot stored for target and variant along
// with its creation time. Freshness is decided by the caller; a missing row
// returns nil metrics and no error.
func (s *Store) GetCachedMetrics(ctx context.Context, target string, variant core.Variant) (*core.PerformanceMetrics, time.Time, error) {
	if s == nil || s.DB == nil {
		return nil, time.Time{}, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	target = strings.TrimSpace(target)
	if target == "" {
		return nil, time.Time{}, errors.New("cache target is required")
	}

	var (
		payload   string
		createdAt int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT payload, created_at
		FROM metrics_cache
		WHERE target = ? AND variant = ?
	`, target, string(variant))

	if err := row.Scan(&payload, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, fmt.Errorf("fetch cached metrics: %w", err)
	}

	var metrics core.PerformanceMetrics
	if err := json.Unmarshal([]byte(payload), &metrics); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode cached metrics: %w", err)
	}

	return &metrics, time.UnixMilli(createdAt).UTC(), nil
}

// SetCachedMetrics replaces the snapshot for target and variant.
func (s *Store) SetCachedMetrics(ctx context.Context, target string, variant core.Variant, metrics *core.PerformanceMetrics, createdAt time.Time) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if metrics == nil {
		return nil
	}

	target = strings.TrimSpace(target)
	if target == "" {
		return errors.New("cache target is required")
	}

	payload, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("encode cached metrics: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO metrics_cache (target, variant, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(target, variant) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at
	`, target, string(variant), string(payload), createdAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("store cached metrics: %w", err)
	}

	return nil
}

// PurgeCachedMetrics deletes cached snapshots. An empty target removes every
// row; olderThan > 0 limits deletion to entries at least that old.
func (s *Store) PurgeCachedMetrics(ctx context.Context, target string, olderThan time.Duration) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var (
		clauses []string
		args    []any
	)
	if target = strings.TrimSpace(target); target != "" {
		clauses = append(clauses, "target = ?")
		args = append(args, target)
	}
	if olderThan > 0 {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, time.Now().Add(-olderThan).UTC().UnixMilli())
	}

	query := "DELETE FROM metrics_cache"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	result, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge cached metrics: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge cached metrics: %w", err)
	}
	return affected, nil
}
