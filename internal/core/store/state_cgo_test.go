//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/core"
	"github.com/stretchr/testify/require"
)

func openMigratedStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	store, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := openMigratedStore(t)
	require.NoError(t, store.Migrate(context.Background()))
}

func TestCachedMetricsRoundTrip(t *testing.T) {
	store := openMigratedStore(t)
	ctx := context.Background()
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	metrics, _, err := store.GetCachedMetrics(ctx, "https://example.test", core.VariantMobile)
	require.NoError(t, err)
	require.Nil(t, metrics)

	require.NoError(t, store.SetCachedMetrics(ctx, "https://example.test", core.VariantMobile, &core.PerformanceMetrics{
		Variant:          core.VariantMobile,
		Source:           core.SourceAPI,
		LCP:              core.Float(2100),
		PerformanceScore: core.Int(81),
	}, createdAt))

	metrics, storedAt, err := store.GetCachedMetrics(ctx, " https://example.test ", core.VariantMobile)
	require.NoError(t, err)
	require.NotNil(t, metrics)
	require.Equal(t, 81, *metrics.PerformanceScore)
	require.Equal(t, 2100.0, *metrics.LCP)
	require.Nil(t, metrics.INP)
	require.Equal(t, createdAt, storedAt)

	other, _, err := store.GetCachedMetrics(ctx, "https://example.test", core.VariantDesktop)
	require.NoError(t, err)
	require.Nil(t, other)

	purged, err := store.PurgeCachedMetrics(ctx, "", 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)
}

func TestQuotaUsageNeverLowers(t *testing.T) {
	store := openMigratedStore(t)
	ctx := context.Background()

	count, err := store.GetQuotaUsage(ctx, "2025-03-01")
	require.NoError(t, err)
	require.Zero(t, count)

	require.NoError(t, store.SetQuotaUsage(ctx, "2025-03-01", 7))
	require.NoError(t, store.SetQuotaUsage(ctx, "2025-03-01", 3))
	require.NoError(t, store.SetQuotaUsage(ctx, "2025-03-02", 1))

	count, err = store.GetQuotaUsage(ctx, "2025-03-01")
	require.NoError(t, err)
	require.Equal(t, 7, count)

	usage, err := store.ListQuotaUsage(ctx, QuotaQuery{All: true})
	require.NoError(t, err)
	require.Len(t, usage, 2)
	require.Equal(t, "2025-03-01", usage[0].Day)

	n, err := store.CountQuotaUsage(ctx, QuotaQuery{Prefix: "2025-03"})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	removed, err := store.ResetQuotaUsage(ctx, QuotaQuery{Day: "2025-03-01"})
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	count, err = store.GetQuotaUsage(ctx, "2025-03-01")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestBackoffStateRoundTrip(t *testing.T) {
	store := openMigratedStore(t)
	ctx := context.Background()
	until := time.Date(2025, 3, 1, 12, 0, 4, 500_000_000, time.UTC)

	state, err := store.GetBackoff(ctx, "pagespeed")
	require.NoError(t, err)
	require.Nil(t, state)

	require.NoError(t, store.SetBackoff(ctx, "pagespeed", core.BackoffState{
		ConsecutiveFailures: 2,
		BackoffUntil:        &until,
		Last429At:           &until,
	}))

	state, err = store.GetBackoff(ctx, "pagespeed")
	require.NoError(t, err)
	require.Equal(t, 2, state.ConsecutiveFailures)
	require.Equal(t, until, *state.BackoffUntil)

	require.NoError(t, store.SetBackoff(ctx, "pagespeed", core.BackoffState{}))
	state, err = store.GetBackoff(ctx, "pagespeed")
	require.NoError(t, err)
	require.Zero(t, state.ConsecutiveFailures)
	require.Nil(t, state.BackoffUntil)

	entries, err := store.ListBackoff(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	removed, err := store.ResetBackoff(ctx, "")
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}
