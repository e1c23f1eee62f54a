package store

import (
	"context"
	"testing"

	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/core"
	"github.com/pagelens/pagelens/internal/core/cache"
	"github.com/pagelens/pagelens/internal/core/engine"
	"github.com/stretchr/testify/require"
)

var (
	_ engine.StateStore  = (*Store)(nil)
	_ cache.MetricsStore = (*Store)(nil)
)

func TestBuildLibsqlDSN(t *testing.T) {
	t.Run("URLUsesRawValue", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://example.turso.io",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=token123", dsn)
	})

	t.Run("URLWithExistingQuery", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://example.turso.io?foo=bar",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=token123&foo=bar", dsn)
	})

	t.Run("PathWithFilePrefix", func(t *testing.T) {
		cfg := config.StoreConfig{Path: "file:./pagelens.db"}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "file:./pagelens.db", dsn)
	})

	t.Run("PathMissing", func(t *testing.T) {
		cfg := config.StoreConfig{}

		_, err := buildLibsqlDSN(cfg)
		require.Error(t, err)
	})

	t.Run("MemoryPath", func(t *testing.T) {
		cfg := config.StoreConfig{Path: ":memory:"}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, ":memory:", dsn)
	})
}

func TestQuotaQueryWhereClause(t *testing.T) {
	_, _, err := QuotaQuery{}.whereClause()
	require.Error(t, err)

	where, args, err := QuotaQuery{All: true}.whereClause()
	require.NoError(t, err)
	require.Empty(t, where)
	require.Empty(t, args)

	where, args, err = QuotaQuery{Day: " 2025-03-01 "}.whereClause()
	require.NoError(t, err)
	require.Equal(t, "WHERE day = ?", where)
	require.Equal(t, []any{"2025-03-01"}, args)

	where, args, err = QuotaQuery{Prefix: "2025-03"}.whereClause()
	require.NoError(t, err)
	require.Equal(t, "WHERE day LIKE ?", where)
	require.Equal(t, []any{"2025-03%"}, args)
}

func TestNilStoreGuards(t *testing.T) {
	var s *Store
	_, err := s.GetQuotaUsage(context.Background(), "2025-03-01")
	require.Error(t, err)
	require.Error(t, s.SetBackoff(context.Background(), "pagespeed", core.BackoffState{}))
	require.NoError(t, s.Close())
	require.Empty(t, s.Driver())
}
