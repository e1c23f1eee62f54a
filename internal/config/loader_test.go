package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func clearAPIKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PAGELENS_PAGESPEED_API_KEY", "")
	t.Setenv("PAGESPEED_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
}

func TestLoad(t *testing.T) {
	t.Run("LoadDefaults", func(t *testing.T) {
		clearAPIKeyEnv(t)
		t.Setenv("XDG_DATA_HOME", t.TempDir())

		cfg, err := Load(newTestViper())
		require.NoError(t, err)

		assert.Equal(t, "", cfg.PageSpeed.APIKey)
		assert.False(t, cfg.PageSpeed.HasAPIKey())
		assert.Equal(t, "https://www.googleapis.com/pagespeedonline/v5/runPagespeed", cfg.PageSpeed.BaseURL)
		assert.Equal(t, 4.5, cfg.PageSpeed.RequestsPerSecond)
		assert.Equal(t, 24000, cfg.PageSpeed.DailyQuota)
		assert.Equal(t, 5*time.Second, cfg.PageSpeed.AcquireTimeout)
		assert.Equal(t, 30*time.Second, cfg.PageSpeed.RequestTimeout)
		assert.Equal(t, time.Minute, cfg.PageSpeed.MaxAcquireWait)

		assert.Equal(t, time.Hour, cfg.Cache.TTL)
		assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
		assert.Equal(t, 10*time.Second, cfg.Fallback.Timeout)

		assert.Equal(t, "libsql", cfg.Store.Driver)
		assert.Equal(t, "pagelens.db", filepath.Base(cfg.Store.Path))

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 4, cfg.Workers)
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		clearAPIKeyEnv(t)
		t.Setenv("PAGELENS_PAGESPEED_API_KEY", " key-123 ")
		t.Setenv("PAGELENS_PAGESPEED_REQUESTS_PER_SECOND", "2")
		t.Setenv("PAGELENS_PAGESPEED_DAILY_QUOTA", "500")
		t.Setenv("PAGELENS_CACHE_TTL", "15m")
		t.Setenv("PAGELENS_CACHE_BACKEND", "Redis")
		t.Setenv("PAGELENS_REDIS_ADDR", "cache:6380")

		cfg, err := Load(newTestViper())
		require.NoError(t, err)
		assert.Equal(t, "key-123", cfg.PageSpeed.APIKey)
		assert.Equal(t, 2.0, cfg.PageSpeed.RequestsPerSecond)
		assert.Equal(t, 500, cfg.PageSpeed.DailyQuota)
		assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
		assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
		assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	})

	t.Run("APIKeyFallbackEnv", func(t *testing.T) {
		clearAPIKeyEnv(t)
		t.Setenv("GOOGLE_API_KEY", "google-key")

		cfg, err := Load(newTestViper())
		require.NoError(t, err)
		assert.Equal(t, "google-key", cfg.PageSpeed.APIKey)

		t.Setenv("PAGESPEED_API_KEY", "pagespeed-key")
		cfg, err = Load(newTestViper())
		require.NoError(t, err)
		assert.Equal(t, "pagespeed-key", cfg.PageSpeed.APIKey)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		clearAPIKeyEnv(t)
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
pagespeed:
  daily_quota: 0
  acquire_timeout: 2s
cache:
  backend: store
workers: 8
`), 0o600))

		v := newTestViper()
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())

		cfg, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, 0, cfg.PageSpeed.DailyQuota)
		assert.Equal(t, 2*time.Second, cfg.PageSpeed.AcquireTimeout)
		assert.Equal(t, CacheBackendStore, cfg.Cache.Backend)
		assert.Equal(t, 8, cfg.Workers)
	})

	t.Run("NilViperUsesDefaults", func(t *testing.T) {
		clearAPIKeyEnv(t)
		cfg, err := Load(nil)
		require.NoError(t, err)
		assert.Equal(t, 24000, cfg.PageSpeed.DailyQuota)
	})
}

func TestValidate(t *testing.T) {
	clearAPIKeyEnv(t)
	base, err := Load(nil)
	require.NoError(t, err)

	t.Run("NegativeRate", func(t *testing.T) {
		cfg := *base
		cfg.PageSpeed.RequestsPerSecond = -1
		require.ErrorContains(t, cfg.Validate(), "requests_per_second")
	})

	t.Run("UnknownBackend", func(t *testing.T) {
		cfg := *base
		cfg.Cache.Backend = "memcached"
		require.ErrorContains(t, cfg.Validate(), "cache.backend")
	})

	t.Run("RedisNeedsAddr", func(t *testing.T) {
		cfg := *base
		cfg.Cache.Backend = CacheBackendRedis
		cfg.Redis.Addr = ""
		require.ErrorContains(t, cfg.Validate(), "redis.addr")
	})

	t.Run("BadTimezone", func(t *testing.T) {
		cfg := *base
		cfg.PageSpeed.QuotaTimezone = "Mars/Olympus"
		require.ErrorContains(t, cfg.Validate(), "quota_timezone")
	})
}
