// Package config provides configuration loading for pagelens. Defaults are
// registered on a viper instance, overlaid by the YAML config file and
// PAGELENS_* environment variables, and decoded into a typed Config with
// mapstructure.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is used for XDG paths and the binary name.
	AppName = "pagelens"
	// EnvPrefix is prepended to every environment override.
	EnvPrefix = "PAGELENS"
)

// Environment variables consulted for the API key after PAGELENS_PAGESPEED_API_KEY.
var apiKeyEnvFallbacks = []string{"PAGESPEED_API_KEY", "GOOGLE_API_KEY"}

// SetDefaults registers every configuration key with its default value.
// Keys must be registered for environment overrides to be decoded.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("pagespeed.api_key", "")
	v.SetDefault("pagespeed.base_url", "https://www.googleapis.com/pagespeedonline/v5/runPagespeed")
	v.SetDefault("pagespeed.requests_per_second", 4.5)
	v.SetDefault("pagespeed.daily_quota", 24000)
	v.SetDefault("pagespeed.acquire_timeout", "5s")
	v.SetDefault("pagespeed.request_timeout", "30s")
	v.SetDefault("pagespeed.max_acquire_wait", "60s")
	v.SetDefault("pagespeed.quota_timezone", "UTC")

	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.backend", CacheBackendMemory)

	v.SetDefault("fallback.timeout", "10s")
	v.SetDefault("fallback.max_body_bytes", 5<<20)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.admin_token", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("workers", 4)
}

// BindEnv maps nested keys to PAGELENS_* variables, e.g. pagespeed.api_key
// to PAGELENS_PAGESPEED_API_KEY.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes the settings held by v into a validated Config. A nil v gets
// a fresh instance with defaults and environment bindings only.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
		SetDefaults(v)
		BindEnv(v)
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.PageSpeed.APIKey = strings.TrimSpace(cfg.PageSpeed.APIKey)
	if cfg.PageSpeed.APIKey == "" {
		cfg.PageSpeed.APIKey = apiKeyFromEnv()
	}
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the runtime cannot honor.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	var problems []string
	if c.PageSpeed.RequestsPerSecond < 0 {
		problems = append(problems, "pagespeed.requests_per_second must not be negative")
	}
	if c.PageSpeed.AcquireTimeout < 0 {
		problems = append(problems, "pagespeed.acquire_timeout must not be negative")
	}
	if c.PageSpeed.RequestTimeout < 0 {
		problems = append(problems, "pagespeed.request_timeout must not be negative")
	}
	if c.PageSpeed.MaxAcquireWait < 0 {
		problems = append(problems, "pagespeed.max_acquire_wait must not be negative")
	}
	if _, err := c.PageSpeed.Location(); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.Cache.Backend {
	case "", CacheBackendMemory, CacheBackendStore, CacheBackendRedis:
	default:
		problems = append(problems, fmt.Sprintf("cache.backend %q is not one of memory, store, redis", c.Cache.Backend))
	}
	if c.Cache.Backend == CacheBackendRedis && strings.TrimSpace(c.Redis.Addr) == "" {
		problems = append(problems, "redis.addr is required for the redis cache backend")
	}
	if c.Fallback.Timeout < 0 {
		problems = append(problems, "fallback.timeout must not be negative")
	}
	if c.Workers < 0 {
		problems = append(problems, "workers must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location returns the time zone whose calendar days reset the daily quota.
func (c PageSpeedConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.QuotaTimezone)
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("pagespeed.quota_timezone: %w", err)
	}
	return loc, nil
}

// HasAPIKey reports whether the upstream API is usable.
func (c PageSpeedConfig) HasAPIKey() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

func apiKeyFromEnv() string {
	for _, name := range apiKeyEnvFallbacks {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			return value
		}
	}
	return ""
}

// DefaultConfigDir returns the XDG-compliant config directory for the app.
func DefaultConfigDir() string {
	return gfconfig.GetAppConfigDir(AppName)
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := DefaultConfigDir()
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}
