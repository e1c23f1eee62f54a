package config

import "time"

// Config represents the complete application configuration. Values are
// layered as defaults, then the YAML config file, then PAGELENS_* environment
// variables, then command-line flags. Configuration is read once; there is no
// hot reload.
type Config struct {
	PageSpeed PageSpeedConfig `mapstructure:"pagespeed"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Fallback  FallbackConfig  `mapstructure:"fallback"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Store     StoreConfig     `mapstructure:"store"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Workers   int             `mapstructure:"workers"`
}

// PageSpeedConfig configures the upstream API and its rate limiter.
type PageSpeedConfig struct {
	// APIKey enables the upstream API. Without it every request uses the
	// fallback estimator.
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	DailyQuota        int           `mapstructure:"daily_quota"`
	AcquireTimeout    time.Duration `mapstructure:"acquire_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	MaxAcquireWait    time.Duration `mapstructure:"max_acquire_wait"`
	// QuotaTimezone names the location whose calendar days reset the quota.
	QuotaTimezone string `mapstructure:"quota_timezone"`
}

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendStore  = "store"
	CacheBackendRedis  = "redis"
)

// CacheConfig contains response cache configuration.
type CacheConfig struct {
	TTL     time.Duration `mapstructure:"ttl"`
	Backend string        `mapstructure:"backend"`
}

// FallbackConfig controls the plain page fetch behind estimates.
type FallbackConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// RedisConfig is used when cache.backend is redis.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// AdminToken enables POST /admin/signal when set.
	AdminToken string `mapstructure:"admin_token"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether /metrics is exposed
	Enabled bool `mapstructure:"enabled"`
}
