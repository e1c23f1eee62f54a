package cmd

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/core"
	"github.com/pagelens/pagelens/internal/core/cache"
	"github.com/pagelens/pagelens/internal/core/checker"
	"github.com/pagelens/pagelens/internal/core/engine"
	"github.com/pagelens/pagelens/internal/core/store"
	"github.com/pagelens/pagelens/internal/metrics"
	"github.com/pagelens/pagelens/internal/observability"
)

type pipelineOptions struct {
	noCache bool
	logger  observability.Logger
	metrics *metrics.Collector
}

// pipeline owns the manager and every resource behind it. One pipeline is
// built per process and shared by all analyses.
type pipeline struct {
	manager *engine.Manager
	limiter *engine.RateLimiter
	store   *store.Store
	redis   *cache.RedisKV
	metrics *metrics.Collector
}

func buildPipeline(ctx context.Context, cfg *config.Config, opts pipelineOptions) (*pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config not loaded")
	}
	logger := opts.logger
	if logger == nil && observability.CLILogger != nil {
		logger = observability.CLILogger
	}
	if logger == nil {
		logger = discardLogger{}
	}

	observers := core.MultiObserver{observability.NewLogObserver(logger)}
	if opts.metrics != nil {
		observers = append(observers, opts.metrics)
	}

	p := &pipeline{metrics: opts.metrics}

	// Limiter state survives restarts only with the store; without it the
	// process keeps counting in memory.
	db, err := openStore(ctx, cfg.Store)
	if err != nil {
		logger.Warn("Store unavailable, quota and backoff will not persist", zap.Error(err))
	} else {
		p.store = db
	}

	location, err := cfg.PageSpeed.Location()
	if err != nil {
		p.Close()
		return nil, err
	}

	limiterCfg := engine.RateLimiterConfig{
		Endpoint:          engine.DefaultEndpoint,
		RequestsPerSecond: cfg.PageSpeed.RequestsPerSecond,
		DailyQuota:        cfg.PageSpeed.DailyQuota,
		MaxAcquireWait:    cfg.PageSpeed.MaxAcquireWait,
		Location:          location,
		Observer:          observers,
	}
	if p.store != nil {
		limiterCfg.Store = p.store
	}
	p.limiter = engine.NewRateLimiter(limiterCfg)
	if err := p.limiter.Restore(ctx); err != nil {
		logger.Warn("Failed to restore limiter state", zap.Error(err))
	}

	var responseCache engine.ResponseCache
	if !opts.noCache {
		responseCache = p.buildCache(ctx, cfg, logger)
	}

	httpClient := &http.Client{}
	p.manager = &engine.Manager{
		Upstream: &checker.PageSpeedClient{
			BaseURL: cfg.PageSpeed.BaseURL,
			APIKey:  cfg.PageSpeed.APIKey,
			Client:  httpClient,
			Timeout: cfg.PageSpeed.RequestTimeout,
		},
		Estimator: &checker.FallbackEstimator{
			Fetcher: &checker.HTTPFetcher{
				Client:       httpClient,
				Timeout:      cfg.Fallback.Timeout,
				MaxBodyBytes: cfg.Fallback.MaxBodyBytes,
			},
		},
		Limiter:        p.limiter,
		Cache:          responseCache,
		AcquireTimeout: cfg.PageSpeed.AcquireTimeout,
		Observer:       observers,
	}

	return p, nil
}

// buildCache puts the in-process tier in front of the configured backend.
// An unreachable backend degrades to memory only.
func (p *pipeline) buildCache(ctx context.Context, cfg *config.Config, logger observability.Logger) engine.ResponseCache {
	tiered := &cache.Tiered{Primary: cache.NewMemory(cfg.Cache.TTL, nil)}
	onError := func(op string, key cache.Key, err error) {
		logger.Warn("Cache backend error",
			zap.String("op", op),
			zap.String("key", key.String()),
			zap.Error(err))
	}

	switch cfg.Cache.Backend {
	case config.CacheBackendStore:
		if p.store == nil {
			logger.Warn("Store cache backend requested but store is unavailable")
			break
		}
		persistent := cache.NewPersistent(p.store, cfg.Cache.TTL, nil)
		persistent.OnError = onError
		tiered.Secondary = persistent
	case config.CacheBackendRedis:
		kv, err := cache.NewRedisKV(ctx, cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("Redis unavailable, using in-process cache only", zap.Error(err))
			break
		}
		p.redis = kv
		shared := cache.NewRedis(kv, cfg.Cache.TTL, nil)
		shared.OnError = onError
		tiered.Secondary = shared
	}

	return tiered
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...zap.Field) {}
func (discardLogger) Info(string, ...zap.Field)  {}
func (discardLogger) Warn(string, ...zap.Field)  {}

// Close releases the store and Redis connections.
func (p *pipeline) Close() {
	if p == nil {
		return
	}
	if p.redis != nil {
		_ = p.redis.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
