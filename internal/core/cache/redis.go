package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pagelens/pagelens/internal/core"
)

// DefaultKeyPrefix namespaces Redis keys.
const DefaultKeyPrefix = "pagelens:perf:"

// KV is the byte-level store behind Redis. Get returns ErrCacheMiss for
// absent keys.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisKV adapts a go-redis client to KV.
type RedisKV struct {
	client *redis.Client
}

// RedisOptions configures NewRedisKV.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisKV connects to Redis and verifies the connection.
func NewRedisKV(ctx context.Context, opts RedisOptions) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisKV{client: client}, nil
}

// Get reads a raw value.
func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// Set writes a raw value with an expiry.
func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *RedisKV) Close() error {
	return r.client.Close()
}

type redisEntry struct {
	Metrics   *core.PerformanceMetrics `json:"metrics"`
	CreatedAt time.Time                `json:"created_at"`
}

// Redis shares cached snapshots between processes. Redis expiry evicts old
// keys; freshness is still checked against created_at so the strict TTL
// bound holds regardless of server clock skew.
type Redis struct {
	KV        KV
	TTL       time.Duration
	KeyPrefix string
	Clock     func() time.Time
	OnError   ErrorHandler
}

// NewRedis wraps kv with the default prefix.
func NewRedis(kv KV, ttl time.Duration, clock func() time.Time) *Redis {
	return &Redis{KV: kv, TTL: ttlOrDefault(ttl), KeyPrefix: DefaultKeyPrefix, Clock: clock}
}

// Get returns the fresh snapshot for key.
func (r *Redis) Get(ctx context.Context, key Key) (*core.PerformanceMetrics, bool) {
	if r == nil || r.KV == nil {
		return nil, false
	}
	data, err := r.KV.Get(ctx, r.redisKey(key))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			r.fail("get", key, err)
		}
		return nil, false
	}

	var entry redisEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		r.fail("decode", key, err)
		return nil, false
	}
	if entry.Metrics == nil || !valid(entry.CreatedAt, clockOrDefault(r.Clock)(), ttlOrDefault(r.TTL)) {
		return nil, false
	}
	return entry.Metrics, true
}

// Put stores metrics under key.
func (r *Redis) Put(ctx context.Context, key Key, metrics *core.PerformanceMetrics) {
	if r == nil || r.KV == nil || metrics == nil {
		return
	}
	ttl := ttlOrDefault(r.TTL)
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(redisEntry{Metrics: metrics, CreatedAt: clockOrDefault(r.Clock)().UTC()})
	if err != nil {
		r.fail("encode", key, err)
		return
	}
	if err := r.KV.Set(ctx, r.redisKey(key), data, ttl); err != nil {
		r.fail("put", key, err)
	}
}

func (r *Redis) redisKey(key Key) string {
	prefix := r.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return prefix + key.String()
}

func (r *Redis) fail(op string, key Key, err error) {
	if r.OnError != nil {
		r.OnError(op, key, err)
	}
}
