package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisPrefix namespaces every key written by RedisProvider
	DefaultRedisPrefix = "cms:cache:"

	// redisExpiryGrace keeps keys in Redis slightly past their TTL so the
	// inclusive liveness boundary is decided by IsLive, not by Redis.
	redisExpiryGrace = time.Second

	flushScanCount = 500
)

// RedisProvider stores entries in Redis as JSON. Capacity is governed by the
// server's maxmemory policy.
type RedisProvider[T any] struct {
	redis  *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisProvider creates a provider using redisClient. An empty prefix
// selects DefaultRedisPrefix.
func NewRedisProvider[T any](redisClient *redis.Client, prefix string) *RedisProvider[T] {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	return &RedisProvider[T]{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

// Get retrieves a live entry. Dead entries are deleted.
func (p *RedisProvider[T]) Get(ctx context.Context, key string) (*Entry[T], bool, error) {
	data, err := p.redis.Get(ctx, p.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues("redis").Inc()
			return nil, false, nil
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if !entry.IsLive(p.now()) {
		if err := p.redis.Del(ctx, p.prefix+key).Err(); err != nil {
			CacheErrors.WithLabelValues("delete").Inc()
			return nil, false, fmt.Errorf("redis del: %w", err)
		}
		CacheEvictions.WithLabelValues("expired").Inc()
		CacheMisses.WithLabelValues("redis").Inc()
		return nil, false, nil
	}

	CacheHits.WithLabelValues("redis").Inc()
	return &entry, true, nil
}

// Set stores entry with a Redis expiry derived from its TTL.
func (p *RedisProvider[T]) Set(ctx context.Context, key string, entry Entry[T]) error {
	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	expiry := entry.Remaining(p.now()) + redisExpiryGrace
	if err := p.redis.Set(ctx, p.prefix+key, data, expiry).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Flush deletes every key under the provider prefix.
func (p *RedisProvider[T]) Flush(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := p.redis.Scan(ctx, cursor, p.prefix+"*", flushScanCount).Result()
		if err != nil {
			CacheErrors.WithLabelValues("flush").Inc()
			return fmt.Errorf("redis scan: %w", err)
		}

		if len(keys) > 0 {
			if err := p.redis.Del(ctx, keys...).Err(); err != nil {
				CacheErrors.WithLabelValues("flush").Inc()
				return fmt.Errorf("redis del: %w", err)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	CacheFlushes.WithLabelValues("redis").Inc()
	return nil
}
