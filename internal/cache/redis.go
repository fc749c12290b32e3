package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinical-note-classifier/internal/domain"
)

const redisKeyPrefix = "cnc:prediction:"

// RedisCache shares predictions between replicas
type RedisCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
	stats      *statsRecorder
}

// cachedPrediction represents a cached prediction with metadata
type cachedPrediction struct {
	Data      domain.Prediction `json:"data"`
	CachedAt  time.Time         `json:"cached_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// NewRedisCache connects to the Redis instance named by config.RedisURL
func NewRedisCache(config domain.CacheConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisCache(client, config.DefaultTTL), nil
}

func newRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{
		redis:      client,
		defaultTTL: ttl,
		stats:      newStatsRecorder(),
	}
}

// Get retrieves a cached prediction
func (c *RedisCache) Get(ctx context.Context, key string) (domain.Prediction, bool, error) {
	redisKey := redisKeyPrefix + key

	val, err := c.redis.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		c.stats.increment("redis_misses")
		return domain.Prediction{}, false, nil
	}
	if err != nil {
		c.stats.increment("error_count")
		return domain.Prediction{}, false, fmt.Errorf("failed to get prediction cache: %w", err)
	}

	var cached cachedPrediction
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// corrupted entry
		c.redis.Del(ctx, redisKey)
		c.stats.increment("redis_misses")
		return domain.Prediction{}, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, redisKey)
		c.stats.increment("redis_misses")
		return domain.Prediction{}, false, nil
	}

	c.stats.increment("redis_hits")
	return cached.Data, true, nil
}

// Set caches a prediction for the default TTL
func (c *RedisCache) Set(ctx context.Context, key string, prediction domain.Prediction) error {
	now := time.Now()
	cached := cachedPrediction{
		Data:      prediction,
		CachedAt:  now,
		ExpiresAt: now.Add(c.defaultTTL),
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction cache data: %w", err)
	}

	if err := c.redis.Set(ctx, redisKeyPrefix+key, jsonData, c.defaultTTL).Err(); err != nil {
		c.stats.increment("error_count")
		return fmt.Errorf("failed to set prediction cache: %w", err)
	}
	return nil
}

// Ping checks if Redis connection is alive
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

func (c *RedisCache) Stats() Stats {
	return c.stats.snapshot()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.redis.Close()
}
