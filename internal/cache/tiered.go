package cache

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/clinical-note-classifier/internal/domain"
)

// TieredCache checks memory first, then Redis, and backfills memory on a
// Redis hit. A Redis failure is logged and treated as a miss.
type TieredCache struct {
	memory PredictionCache
	redis  PredictionCache
	logger *logrus.Logger
}

// NewTieredCache combines a memory tier with a shared tier
func NewTieredCache(memory, redis PredictionCache, logger *logrus.Logger) *TieredCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &TieredCache{memory: memory, redis: redis, logger: logger}
}

func (c *TieredCache) Get(ctx context.Context, key string) (domain.Prediction, bool, error) {
	if prediction, ok, _ := c.memory.Get(ctx, key); ok {
		c.logger.WithField("cache_tier", "memory").Debug("Prediction cache hit")
		return prediction, true, nil
	}

	prediction, ok, err := c.redis.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).Warn("Redis cache lookup failed")
		return domain.Prediction{}, false, nil
	}
	if !ok {
		return domain.Prediction{}, false, nil
	}

	c.logger.WithField("cache_tier", "redis").Debug("Prediction cache hit")
	c.memory.Set(ctx, key, prediction)
	return prediction, true, nil
}

func (c *TieredCache) Set(ctx context.Context, key string, prediction domain.Prediction) error {
	c.memory.Set(ctx, key, prediction)
	if err := c.redis.Set(ctx, key, prediction); err != nil {
		c.logger.WithError(err).Warn("Redis cache write failed")
	}
	return nil
}

// Stats merges the per-tier counters
func (c *TieredCache) Stats() Stats {
	memory := c.memory.Stats()
	redis := c.redis.Stats()

	merged := Stats{
		MemoryEntries: memory.MemoryEntries,
		MemoryHits:    memory.MemoryHits,
		MemoryMisses:  memory.MemoryMisses,
		RedisHits:     redis.RedisHits,
		RedisMisses:   redis.RedisMisses,
		ErrorCount:    memory.ErrorCount + redis.ErrorCount,
		LastReset:     memory.LastReset,
	}
	if redis.LastReset.Before(merged.LastReset) {
		merged.LastReset = redis.LastReset
	}
	return merged
}

// Ping checks the shared tier; the memory tier is always reachable
func (c *TieredCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx)
}

func (c *TieredCache) Close() error {
	c.memory.Close()
	return c.redis.Close()
}
