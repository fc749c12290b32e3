// Package cache stores predictions keyed by a digest of the cleaned note
// text. Raw note text never reaches a cache key or value.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinical-note-classifier/internal/domain"
)

// PredictionCache defines the interface for prediction caching
type PredictionCache interface {
	Get(ctx context.Context, key string) (domain.Prediction, bool, error)
	Set(ctx context.Context, key string, prediction domain.Prediction) error
	Stats() Stats
	// Ping reports whether the backing store is reachable
	Ping(ctx context.Context) error
	Close() error
}

// Key derives the cache key for a cleaned note scored by the model with the
// given fingerprint. A retrained model never reads its predecessor's entries.
func Key(model, cleaned string) string {
	sum := sha256.Sum256([]byte(cleaned))
	return model + ":" + hex.EncodeToString(sum[:])
}

// Stats represents cache performance statistics
type Stats struct {
	MemoryEntries int       `json:"memory_entries"`
	MemoryHits    int64     `json:"memory_hits"`
	MemoryMisses  int64     `json:"memory_misses"`
	RedisHits     int64     `json:"redis_hits"`
	RedisMisses   int64     `json:"redis_misses"`
	ErrorCount    int64     `json:"error_count"`
	LastReset     time.Time `json:"last_reset"`
}

// HitRatio returns the share of lookups answered by any tier
func (s Stats) HitRatio() float64 {
	hits := s.MemoryHits + s.RedisHits
	// a redis lookup only follows a memory miss in the tiered cache
	lookups := s.MemoryHits + s.MemoryMisses
	if lookups == 0 {
		lookups = s.RedisHits + s.RedisMisses
	}
	if lookups == 0 {
		return 0
	}
	return float64(hits) / float64(lookups)
}

type statsRecorder struct {
	mu    sync.RWMutex
	stats Stats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{stats: Stats{LastReset: time.Now()}}
}

func (r *statsRecorder) increment(statName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch statName {
	case "memory_hits":
		r.stats.MemoryHits++
	case "memory_misses":
		r.stats.MemoryMisses++
	case "redis_hits":
		r.stats.RedisHits++
	case "redis_misses":
		r.stats.RedisMisses++
	case "error_count":
		r.stats.ErrorCount++
	}
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// NoopCache never stores anything
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (domain.Prediction, bool, error) {
	return domain.Prediction{}, false, nil
}

func (NoopCache) Set(context.Context, string, domain.Prediction) error { return nil }

func (NoopCache) Stats() Stats { return Stats{} }

func (NoopCache) Ping(context.Context) error { return nil }

func (NoopCache) Close() error { return nil }

// New builds the cache described by config. An unreachable Redis degrades to
// the memory tier alone.
func New(config domain.CacheConfig, logger *logrus.Logger) (PredictionCache, error) {
	if !config.Enabled {
		return NoopCache{}, nil
	}

	memory, err := NewMemoryCache(config.MemorySize, config.MemoryTTL)
	if err != nil {
		return nil, err
	}
	if config.RedisURL == "" {
		return memory, nil
	}

	redisCache, err := NewRedisCache(config)
	if err != nil {
		logger.WithError(err).Warn("Redis cache unavailable, using memory cache only")
		return memory, nil
	}

	return NewTieredCache(memory, redisCache, logger), nil
}
