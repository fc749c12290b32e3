package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/clinical-note-classifier/internal/domain"
)

// MemoryCache is a bounded in-process LRU with per-entry expiry
type MemoryCache struct {
	entries *lru.Cache
	ttl     time.Duration
	stats   *statsRecorder
}

type memoryEntry struct {
	prediction domain.Prediction
	expiry     time.Time
}

func (e *memoryEntry) isExpired() bool {
	return time.Now().After(e.expiry)
}

// NewMemoryCache creates an LRU holding at most size predictions
func NewMemoryCache(size int, ttl time.Duration) (*MemoryCache, error) {
	if size <= 0 {
		size = 1000
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	entries, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return &MemoryCache{
		entries: entries,
		ttl:     ttl,
		stats:   newStatsRecorder(),
	}, nil
}

// Get returns the cached prediction for key
func (c *MemoryCache) Get(_ context.Context, key string) (domain.Prediction, bool, error) {
	if value, ok := c.entries.Get(key); ok {
		if entry, ok := value.(*memoryEntry); ok && !entry.isExpired() {
			c.stats.increment("memory_hits")
			return entry.prediction, true, nil
		}
		c.entries.Remove(key)
	}
	c.stats.increment("memory_misses")
	return domain.Prediction{}, false, nil
}

// Set stores prediction under key
func (c *MemoryCache) Set(_ context.Context, key string, prediction domain.Prediction) error {
	prediction.Cached = false
	c.entries.Add(key, &memoryEntry{
		prediction: prediction,
		expiry:     time.Now().Add(c.ttl),
	})
	return nil
}

// Len returns the number of entries, including expired ones not yet evicted
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

func (c *MemoryCache) Stats() Stats {
	stats := c.stats.snapshot()
	stats.MemoryEntries = c.Len()
	return stats
}

func (c *MemoryCache) Ping(context.Context) error { return nil }

func (c *MemoryCache) Close() error {
	c.entries.Purge()
	return nil
}
