package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/bidback-engine/internal/models"
)

const (
	latestSnapshotKey = "bidback:snapshot:latest"
	historyKey        = "bidback:snapshot:history"
)

// SnapshotCacheStats tracks cache performance counters.
type SnapshotCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	mu     sync.RWMutex
}

// SnapshotCache keeps the latest market-breadth snapshot and the recent
// history window in Redis so dashboard reads skip the database. Entries
// expire after one trading session; the importer overwrites them on the
// next breadth upload.
type SnapshotCache struct {
	redis *redis.Client
	ttl   time.Duration
	stats *SnapshotCacheStats
}

// NewSnapshotCache creates a Redis-backed snapshot cache.
func NewSnapshotCache(redisClient *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		redis: redisClient,
		ttl:   ttl,
		stats: &SnapshotCacheStats{},
	}
}

// GetLatest returns the cached latest snapshot, or false on a miss.
func (c *SnapshotCache) GetLatest(ctx context.Context) (*models.MarketSnapshot, bool) {
	data, err := c.redis.Get(ctx, latestSnapshotKey).Result()
	if err == redis.Nil {
		c.miss()
		return nil, false
	}
	if err != nil {
		logrus.WithError(err).Warn("Redis error reading latest snapshot")
		c.miss()
		return nil, false
	}

	var snap models.MarketSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		logrus.WithError(err).Warn("Failed to decode cached snapshot")
		c.miss()
		return nil, false
	}

	c.hit()
	return &snap, true
}

// SetLatest stores the latest snapshot with the configured TTL.
func (c *SnapshotCache) SetLatest(ctx context.Context, snap *models.MarketSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := c.redis.Set(ctx, latestSnapshotKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	c.set()
	return nil
}

// GetHistory returns the cached breadth history window, oldest first.
func (c *SnapshotCache) GetHistory(ctx context.Context) ([]models.MarketSnapshot, bool) {
	data, err := c.redis.Get(ctx, historyKey).Result()
	if err == redis.Nil {
		c.miss()
		return nil, false
	}
	if err != nil {
		logrus.WithError(err).Warn("Redis error reading snapshot history")
		c.miss()
		return nil, false
	}

	var history []models.MarketSnapshot
	if err := json.Unmarshal([]byte(data), &history); err != nil {
		logrus.WithError(err).Warn("Failed to decode cached snapshot history")
		c.miss()
		return nil, false
	}

	c.hit()
	return history, true
}

// SetHistory stores the breadth history window with the configured TTL.
func (c *SnapshotCache) SetHistory(ctx context.Context, history []models.MarketSnapshot) error {
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot history: %w", err)
	}
	if err := c.redis.Set(ctx, historyKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache snapshot history: %w", err)
	}
	c.set()
	return nil
}

// Invalidate drops both cached entries. Called after a breadth import so
// the next read reflects the new trading day.
func (c *SnapshotCache) Invalidate(ctx context.Context) error {
	if err := c.redis.Del(ctx, latestSnapshotKey, historyKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate snapshot cache: %w", err)
	}
	return nil
}

// Stats returns a copy of the current counters.
func (c *SnapshotCache) Stats() SnapshotCacheStats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()
	return SnapshotCacheStats{
		Hits:   c.stats.Hits,
		Misses: c.stats.Misses,
		Sets:   c.stats.Sets,
	}
}

func (c *SnapshotCache) hit() {
	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
}

func (c *SnapshotCache) miss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}

func (c *SnapshotCache) set() {
	c.stats.mu.Lock()
	c.stats.Sets++
	c.stats.mu.Unlock()
}
