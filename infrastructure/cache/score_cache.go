// Package cache holds the materialized interaction score caches: an
// in-process TTL cache and a Redis cache shared between instances.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/yukpo/yukpo/domain/scoring"
	"github.com/yukpo/yukpo/internal/log"
)

// MemoryScoreCache keeps scores in process with a TTL.
type MemoryScoreCache struct {
	items *gocache.Cache
}

var _ scoring.Cache = (*MemoryScoreCache)(nil)

// NewMemoryScoreCache creates a cache expiring entries after ttl.
func NewMemoryScoreCache(ttl time.Duration) *MemoryScoreCache {
	return &MemoryScoreCache{items: gocache.New(ttl, 2*ttl)}
}

// Get returns a cached score.
func (c *MemoryScoreCache) Get(_ context.Context, serviceID int64) (scoring.Score, bool) {
	v, ok := c.items.Get(key(serviceID))
	if !ok {
		return scoring.Score{}, false
	}
	s, ok := v.(scoring.Score)
	return s, ok
}

// Set stores a score with the default TTL.
func (c *MemoryScoreCache) Set(_ context.Context, score scoring.Score) {
	c.items.SetDefault(key(score.ServiceID), score)
}

// Delete evicts a score.
func (c *MemoryScoreCache) Delete(_ context.Context, serviceID int64) {
	c.items.Delete(key(serviceID))
}

// RedisScoreCache keeps scores in Redis so every instance shares them.
// Redis failures degrade to misses.
type RedisScoreCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ scoring.Cache = (*RedisScoreCache)(nil)

// NewRedisScoreCache connects to url and checks the connection.
func NewRedisScoreCache(ctx context.Context, url string, ttl time.Duration, logger *slog.Logger) (*RedisScoreCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisScoreCacheWithClient(client, ttl, logger), nil
}

// NewRedisScoreCacheWithClient wraps an existing client.
func NewRedisScoreCacheWithClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisScoreCache {
	return &RedisScoreCache{client: client, ttl: ttl, logger: log.OrDefault(logger)}
}

// Get returns a cached score.
func (c *RedisScoreCache) Get(ctx context.Context, serviceID int64) (scoring.Score, bool) {
	data, err := c.client.Get(ctx, key(serviceID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "score cache read failed", slog.Int64("service_id", serviceID), slog.String("error", err.Error()))
		}
		return scoring.Score{}, false
	}
	var s scoring.Score
	if err := json.Unmarshal(data, &s); err != nil {
		return scoring.Score{}, false
	}
	return s, true
}

// Set stores a score with the TTL.
func (c *RedisScoreCache) Set(ctx context.Context, score scoring.Score) {
	data, err := json.Marshal(score)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(score.ServiceID), data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "score cache write failed", slog.Int64("service_id", score.ServiceID), slog.String("error", err.Error()))
	}
}

// Delete evicts a score.
func (c *RedisScoreCache) Delete(ctx context.Context, serviceID int64) {
	if err := c.client.Del(ctx, key(serviceID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "score cache delete failed", slog.Int64("service_id", serviceID), slog.String("error", err.Error()))
	}
}

// Close releases the Redis connection pool.
func (c *RedisScoreCache) Close() error {
	return c.client.Close()
}

func key(serviceID int64) string {
	return "yukpo:score:" + strconv.FormatInt(serviceID, 10)
}
