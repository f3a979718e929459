// Package market caches the latest rankings in Redis so agent context
// assembly does not hit the snapshot table on every cycle.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/facubara/alphaboard/internal/config"
	"github.com/facubara/alphaboard/internal/scoring"
)

// RankingsCache holds the latest ranked snapshots per timeframe. A nil cache
// is valid and every method on it is a no-op, so callers never branch on
// whether Redis is configured.
type RankingsCache struct {
	client   *redis.Client
	cadences map[string]int // timeframe -> minutes, drives the TTL
	logger   zerolog.Logger
}

// NewRankingsCache connects to Redis, returning nil when caching is disabled
// or the server is unreachable. The cache is an accelerator only; the
// snapshot table remains the source of truth.
func NewRankingsCache(cfg config.RedisConfig, cadences map[string]int) *RankingsCache {
	if !cfg.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	logger := config.NewLogger("rankings-cache")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis unreachable, rankings cache disabled")
		_ = client.Close()
		return nil
	}

	return &RankingsCache{client: client, cadences: cadences, logger: logger}
}

func rankingsKey(timeframe string) string {
	return "rankings:" + timeframe
}

// ttl is twice the timeframe cadence, so one missed run never serves data
// older than two ticks.
func (c *RankingsCache) ttl(timeframe string) time.Duration {
	minutes, ok := c.cadences[timeframe]
	if !ok || minutes <= 0 {
		minutes = 15
	}
	return 2 * time.Duration(minutes) * time.Minute
}

// Set stores the freshly ranked snapshots for a timeframe
func (c *RankingsCache) Set(ctx context.Context, timeframe string, snapshots []scoring.RankedSnapshot) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(snapshots)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to marshal rankings for cache")
		return
	}
	if err := c.client.Set(ctx, rankingsKey(timeframe), payload, c.ttl(timeframe)).Err(); err != nil {
		c.logger.Warn().Err(err).Str("timeframe", timeframe).Msg("Failed to cache rankings")
	}
}

// Get returns the cached rankings for a timeframe, false on miss or error
func (c *RankingsCache) Get(ctx context.Context, timeframe string) ([]scoring.RankedSnapshot, bool) {
	if c == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, rankingsKey(timeframe)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Str("timeframe", timeframe).Msg("Rankings cache read failed")
		}
		return nil, false
	}
	var snapshots []scoring.RankedSnapshot
	if err := json.Unmarshal(payload, &snapshots); err != nil {
		c.logger.Error().Err(err).Msg("Corrupt rankings cache entry")
		return nil, false
	}
	return snapshots, true
}

// Invalidate drops the cached rankings for a timeframe
func (c *RankingsCache) Invalidate(ctx context.Context, timeframe string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, rankingsKey(timeframe)).Err(); err != nil {
		c.logger.Warn().Err(err).Str("timeframe", timeframe).Msg("Failed to invalidate rankings cache")
	}
}

// Close releases the Redis connection
func (c *RankingsCache) Close() {
	if c == nil {
		return
	}
	if err := c.client.Close(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to close Redis client")
	}
}
