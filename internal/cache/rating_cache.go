// Package cache holds the doctor rating summary cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harentsoaR/telehealth-api/internal/models"
)

type RatingCache interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, doctorID string) (models.RatingSummary, bool, error)
	Set(ctx context.Context, doctorID string, summary models.RatingSummary) error
	Invalidate(ctx context.Context, doctorID string) error
}

type RedisRatingCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisRatingCache(client *redis.Client, ttl time.Duration) *RedisRatingCache {
	return &RedisRatingCache{redis: client, ttl: ttl}
}

func (c *RedisRatingCache) key(doctorID string) string {
	return fmt.Sprintf("telehealth:doctor:%s:rating", doctorID)
}

func (c *RedisRatingCache) Get(ctx context.Context, doctorID string) (models.RatingSummary, bool, error) {
	var summary models.RatingSummary
	data, err := c.redis.Get(ctx, c.key(doctorID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return summary, false, nil
	}
	if err != nil {
		return summary, false, fmt.Errorf("cache: get rating: %w", err)
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		return summary, false, fmt.Errorf("cache: decode rating: %w", err)
	}
	return summary, true, nil
}

func (c *RedisRatingCache) Set(ctx context.Context, doctorID string, summary models.RatingSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("cache: encode rating: %w", err)
	}
	if err := c.redis.Set(ctx, c.key(doctorID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set rating: %w", err)
	}
	return nil
}

func (c *RedisRatingCache) Invalidate(ctx context.Context, doctorID string) error {
	if err := c.redis.Del(ctx, c.key(doctorID)).Err(); err != nil {
		return fmt.Errorf("cache: invalidate rating: %w", err)
	}
	return nil
}

// Noop is used when no Redis address is configured; every Get misses.
type Noop struct{}

func (Noop) Get(context.Context, string) (models.RatingSummary, bool, error) {
	return models.RatingSummary{}, false, nil
}

func (Noop) Set(context.Context, string, models.RatingSummary) error { return nil }

func (Noop) Invalidate(context.Context, string) error { return nil }
