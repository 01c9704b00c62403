// Package cache provides the Redis-backed review result cache.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

// ReviewCache stores completed review results keyed by repository and commit
// so re-reviewing an unchanged tree returns without recloning or rechecking.
type ReviewCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewReviewCache constructs a ReviewCache. Non-positive ttl falls back to
// one hour.
func NewReviewCache(client *redis.Client, ttl time.Duration) *ReviewCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ReviewCache{Client: client, TTL: ttl}
}

func cacheKey(key string) string { return "review_cache:" + key }

// Get loads a cached review. A miss is reported as domain.ErrNotFound.
func (c *ReviewCache) Get(ctx domain.Context, key string) (domain.CachedReview, error) {
	tracer := otel.Tracer("cache.review")
	ctx, span := tracer.Start(ctx, "review_cache.Get")
	defer span.End()
	raw, err := c.Client.Get(ctx, cacheKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CachedReview{}, fmt.Errorf("%w: review cache %s", domain.ErrNotFound, key)
	}
	if err != nil {
		return domain.CachedReview{}, fmt.Errorf("op=review_cache.get: %w", err)
	}
	var entry domain.CachedReview
	if err := json.Unmarshal(raw, &entry); err != nil {
		return domain.CachedReview{}, fmt.Errorf("op=review_cache.get: %w", err)
	}
	return entry, nil
}

// Save stores a completed review under its cache key for the configured TTL.
func (c *ReviewCache) Save(ctx domain.Context, entry domain.CachedReview) error {
	tracer := otel.Tracer("cache.review")
	ctx, span := tracer.Start(ctx, "review_cache.Save")
	defer span.End()
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("op=review_cache.save: %w", err)
	}
	if err := c.Client.Set(ctx, cacheKey(entry.CacheKey), raw, c.TTL).Err(); err != nil {
		return fmt.Errorf("op=review_cache.save: %w", err)
	}
	return nil
}
