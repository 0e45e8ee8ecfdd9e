package services

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// CacheKeyPrefix is the Redis key prefix for cached data
	CacheKeyPrefix = "cache:"
	// DefaultCacheTTL is 8 hours
	DefaultCacheTTL = 8 * time.Hour

	allYears = "all"
)

// ReviewCache keeps composed reviews per user and year so repeated page views do not
// call the completion service again. All of a user's reviews live in one hash so a
// journal change can drop them together.
//
// Each user also has a generation counter that Invalidate bumps. A review is only
// stored under the generation it was composed from, so a compose that overlaps an
// Add or Delete cannot write back a stale review.
type ReviewCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewReviewCache(rdb *redis.Client) *ReviewCache {
	return &ReviewCache{rdb: rdb, ttl: DefaultCacheTTL}
}

func reviewKey(userID string) string {
	return CacheKey("review", userID)
}

// generationKey has no TTL; it must outlive the hash it guards.
func generationKey(userID string) string {
	return CacheKey("review_gen", userID)
}

func yearField(year string) string {
	if year == "" {
		return allYears
	}
	return year
}

// Get returns the cached review. A miss is ("", false, nil).
func (c *ReviewCache) Get(ctx context.Context, userID, year string) (string, bool, error) {
	val, err := c.rdb.HGet(ctx, reviewKey(userID), yearField(year)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Generation returns the user's current cache generation. Read it before loading the
// entries a review is composed from and hand it to Set.
func (c *ReviewCache) Generation(ctx context.Context, userID string) (int64, error) {
	return readGeneration(ctx, c.rdb, userID)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, rdb getter, userID string) (int64, error) {
	gen, err := rdb.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Set stores review if the user's generation is still gen. When the journal changed in
// the meantime nothing is stored and Set returns nil.
func (c *ReviewCache) Set(ctx context.Context, userID, year, review string, gen int64) error {
	key := reviewKey(userID)
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := readGeneration(ctx, tx, userID)
		if err != nil {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, yearField(year), review)
			pipe.Expire(ctx, key, c.ttl)
			return nil
		})
		return err
	}, generationKey(userID))
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// Invalidate drops every cached review of userID and starts a new generation.
func (c *ReviewCache) Invalidate(ctx context.Context, userID string) error {
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, generationKey(userID))
	pipe.Del(ctx, reviewKey(userID))
	_, err := pipe.Exec(ctx)
	return err
}

// CacheKey generates a cache key for a specific resource
func CacheKey(resource string, identifier string) string {
	return CacheKeyPrefix + resource + ":" + identifier
}
