package dedup

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"flatwatch/internal/model"
)

const cachePrefix = "flatwatch:fp:"

// CachedStore puts a Redis recent-fingerprint cache in front of another
// store. The cache is a fast-path rejection only: a cache miss or any
// Redis error falls through to the underlying store, which stays the sole
// source of truth.
type CachedStore struct {
	store Store
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedStore wraps store with a Redis cache. Entries expire after ttl.
func NewCachedStore(store Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{store: store, rdb: rdb, ttl: ttl}
}

func (c *CachedStore) Exists(ctx context.Context, fingerprint string) (bool, error) {
	n, err := c.rdb.Exists(ctx, cachePrefix+fingerprint).Result()
	if err == nil && n > 0 {
		return true, nil
	}
	if err != nil {
		log.Printf("[dedup] cache lookup failed, falling back to store: %v", err)
	}
	return c.store.Exists(ctx, fingerprint)
}

func (c *CachedStore) Record(ctx context.Context, l model.Listing) (bool, error) {
	inserted, err := c.store.Record(ctx, l)
	if err != nil {
		return false, err
	}
	// Best effort; the store already holds the fingerprint.
	if cerr := c.rdb.Set(ctx, cachePrefix+l.Fingerprint, 1, c.ttl).Err(); cerr != nil {
		log.Printf("[dedup] cache set failed: %v", cerr)
	}
	return inserted, nil
}

func (c *CachedStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	return c.store.Purge(ctx, olderThan)
}

func (c *CachedStore) Stats(ctx context.Context) (Stats, error) {
	return c.store.Stats(ctx)
}
