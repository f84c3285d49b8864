package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quillbase/quillbase/internal/metrics"
)

// Cache key layout and TTLs.
const (
	recordKeyPrefix   = "record:"
	negCacheKeySuffix = ":neg"

	// DefaultRecordTTL is the TTL for cached records.
	DefaultRecordTTL = 5 * time.Minute

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
	// ErrNegativeHit means the id was recently looked up and not found.
	ErrNegativeHit = errors.New("cached as missing")
)

// Records is a read-through cache of JSON-encoded records of one kind.
type Records[T any] struct {
	cache   *Cache
	kind    string
	ttl     time.Duration
	metrics metrics.Recorder
}

// NewRecords creates a record cache for kind. A zero ttl uses
// DefaultRecordTTL; a nil recorder disables metrics.
func NewRecords[T any](c *Cache, kind string, ttl time.Duration, rec metrics.Recorder) *Records[T] {
	if ttl <= 0 {
		ttl = DefaultRecordTTL
	}
	if rec == nil {
		rec = metrics.NewNoop()
	}
	return &Records[T]{cache: c, kind: kind, ttl: ttl, metrics: rec}
}

// Get returns the cached record, ErrNegativeHit when id is cached as
// missing, or ErrCacheMiss.
func (r *Records[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	key := r.key(id)

	pipe := r.cache.client.Pipeline()
	get := pipe.Get(ctx, key)
	neg := pipe.Exists(ctx, key+negCacheKeySuffix)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return zero, fmt.Errorf("redis get %s failed: %w", r.kind, err)
	}

	if n, _ := neg.Result(); n > 0 {
		r.metrics.IncCacheHit(r.kind)
		return zero, ErrNegativeHit
	}

	data, err := get.Bytes()
	if err != nil {
		r.metrics.IncCacheMiss(r.kind)
		return zero, ErrCacheMiss
	}

	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		// Corrupted entry - treat as miss
		r.metrics.IncCacheMiss(r.kind)
		return zero, ErrCacheMiss
	}

	r.metrics.IncCacheHit(r.kind)
	return rec, nil
}

// Set stores rec under id and clears any negative entry.
func (r *Records[T]) Set(ctx context.Context, id string, rec T) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", r.kind, err)
	}

	key := r.key(id)
	pipe := r.cache.client.Pipeline()
	pipe.Set(ctx, key, data, r.ttl)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache %s: %w", r.kind, err)
	}
	return nil
}

// SetMissing marks id as not found.
func (r *Records[T]) SetMissing(ctx context.Context, id string) error {
	err := r.cache.client.SetEx(ctx, r.key(id)+negCacheKeySuffix, "", NegativeCacheTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}
	return nil
}

// Delete removes the cached record and negative entry for id.
func (r *Records[T]) Delete(ctx context.Context, id string) error {
	key := r.key(id)
	if err := r.cache.client.Del(ctx, key, key+negCacheKeySuffix).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from cache: %w", r.kind, err)
	}
	return nil
}

func (r *Records[T]) key(id string) string {
	return recordKey(r.kind, id)
}

func recordKey(kind, id string) string {
	return recordKeyPrefix + kind + ":" + id
}
