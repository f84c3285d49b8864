package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quillbase/quillbase/internal/model"
)

const (
	// authCachePrefix is the Redis key prefix for auth context cache.
	authCachePrefix = "auth:ctx:"
	// authUserPrefix indexes cached auth contexts by user.
	authUserPrefix = "auth:user:"
	// authCacheTTL is the time-to-live for cached auth contexts.
	authCacheTTL = 5 * time.Minute
)

// GetAuthContext retrieves a cached auth context by cache key.
// Returns nil if not found (cache miss).
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	key := authCachePrefix + cacheKey

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var cached model.AuthContext
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &cached, nil
}

// SetAuthContext caches an auth context and records the key under its user
// so privilege changes can invalidate it.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error {
	key := authCachePrefix + cacheKey

	data, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}

	userKey := authUserPrefix + auth.UserID
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, data, authCacheTTL)
	pipe.SAdd(ctx, userKey, cacheKey)
	pipe.Expire(ctx, userKey, authCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache auth context: %w", err)
	}
	return nil
}

// DeleteAuthContext removes a cached auth context.
// Used when a key is revoked.
func (c *Cache) DeleteAuthContext(ctx context.Context, cacheKey string) error {
	key := authCachePrefix + cacheKey
	return c.client.Del(ctx, key).Err()
}

// InvalidateUserAuthContexts removes all cached auth contexts for a user.
func (c *Cache) InvalidateUserAuthContexts(ctx context.Context, userID string) error {
	userKey := authUserPrefix + userID

	members, err := c.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("list user auth contexts: %w", err)
	}

	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		keys = append(keys, authCachePrefix+m)
	}
	keys = append(keys, userKey)

	return c.client.Del(ctx, keys...).Err()
}
