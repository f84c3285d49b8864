package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const oauthStatePrefix = "oauth:state:"

// PutOAuthState stores a login state token for ttl.
func (c *Cache) PutOAuthState(ctx context.Context, state string, ttl time.Duration) error {
	if err := c.client.Set(ctx, oauthStatePrefix+state, "1", ttl).Err(); err != nil {
		return fmt.Errorf("store oauth state: %w", err)
	}
	return nil
}

// ConsumeOAuthState deletes state and reports whether it was present.
// Each state can be consumed once.
func (c *Cache) ConsumeOAuthState(ctx context.Context, state string) (bool, error) {
	err := c.client.GetDel(ctx, oauthStatePrefix+state).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consume oauth state: %w", err)
	}
	return true, nil
}
