package redis

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// CountCache stores list-view totals as plain integers. It satisfies the
// application layer's CountCache interface.
type CountCache struct {
	client *Client
}

// NewCountCache creates a CountCache over a Client.
func NewCountCache(client *Client) *CountCache {
	return &CountCache{client: client}
}

// Get returns the cached count for a key, and whether it was present.
func (c *CountCache) Get(ctx context.Context, key string) (int64, bool, error) {
	val, err := c.client.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// Poisoned entry, drop it and treat as a miss.
		_ = c.client.Del(ctx, key)
		return 0, false, nil
	}
	return n, true, nil
}

// Set stores a count with a TTL.
func (c *CountCache) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	return c.client.Set(ctx, key, strconv.FormatInt(value, 10), ttl)
}

// Invalidate removes cached counts.
func (c *CountCache) Invalidate(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...)
}
