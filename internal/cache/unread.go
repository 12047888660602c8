// Package cache keeps per-user unread notification counters in Redis.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const unreadKeyPrefix = "bookissue:notifications:unread:"

// UnreadCounter caches unread counts. A nil receiver or nil client always falls through to
// the loader.
type UnreadCounter struct {
	client *redis.Client
	ttl    time.Duration
}

// NewUnreadCounter instantiates the cache helper.
func NewUnreadCounter(client *redis.Client, ttl time.Duration) *UnreadCounter {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &UnreadCounter{client: client, ttl: ttl}
}

func unreadKey(userID string) string {
	return unreadKeyPrefix + userID
}

// Fetch returns the cached count or loads and stores it.
func (c *UnreadCounter) Fetch(ctx context.Context, userID string, loader func(context.Context) (int64, error)) (int64, error) {
	if loader == nil {
		return 0, errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	count, err := c.client.Get(ctx, unreadKey(userID)).Int64()
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, redis.Nil) {
		return loader(ctx)
	}
	count, err = loader(ctx)
	if err != nil {
		return 0, err
	}
	// a failed write only costs the next reader a query
	_ = c.client.Set(ctx, unreadKey(userID), count, c.ttl).Err()
	return count, nil
}

// Invalidate drops the counters of the given users.
func (c *UnreadCounter) Invalidate(ctx context.Context, userIDs ...string) error {
	if c == nil || c.client == nil || len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = unreadKey(id)
	}
	return c.client.Del(ctx, keys...).Err()
}
