package services

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const sessionCachePrefix = "session:"

// SessionCache remembers which user a session token belongs to so request
// authentication can skip the store. Only the token to user id mapping is
// cached; balances are always read from the store. A nil *SessionCache is a
// valid no-op cache.
type SessionCache struct {
	client *redis.Client
}

func NewSessionCache(client *redis.Client) *SessionCache {
	if client == nil {
		return nil
	}
	return &SessionCache{client: client}
}

// Put caches token for ttl, which callers keep within the session's
// remaining lifetime.
func (c *SessionCache) Put(ctx context.Context, token, userID string, ttl time.Duration) error {
	if c == nil || ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, sessionCachePrefix+token, userID, ttl).Err()
}

// Get returns the cached user id, or "" on a miss.
func (c *SessionCache) Get(ctx context.Context, token string) (string, error) {
	if c == nil {
		return "", nil
	}
	userID, err := c.client.Get(ctx, sessionCachePrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return userID, err
}

func (c *SessionCache) Evict(ctx context.Context, tokens ...string) error {
	if c == nil || len(tokens) == 0 {
		return nil
	}
	keys := make([]string, len(tokens))
	for i, t := range tokens {
		keys[i] = sessionCachePrefix + t
	}
	return c.client.Del(ctx, keys...).Err()
}
