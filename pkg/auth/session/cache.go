package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	redisclient "github.com/angelmondragon/orderdesk/pkg/redis"
)

// ErrNotCached is returned when a token has no cached owner.
var ErrNotCached = errors.New("session token not cached")

type cacheStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type cacheKeyer interface {
	SessionTokenKey(token string) string
}

// Cache maps session tokens to their owning user id. The database stays authoritative;
// entries only shortcut the token lookup and expire with the session.
type Cache struct {
	store cacheStore
	keyer cacheKeyer
	now   func() time.Time
}

// NewCache constructs a token cache backed by Redis.
func NewCache(client *redisclient.Client) (*Cache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Cache{store: client, keyer: client, now: time.Now}, nil
}

// Remember caches token -> userID until expiresAt.
func (c *Cache) Remember(ctx context.Context, token string, userID uuid.UUID, expiresAt time.Time) error {
	if c == nil {
		return nil
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("token is required")
	}
	ttl := expiresAt.Sub(c.now())
	if ttl <= 0 {
		return nil
	}
	return c.store.Set(ctx, c.keyer.SessionTokenKey(token), userID.String(), ttl)
}

// Lookup returns the cached owner of token, or ErrNotCached.
func (c *Cache) Lookup(ctx context.Context, token string) (uuid.UUID, error) {
	if c == nil || strings.TrimSpace(token) == "" {
		return uuid.Nil, ErrNotCached
	}
	value, err := c.store.Get(ctx, c.keyer.SessionTokenKey(token))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return uuid.Nil, ErrNotCached
		}
		return uuid.Nil, err
	}
	id, err := uuid.Parse(value)
	if err != nil {
		_ = c.Forget(ctx, token)
		return uuid.Nil, ErrNotCached
	}
	return id, nil
}

// Forget evicts token from the cache.
func (c *Cache) Forget(ctx context.Context, token string) error {
	if c == nil || strings.TrimSpace(token) == "" {
		return nil
	}
	return c.store.Del(ctx, c.keyer.SessionTokenKey(token))
}
