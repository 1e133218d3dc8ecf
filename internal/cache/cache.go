// Package cache is a tag-keyed read-through cache for proxied backend
// responses. Invalidation is by tag, never by partial mutation: a mutated
// chat list is re-read from the backend, not patched in place, so the cache
// can never hold a merged-but-stale entry.
package cache

import (
	"context"
	"time"
)

// Tag builders shared by handlers. One tag maps to one cached response.
func ChatsTag(userID string) string { return "chats:" + userID }

func ChatTag(chatID string) string { return "chat-" + chatID }

func CreditsTag(userID string) string { return "credits:" + userID }

func TripContextTag(chatID string) string { return "trip-context-" + chatID }

// Store is the cache backend. Get returns ok=false on a miss.
type Store interface {
	Get(ctx context.Context, tag string) ([]byte, bool, error)
	Set(ctx context.Context, tag string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, tags ...string) error
}

// Cache wraps a Store with the gateway's TTL policy.
type Cache struct {
	store Store
	ttl   time.Duration
}

func New(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{store: store, ttl: ttl}
}

// GetOrFetch returns the cached value for tag, or calls fetch and stores the
// result. Fetch errors are not cached.
func (c *Cache) GetOrFetch(ctx context.Context, tag string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if cached, ok, err := c.store.Get(ctx, tag); err == nil && ok {
		return cached, nil
	}

	value, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	// A failed write only costs a re-fetch next read.
	c.store.Set(ctx, tag, value, c.ttl)
	return value, nil
}

// Invalidate drops the given tags. The drop happens before this call
// returns, so a re-read issued afterwards observes fresh data.
func (c *Cache) Invalidate(ctx context.Context, tags ...string) error {
	return c.store.Delete(ctx, tags...)
}
