package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache implements Cache in process memory.
type MemoryCache struct {
	items *gocache.Cache
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

// Get retrieves a live entry.
func (c *MemoryCache) Get(_ context.Context, key string) (*Entry, error) {
	v, ok := c.items.Get(key)
	if !ok {
		return nil, nil
	}
	entry := v.(Entry)
	if entry.Expired(time.Now()) {
		return nil, nil
	}
	return &entry, nil
}

// Set stores an entry until it expires.
func (c *MemoryCache) Set(_ context.Context, key string, entry *Entry) error {
	ttl := gocache.NoExpiration
	if !entry.ExpiresAt.IsZero() {
		ttl = time.Until(entry.ExpiresAt)
		if ttl <= 0 {
			c.items.Delete(key)
			return nil
		}
	}
	c.items.Set(key, *entry, ttl)
	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.items.Delete(key)
	return nil
}

// Close drops all entries.
func (c *MemoryCache) Close() error {
	c.items.Flush()
	return nil
}
