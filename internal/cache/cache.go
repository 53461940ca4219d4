// Package cache stores session tokens so they survive across client instances and runs.
// Supports in-memory, local file and Redis backends.
package cache

import (
	"context"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"mediaclient/config"
)

// Entry is a cached value with its expiry.
type Entry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is no longer usable at now.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Cache defines the interface for token storage.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the entry stored under key.
	// Returns nil, nil if there is no live entry.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores an entry until its expiry.
	Set(ctx context.Context, key string, entry *Entry) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// Key derives a cache key from its parts. Parts may be secrets, so only their hash is kept.
func Key(parts ...string) string {
	h := xxhash.New()
	for _, p := range parts {
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Type constants for cache backends
const (
	TypeMemory = "memory"
	TypeLocal  = "local"
	TypeRedis  = "redis"
)

// New creates a cache from configuration.
func New(cfg config.CacheConfig) (Cache, error) {
	switch strings.ToLower(cfg.Type) {
	case "", TypeMemory:
		return NewMemoryCache(), nil
	case TypeLocal:
		dir := cfg.Local.CacheDir
		if dir == "" {
			dir = ".cache"
		}
		return NewLocalCache(filepath.Join(dir, "sessions.json")), nil
	case TypeRedis:
		return NewRedisCache(RedisConfig{
			URL: cfg.Redis.URL,
			Key: cfg.Redis.Key,
			TTL: time.Duration(cfg.Redis.TTL) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown cache type: %s (valid: memory, local, redis)", cfg.Type)
	}
}
