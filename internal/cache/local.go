package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LocalCache implements Cache using local file storage.
// This is suitable for a single machine running the client repeatedly.
type LocalCache struct {
	mu       sync.RWMutex
	filePath string
}

// NewLocalCache creates a new local file-based cache.
// The filePath specifies where the cache file will be stored.
func NewLocalCache(filePath string) *LocalCache {
	return &LocalCache{
		filePath: filePath,
	}
}

// Get retrieves a live entry from the local file.
func (c *LocalCache) Get(ctx context.Context, key string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries, err := c.load()
	if err != nil {
		return nil, err
	}
	entry, ok := entries[key]
	if !ok || entry.Expired(time.Now()) {
		return nil, nil
	}
	return &entry, nil
}

// Set stores an entry in the local file, dropping expired ones.
func (c *LocalCache) Set(ctx context.Context, key string, entry *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.filePath == "" {
		return nil
	}
	entries, err := c.load()
	if err != nil {
		return err
	}
	entries[key] = *entry
	return c.store(entries)
}

// Delete removes key from the local file.
func (c *LocalCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.filePath == "" {
		return nil
	}
	entries, err := c.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return c.store(entries)
}

// Close is a no-op for local cache.
func (c *LocalCache) Close() error {
	return nil
}

func (c *LocalCache) load() (map[string]Entry, error) {
	entries := map[string]Entry{}
	if c.filePath == "" {
		return entries, nil
	}
	data, err := os.ReadFile(c.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil // No cache file yet, not an error
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse cache file: %w", err)
	}
	return entries, nil
}

func (c *LocalCache) store(entries map[string]Entry) error {
	now := time.Now()
	for k, e := range entries {
		if e.Expired(now) {
			delete(entries, k)
		}
	}

	// Ensure directory exists
	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	// Write atomically using temp file + rename
	tmpFile := c.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmpFile, c.filePath); err != nil {
		os.Remove(tmpFile) // Clean up temp file
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}
