package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaclient/config"
)

func TestLocalCache(t *testing.T) {
	t.Run("GetSetRoundTrip", func(t *testing.T) {
		cacheFile := filepath.Join(t.TempDir(), "sessions.json")

		cache := NewLocalCache(cacheFile)
		ctx := context.Background()

		// Initially empty
		result, err := cache.Get(ctx, "k")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != nil {
			t.Fatalf("expected nil result for empty cache, got %v", result)
		}

		expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
		if err := cache.Set(ctx, "k", &Entry{Value: "ks-1", ExpiresAt: expires}); err != nil {
			t.Fatalf("unexpected error on set: %v", err)
		}

		result, err = cache.Get(ctx, "k")
		if err != nil {
			t.Fatalf("unexpected error on get: %v", err)
		}
		if result == nil {
			t.Fatal("expected result, got nil")
		}
		if result.Value != "ks-1" {
			t.Errorf("expected ks-1, got %q", result.Value)
		}
		if !result.ExpiresAt.Equal(expires) {
			t.Errorf("expected expiry %v, got %v", expires, result.ExpiresAt)
		}
	})

	t.Run("CreateDirectoryIfNeeded", func(t *testing.T) {
		cacheFile := filepath.Join(t.TempDir(), "nested", "dir", "sessions.json")

		cache := NewLocalCache(cacheFile)
		if err := cache.Set(context.Background(), "k", &Entry{Value: "v"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := os.Stat(cacheFile); os.IsNotExist(err) {
			t.Error("cache file was not created")
		}
	})

	t.Run("ExpiredEntryIsMissing", func(t *testing.T) {
		cache := NewLocalCache(filepath.Join(t.TempDir(), "sessions.json"))
		ctx := context.Background()

		require.NoError(t, cache.Set(ctx, "live", &Entry{Value: "a", ExpiresAt: time.Now().Add(time.Hour)}))
		require.NoError(t, cache.Set(ctx, "old", &Entry{Value: "b", ExpiresAt: time.Now().Add(-time.Second)}))

		got, err := cache.Get(ctx, "old")
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = cache.Get(ctx, "live")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "a", got.Value)
	})

	t.Run("Delete", func(t *testing.T) {
		cache := NewLocalCache(filepath.Join(t.TempDir(), "sessions.json"))
		ctx := context.Background()

		require.NoError(t, cache.Set(ctx, "k", &Entry{Value: "v"}))
		require.NoError(t, cache.Delete(ctx, "k"))
		require.NoError(t, cache.Delete(ctx, "missing"))

		got, err := cache.Get(ctx, "k")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("EmptyFilePath", func(t *testing.T) {
		cache := NewLocalCache("")
		ctx := context.Background()

		if err := cache.Set(ctx, "k", &Entry{Value: "v"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		result, err := cache.Get(ctx, "k")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != nil {
			t.Error("expected nil result for empty path")
		}
	})

	t.Run("CloseIsNoOp", func(t *testing.T) {
		cache := NewLocalCache("/tmp/test.json")
		if err := cache.Close(); err != nil {
			t.Errorf("unexpected error on close: %v", err)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		cacheFile := filepath.Join(t.TempDir(), "invalid.json")
		if err := os.WriteFile(cacheFile, []byte("not valid json"), 0o644); err != nil {
			t.Fatalf("failed to write test file: %v", err)
		}

		cache := NewLocalCache(cacheFile)
		_, err := cache.Get(context.Background(), "k")
		if err == nil {
			t.Error("expected error for invalid JSON")
		}
	})
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()
	defer cache.Close()

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.Set(ctx, "k", &Entry{Value: "v", ExpiresAt: time.Now().Add(time.Minute)}))
	got, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v", got.Value)

	// Mutating the returned entry must not change the stored one.
	got.Value = "changed"
	again, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", again.Value)

	require.NoError(t, cache.Set(ctx, "k", &Entry{Value: "v", ExpiresAt: time.Now().Add(-time.Minute)}))
	got, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.Set(ctx, "forever", &Entry{Value: "x"}))
	require.NoError(t, cache.Delete(ctx, "forever"))
	got, err = cache.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEntryExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, (&Entry{}).Expired(now))
	assert.False(t, (&Entry{ExpiresAt: now.Add(time.Second)}).Expired(now))
	assert.True(t, (&Entry{ExpiresAt: now}).Expired(now))
}

func TestKey(t *testing.T) {
	a := Key("partner", "secret", "user")
	assert.Equal(t, a, Key("partner", "secret", "user"))
	assert.NotEqual(t, a, Key("partner", "secretuser"))
	assert.NotContains(t, a, "secret")
	assert.Len(t, a, 16)
}

func TestNew(t *testing.T) {
	c, err := New(config.CacheConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	c, err = New(config.CacheConfig{Type: "local", Local: config.LocalConfig{CacheDir: t.TempDir()}})
	require.NoError(t, err)
	assert.IsType(t, &LocalCache{}, c)

	_, err = New(config.CacheConfig{Type: "memcached"})
	assert.Error(t, err)

	_, err = New(config.CacheConfig{Type: "redis", Redis: config.RedisConfig{URL: "://bad"}})
	assert.Error(t, err)
}
