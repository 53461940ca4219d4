package uploadstate

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaclient/config"
	"mediaclient/internal/storage"
)

// runStoreConformance exercises the Store contract against any backend.
func runStoreConformance(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := store.Get(ctx, "missing-token")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("save and get", func(t *testing.T) {
		sess := NewSession("0_token_a", "movie.mp4", 12_000_000, 5_000_000)
		require.NoError(t, store.Save(ctx, sess))

		got, err := store.Get(ctx, "0_token_a")
		require.NoError(t, err)
		assert.Equal(t, sess.ID, got.ID)
		assert.Equal(t, "movie.mp4", got.FileName)
		assert.Equal(t, int64(12_000_000), got.FileSize)
		assert.Equal(t, StatusPending, got.Status)
		assert.True(t, sess.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("save replaces", func(t *testing.T) {
		sess, err := store.Get(ctx, "0_token_a")
		require.NoError(t, err)
		sess.ResumeAt = 5_000_000
		sess.ChunksUploaded = 1
		sess.Status = StatusUploading
		sess.UpdatedAt = time.Now().UTC().Add(time.Second)
		require.NoError(t, store.Save(ctx, sess))

		got, err := store.Get(ctx, "0_token_a")
		require.NoError(t, err)
		assert.Equal(t, int64(5_000_000), got.ResumeAt)
		assert.Equal(t, 1, got.ChunksUploaded)
		assert.Equal(t, StatusUploading, got.Status)
	})

	t.Run("list newest first", func(t *testing.T) {
		older := NewSession("0_token_b", "older.mp4", 10, 10)
		older.UpdatedAt = time.Now().UTC().Add(-time.Hour)
		require.NoError(t, store.Save(ctx, older))

		list, err := store.List(ctx, 10)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "0_token_a", list[0].TokenID)
		assert.Equal(t, "0_token_b", list[1].TokenID)

		limited, err := store.List(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "0_token_b"))
		_, err := store.Get(ctx, "0_token_b")
		require.ErrorIs(t, err, ErrNotFound)
		require.ErrorIs(t, store.Delete(ctx, "0_token_b"), ErrNotFound)
	})

	t.Run("token id required", func(t *testing.T) {
		err := store.Save(ctx, &Session{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "token id is required")
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreConformance(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	sess := NewSession("0_copy", "a.bin", 1, 1)
	require.NoError(t, store.Save(ctx, sess))

	sess.ResumeAt = 99
	got, err := store.Get(ctx, "0_copy")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.ResumeAt)

	got.Status = StatusFailed
	again, err := store.Get(ctx, "0_copy")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, again.Status)
}

func TestSQLiteStore(t *testing.T) {
	st, err := storage.NewSQLite(storage.SQLiteConfig{Path: filepath.Join(t.TempDir(), "sessions.db")})
	if err != nil {
		t.Fatalf("new sqlite storage: %v", err)
	}
	defer st.Close()

	store, err := NewSQLiteStore(st.SQLiteDB())
	if err != nil {
		t.Fatalf("new sqlite session store: %v", err)
	}
	runStoreConformance(t, store)
}

func TestSQLiteStoreRequiresDB(t *testing.T) {
	_, err := NewSQLiteStore(nil)
	require.Error(t, err)
}

func TestSessionDone(t *testing.T) {
	sess := NewSession("0_done", "a", 1, 1)
	assert.False(t, sess.Done())
	sess.Status = StatusCompleted
	assert.True(t, sess.Done())
	sess.Status = StatusFailed
	assert.True(t, sess.Done())
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for nil config")
	}
	if !strings.Contains(err.Error(), "config is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewFromConfig(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		cfg := &config.Config{Storage: config.StorageConfig{Type: TypeMemory}}
		res, err := New(context.Background(), cfg)
		require.NoError(t, err)
		defer res.Close()
		assert.IsType(t, &MemoryStore{}, res.Store)
		assert.Nil(t, res.Storage)
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := &config.Config{Storage: config.StorageConfig{
			Type:   storage.TypeSQLite,
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "s.db")},
		}}
		res, err := New(context.Background(), cfg)
		require.NoError(t, err)
		assert.IsType(t, &SQLiteStore{}, res.Store)
		require.NoError(t, res.Close())
	})

	t.Run("unknown type", func(t *testing.T) {
		cfg := &config.Config{Storage: config.StorageConfig{Type: "cassandra"}}
		_, err := New(context.Background(), cfg)
		require.Error(t, err)
	})
}
