package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSQLiteConcurrentWriteSafety(t *testing.T) {
	store, err := New(context.Background(), Config{
		Type:   TypeSQLite,
		SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("failed to create SQLite storage: %v", err)
	}
	defer store.Close()

	db := store.SQLiteDB()

	// Create two tables to simulate upload session tracking and token caching writing concurrently.
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS test_sessions (id TEXT PRIMARY KEY, data TEXT)`)
	if err != nil {
		t.Fatalf("failed to create test_sessions table: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS test_tokens (id TEXT PRIMARY KEY, data TEXT)`)
	if err != nil {
		t.Fatalf("failed to create test_tokens table: %v", err)
	}

	const goroutines = 10
	const insertsPerGoroutine = 50

	var wg sync.WaitGroup
	errs := make(chan error, goroutines*insertsPerGoroutine*2)

	// Half the goroutines write to test_sessions, half to test_tokens.
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			table := "test_sessions"
			if id%2 == 1 {
				table = "test_tokens"
			}
			for j := 0; j < insertsPerGoroutine; j++ {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				_, err := db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, data) VALUES (?, ?)`, table),
					fmt.Sprintf("%d-%d", id, j), "payload")
				cancel()
				if err != nil {
					errs <- fmt.Errorf("goroutine %d insert %d into %s: %w", id, j, table, err)
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent write error: %v", err)
	}

	// Verify all rows were inserted.
	var sessionCount, tokenCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM test_sessions").Scan(&sessionCount); err != nil {
		t.Fatalf("failed to count session rows: %v", err)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM test_tokens").Scan(&tokenCount); err != nil {
		t.Fatalf("failed to count token rows: %v", err)
	}

	expectedPerTable := (goroutines / 2) * insertsPerGoroutine
	if sessionCount != expectedPerTable {
		t.Errorf("test_sessions: got %d rows, want %d", sessionCount, expectedPerTable)
	}
	if tokenCount != expectedPerTable {
		t.Errorf("test_tokens: got %d rows, want %d", tokenCount, expectedPerTable)
	}
}

func TestNew_SQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state", "sessions.db")
	store, err := New(context.Background(), Config{Type: TypeSQLite, SQLite: SQLiteConfig{Path: path}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	if store.Type() != TypeSQLite {
		t.Errorf("Type() = %q, want %q", store.Type(), TypeSQLite)
	}
	if store.PostgreSQLPool() != nil || store.MongoDatabase() != nil {
		t.Error("a SQLite storage must not expose other backends")
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("directory was not created: %v", err)
	}

	var mode string
	if err := store.SQLiteDB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"unknown type", Config{Type: "oracle"}, "unknown storage type: oracle"},
		{"postgresql without url", Config{Type: TypePostgreSQL}, "PostgreSQL URL is required"},
		{"postgresql bad url", Config{Type: TypePostgreSQL, PostgreSQL: PostgreSQLConfig{URL: "postgres://%zz"}}, "failed to parse PostgreSQL URL"},
		{"mongodb without url", Config{Type: TypeMongoDB}, "MongoDB URL is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	dsn := sqliteDSN("data/sessions.db")
	if !strings.HasPrefix(dsn, "file:data/sessions.db?") {
		t.Errorf("dsn = %q", dsn)
	}
	for _, pragma := range []string{"journal_mode%28WAL%29", "busy_timeout%285000%29"} {
		if !strings.Contains(dsn, pragma) {
			t.Errorf("dsn %q is missing %s", dsn, pragma)
		}
	}
}
