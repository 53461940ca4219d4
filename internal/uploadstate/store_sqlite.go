package uploadstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLiteStore stores sessions in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the upload_sessions table and indexes if needed.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS upload_sessions (
			token_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			data TEXT NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload_sessions table: %w", err)
	}
	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_upload_sessions_updated_at ON upload_sessions(updated_at DESC)"); err != nil {
		return nil, fmt.Errorf("failed to create upload_sessions updated_at index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get returns the session of tokenID.
func (s *SQLiteStore) Get(ctx context.Context, tokenID string) (*Session, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM upload_sessions WHERE token_id = ?", tokenID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query upload session: %w", err)
	}
	sess, err := deserializeSession([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("decode upload session: %w", err)
	}
	return sess, nil
}

// Save inserts or replaces a session.
func (s *SQLiteStore) Save(ctx context.Context, sess *Session) error {
	if err := validate(sess); err != nil {
		return err
	}
	payload, err := serializeSession(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO upload_sessions (token_id, status, updated_at, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(token_id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at,
			data = excluded.data
	`, sess.TokenID, string(sess.Status), sess.UpdatedAt.UnixNano(), string(payload))
	if err != nil {
		return fmt.Errorf("save upload session: %w", err)
	}
	return nil
}

// Delete removes the session of tokenID.
func (s *SQLiteStore) Delete(ctx context.Context, tokenID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM upload_sessions WHERE token_id = ?", tokenID)
	if err != nil {
		return fmt.Errorf("delete upload session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete upload session rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns sessions most recently updated first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM upload_sessions ORDER BY updated_at DESC, token_id ASC LIMIT ?",
		normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list upload sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan upload session: %w", err)
		}
		sess, err := deserializeSession([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("decode upload session: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate upload sessions: %w", err)
	}
	return out, nil
}

// Close is a no-op; the shared connection is owned by storage.
func (s *SQLiteStore) Close() error {
	return nil
}
