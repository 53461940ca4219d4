package uploadstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLStore stores sessions in PostgreSQL.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLStore creates the upload_sessions table and indexes if needed.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool) (*PostgreSQLStore, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS upload_sessions (
			token_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			updated_at BIGINT NOT NULL,
			data JSONB NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload_sessions table: %w", err)
	}
	if _, err := pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_upload_sessions_updated_at ON upload_sessions(updated_at DESC)"); err != nil {
		return nil, fmt.Errorf("failed to create upload_sessions updated_at index: %w", err)
	}

	return &PostgreSQLStore{pool: pool}, nil
}

// Get returns the session of tokenID.
func (s *PostgreSQLStore) Get(ctx context.Context, tokenID string) (*Session, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, "SELECT data FROM upload_sessions WHERE token_id = $1", tokenID).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query upload session: %w", err)
	}
	sess, err := deserializeSession(payload)
	if err != nil {
		return nil, fmt.Errorf("decode upload session: %w", err)
	}
	return sess, nil
}

// Save inserts or replaces a session.
func (s *PostgreSQLStore) Save(ctx context.Context, sess *Session) error {
	if err := validate(sess); err != nil {
		return err
	}
	payload, err := serializeSession(sess)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO upload_sessions (token_id, status, updated_at, data)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (token_id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at,
			data = EXCLUDED.data
	`, sess.TokenID, string(sess.Status), sess.UpdatedAt.UnixNano(), payload)
	if err != nil {
		return fmt.Errorf("save upload session: %w", err)
	}
	return nil
}

// Delete removes the session of tokenID.
func (s *PostgreSQLStore) Delete(ctx context.Context, tokenID string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM upload_sessions WHERE token_id = $1", tokenID)
	if err != nil {
		return fmt.Errorf("delete upload session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns sessions most recently updated first.
func (s *PostgreSQLStore) List(ctx context.Context, limit int) ([]*Session, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT data FROM upload_sessions ORDER BY updated_at DESC, token_id ASC LIMIT $1",
		normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list upload sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan upload session: %w", err)
		}
		sess, err := deserializeSession(payload)
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

// Close is a no-op; the shared pool is owned by storage.
func (s *PostgreSQLStore) Close() error {
	return nil
}
