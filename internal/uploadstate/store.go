// Package uploadstate persists resumable upload sessions so an interrupted chunked upload
// can continue from the last byte the server acknowledged.
package uploadstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates no session is stored for the requested token.
var ErrNotFound = errors.New("upload session not found")

// Status is the lifecycle state of an upload session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Session tracks one upload identified by its upload token.
type Session struct {
	ID             string    `json:"id"`
	TokenID        string    `json:"token_id"`
	FileName       string    `json:"file_name"`
	FileSize       int64     `json:"file_size"`
	ChunkSize      int64     `json:"chunk_size"`
	ResumeAt       int64     `json:"resume_at"`
	ChunksUploaded int       `json:"chunks_uploaded"`
	Status         Status    `json:"status"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewSession starts a pending session for tokenID.
func NewSession(tokenID, fileName string, fileSize, chunkSize int64) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		TokenID:   tokenID,
		FileName:  fileName,
		FileSize:  fileSize,
		ChunkSize: chunkSize,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Done reports whether the session reached a terminal state.
func (s *Session) Done() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// Store persists upload sessions keyed by token id.
type Store interface {
	Get(ctx context.Context, tokenID string) (*Session, error)
	// Save inserts or replaces the session of s.TokenID.
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, tokenID string) error
	// List returns sessions most recently updated first.
	List(ctx context.Context, limit int) ([]*Session, error)
	Close() error
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 500:
		return 500
	default:
		return limit
	}
}

func validate(s *Session) error {
	if s == nil {
		return fmt.Errorf("session is nil")
	}
	if s.TokenID == "" {
		return fmt.Errorf("session token id is required")
	}
	return nil
}

func cloneSession(src *Session) *Session {
	dst := *src
	return &dst
}

func serializeSession(s *Session) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return b, nil
}

func deserializeSession(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}
