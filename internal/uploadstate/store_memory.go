package uploadstate

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Get returns the session of tokenID.
func (s *MemoryStore) Get(_ context.Context, tokenID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[tokenID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(sess), nil
}

// Save inserts or replaces a session.
func (s *MemoryStore) Save(_ context.Context, sess *Session) error {
	if err := validate(sess); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.TokenID] = cloneSession(sess)
	return nil
}

// Delete removes the session of tokenID.
func (s *MemoryStore) Delete(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[tokenID]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, tokenID)
	return nil
}

// List returns sessions most recently updated first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]*Session, error) {
	limit = normalizeLimit(limit)
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, cloneSession(sess))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].TokenID < out[j].TokenID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
