package server

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Upload token states, as reported on the wire.
const (
	tokenPending       = 0
	tokenPartialUpload = 1
	tokenFullUpload    = 2
	tokenClosed        = 3
)

// Entry states, as reported on the wire.
const (
	entryReady     = "2"
	entryNoContent = "7"
)

// uploadToken is a token and the chunks it received, keyed by offset.
type uploadToken struct {
	record map[string]any
	chunks map[int64][]byte
	final  bool
}

func (t *uploadToken) received() int64 {
	var n int64
	for _, c := range t.chunks {
		n += int64(len(c))
	}
	return n
}

// contents assembles the chunks in offset order.
func (t *uploadToken) contents() []byte {
	offsets := slices.Sorted(maps.Keys(t.chunks))
	var out []byte
	for _, off := range offsets {
		c := t.chunks[off]
		if int64(len(out)) < off {
			out = append(out, make([]byte, off-int64(len(out)))...)
		}
		out = append(out[:off], c...)
	}
	return out
}

// State is the in-memory data of the fake API. It is safe for concurrent use.
type State struct {
	mu        sync.Mutex
	partnerID int64
	sessions  map[string]time.Time
	entries   map[string]map[string]any
	order     []string
	tokens    map[string]*uploadToken
	now       func() time.Time
}

// NewState creates an empty state for partnerID.
func NewState(partnerID int64) *State {
	return &State{
		partnerID: partnerID,
		sessions:  map[string]time.Time{},
		entries:   map[string]map[string]any{},
		tokens:    map[string]*uploadToken{},
		now:       time.Now,
	}
}

func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

func (s *State) startSession(expiry time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ks := newID("ks_")
	s.sessions[ks] = s.now().Add(expiry)
	return ks
}

func (s *State) validSession(ks string) (valid, expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.sessions[ks]
	if !ok {
		return false, false
	}
	if !s.now().Before(exp) {
		return false, true
	}
	return true, false
}

// RevokeSessions drops every started session.
func (s *State) RevokeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.sessions)
}

func (s *State) addEntry(fields map[string]any) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().Unix()
	entry := map[string]any{}
	for _, k := range []string{"name", "description", "tags", "referenceId", "userId", "mediaType"} {
		if v, ok := fields[k]; ok {
			entry[k] = v
		}
	}
	entry["objectType"] = "KalturaMediaEntry"
	entry["id"] = newID("0_")
	entry["partnerId"] = s.partnerID
	entry["status"] = entryNoContent
	entry["createdAt"] = now
	entry["updatedAt"] = now
	s.entries[entry["id"].(string)] = entry
	s.order = append(s.order, entry["id"].(string))
	return maps.Clone(entry)
}

func (s *State) entry(id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return maps.Clone(e), true
}

func (s *State) updateEntry(id string, fields map[string]any, cleared []string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	for _, k := range []string{"name", "description", "tags", "referenceId"} {
		if v, ok := fields[k]; ok {
			e[k] = v
		}
	}
	for _, k := range cleared {
		delete(e, k)
	}
	e["updatedAt"] = s.now().Unix()
	return maps.Clone(e), true
}

func (s *State) deleteEntry(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return true
}

func (s *State) listEntries(match func(map[string]any) bool) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]any
	for _, id := range s.order {
		if e := s.entries[id]; match(e) {
			out = append(out, maps.Clone(e))
		}
	}
	return out
}

// attachContent makes the entry ready with the contents of a fully uploaded token.
func (s *State) attachContent(entryID, tokenID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok {
		return nil, apiException("ENTRY_ID_NOT_FOUND", fmt.Sprintf("Entry id %q not found", entryID))
	}
	t, ok := s.tokens[tokenID]
	if !ok {
		return nil, apiException("UPLOAD_TOKEN_NOT_FOUND", "Upload token not found")
	}
	if t.record["status"] != tokenFullUpload {
		return nil, apiException("UPLOAD_TOKEN_NOT_READY", "Upload token is not fully uploaded")
	}
	t.record["status"] = tokenClosed
	e["status"] = entryReady
	e["dataUrl"] = fmt.Sprintf("/p/%d/entry/%s/raw", s.partnerID, entryID)
	e["updatedAt"] = s.now().Unix()
	return maps.Clone(e), nil
}

func (s *State) addToken(fields map[string]any) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().Unix()
	record := map[string]any{
		"objectType":       "KalturaUploadToken",
		"id":               newID("1_"),
		"partnerId":        s.partnerID,
		"status":           tokenPending,
		"uploadedFileSize": int64(0),
		"createdAt":        now,
		"updatedAt":        now,
	}
	for _, k := range []string{"fileName", "fileSize", "autoFinalize"} {
		if v, ok := fields[k]; ok {
			record[k] = v
		}
	}
	s.tokens[record["id"].(string)] = &uploadToken{record: record, chunks: map[int64][]byte{}}
	return maps.Clone(record)
}

func (s *State) token(id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return nil, false
	}
	return maps.Clone(t.record), true
}

func (s *State) deleteToken(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[id]; !ok {
		return false
	}
	delete(s.tokens, id)
	return true
}

// TokenContents returns the bytes an upload token received.
func (s *State) TokenContents(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return nil, false
	}
	return t.contents(), true
}

// writeChunk stores data at offset.
func (s *State) writeChunk(id string, data []byte, offset int64, final bool) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return nil, apiException("UPLOAD_TOKEN_NOT_FOUND", "Upload token not found")
	}
	if status := t.record["status"]; status == tokenClosed || status == tokenFullUpload {
		return nil, apiException("UPLOAD_TOKEN_INVALID_STATUS_FOR_UPLOAD", "Upload token is in an invalid status for upload")
	}
	t.chunks[offset] = data
	t.final = t.final || final

	received := t.received()
	t.record["uploadedFileSize"] = received
	t.record["updatedAt"] = s.now().Unix()

	size, declared := t.record["fileSize"].(int64)
	complete := t.final && (!declared || received >= size)
	if complete {
		t.record["status"] = tokenFullUpload
		if !declared {
			t.record["fileSize"] = received
		}
	} else {
		t.record["status"] = tokenPartialUpload
	}
	return maps.Clone(t.record), nil
}
