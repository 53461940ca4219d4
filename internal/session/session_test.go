package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaclient/internal/cache"
	"mediaclient/internal/core"
	"mediaclient/internal/object"
	"mediaclient/internal/request"
)

type fakeExecutor struct {
	calls atomic.Int32
	delay time.Duration
	ks    string
	err   error
	last  map[string]any
	mu    sync.Mutex
}

func (f *fakeExecutor) Execute(_ context.Context, req *request.Request) *request.Response {
	f.calls.Add(1)
	record, _ := object.Serialize(req.Params())
	f.mu.Lock()
	f.last = record
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return &request.Response{Err: f.err}
	}
	return &request.Response{Result: f.ks}
}

func TestStatic(t *testing.T) {
	ks, err := Static("abc").KS(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", ks)
}

func TestNewStartRequest(t *testing.T) {
	req := NewStartRequest("s3cret", "alice", TypeAdmin, 42, time.Hour, "")
	assert.Equal(t, "session", req.Service())
	assert.Equal(t, "start", req.Action())

	record, err := object.Serialize(req.Params())
	require.NoError(t, err)
	assert.Equal(t, "s3cret", record["secret"])
	assert.Equal(t, "alice", record["userId"])
	assert.EqualValues(t, 2, record["type"])
	assert.EqualValues(t, 42, record["partnerId"])
	assert.EqualValues(t, 3600, record["expiry"])
	assert.NotContains(t, record, "privileges")
}

func TestCachedProvider(t *testing.T) {
	cfg := Config{ServiceURL: "http://api", PartnerID: 7, Secret: "s", Expiry: time.Hour}

	t.Run("ReusesCachedToken", func(t *testing.T) {
		exec := &fakeExecutor{ks: "token-1"}
		p, err := NewCachedProvider(cfg, exec, nil, nil)
		require.NoError(t, err)

		for range 3 {
			ks, err := p.KS(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "token-1", ks)
		}
		assert.EqualValues(t, 1, exec.calls.Load())
	})

	t.Run("ConcurrentCallersShareOneStart", func(t *testing.T) {
		exec := &fakeExecutor{ks: "token-2", delay: 50 * time.Millisecond}
		p, err := NewCachedProvider(cfg, exec, nil, nil)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for range 8 {
			wg.Go(func() {
				ks, err := p.KS(context.Background())
				assert.NoError(t, err)
				assert.Equal(t, "token-2", ks)
			})
		}
		wg.Wait()
		assert.EqualValues(t, 1, exec.calls.Load())
	})

	t.Run("InvalidateStartsNewSession", func(t *testing.T) {
		exec := &fakeExecutor{ks: "token-3"}
		p, err := NewCachedProvider(cfg, exec, nil, nil)
		require.NoError(t, err)

		_, err = p.KS(context.Background())
		require.NoError(t, err)
		require.NoError(t, p.Invalidate(context.Background()))
		_, err = p.KS(context.Background())
		require.NoError(t, err)
		assert.EqualValues(t, 2, exec.calls.Load())
	})

	t.Run("ExpiresEarly", func(t *testing.T) {
		c := cache.NewMemoryCache()
		exec := &fakeExecutor{ks: "token-4"}
		p, err := NewCachedProvider(cfg, exec, c, nil)
		require.NoError(t, err)

		start := time.Now()
		_, err = p.KS(context.Background())
		require.NoError(t, err)

		entry, err := c.Get(context.Background(), p.key)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.WithinDuration(t, start.Add(55*time.Minute), entry.ExpiresAt, 5*time.Second)
	})

	t.Run("StartFailure", func(t *testing.T) {
		exec := &fakeExecutor{err: &core.APIError{Code: "START_SESSION_ERROR", Message: "bad secret"}}
		p, err := NewCachedProvider(cfg, exec, nil, nil)
		require.NoError(t, err)

		_, err = p.KS(context.Background())
		var apiErr *core.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "START_SESSION_ERROR", apiErr.Code)
	})

	t.Run("EmptyTokenIsProtocolError", func(t *testing.T) {
		p, err := NewCachedProvider(cfg, &fakeExecutor{}, nil, nil)
		require.NoError(t, err)

		_, err = p.KS(context.Background())
		assert.True(t, errors.Is(err, core.ErrProtocol))
	})

	t.Run("RequiresSecret", func(t *testing.T) {
		_, err := NewCachedProvider(Config{}, &fakeExecutor{}, nil, nil)
		assert.Error(t, err)
	})

	t.Run("DifferentUsersDoNotShareTokens", func(t *testing.T) {
		c := cache.NewMemoryCache()
		a, err := NewCachedProvider(cfg, &fakeExecutor{ks: "a"}, c, nil)
		require.NoError(t, err)
		other := cfg
		other.UserID = "bob"
		b, err := NewCachedProvider(other, &fakeExecutor{ks: "b"}, c, nil)
		require.NoError(t, err)

		ksA, err := a.KS(context.Background())
		require.NoError(t, err)
		ksB, err := b.KS(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "a", ksA)
		assert.Equal(t, "b", ksB)
	})
}

func TestIsSessionRejected(t *testing.T) {
	assert.True(t, IsSessionRejected(&core.APIError{Code: "INVALID_KS"}))
	assert.True(t, IsSessionRejected(&core.APIError{Code: "EXPIRED_KS"}))
	assert.False(t, IsSessionRejected(&core.APIError{Code: "ENTRY_ID_NOT_FOUND"}))
	assert.False(t, IsSessionRejected(errors.New("boom")))
}
