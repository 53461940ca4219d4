// Package session supplies the session token (KS) sent with every API call.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"mediaclient/internal/cache"
	"mediaclient/internal/core"
	"mediaclient/internal/object"
	"mediaclient/internal/request"
)

// Type is the privilege level of a started session.
type Type int

const (
	TypeUser  Type = 0
	TypeAdmin Type = 2
)

// DefaultExpiry is the session lifetime requested when none is configured.
const DefaultExpiry = 24 * time.Hour

// Provider returns the session token to send with a call.
type Provider interface {
	KS(ctx context.Context) (string, error)
}

// Invalidator is implemented by providers that can discard a token the server rejected.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Static always returns the same token. The empty token sends anonymous calls.
type Static string

// KS implements Provider.
func (s Static) KS(context.Context) (string, error) {
	return string(s), nil
}

// Executor runs one request without a session token.
type Executor interface {
	Execute(ctx context.Context, req *request.Request) *request.Response
}

var startMetadata = object.NewMetadata(nil,
	object.Property{Name: "secret", Type: object.TypeString},
	object.Property{Name: "userId", Type: object.TypeString},
	object.Property{Name: "type", Type: object.TypeEnumNumber},
	object.Property{Name: "partnerId", Type: object.TypeNumber},
	object.Property{Name: "expiry", Type: object.TypeNumber},
	object.Property{Name: "privileges", Type: object.TypeString},
)

// NewStartRequest builds a session.start call returning the token as a string.
func NewStartRequest(secret, userID string, typ Type, partnerID int64, expiry time.Duration, privileges string) *request.Request {
	req := request.New("session", "start", startMetadata).
		Set("secret", secret).
		Set("type", int64(typ)).
		Set("partnerId", partnerID).
		Set("expiry", int64(expiry/time.Second)).
		ReturnsScalar()
	if userID != "" {
		req.Set("userId", userID)
	}
	if privileges != "" {
		req.Set("privileges", privileges)
	}
	return req
}

// Config describes the session the cached provider starts.
type Config struct {
	ServiceURL string
	PartnerID  int64
	Secret     string
	UserID     string
	Type       Type
	Expiry     time.Duration
	Privileges string
}

// CachedProvider starts sessions on demand and keeps them in a cache until shortly before
// they expire. Concurrent callers share a single session.start call.
type CachedProvider struct {
	cfg    Config
	exec   Executor
	cache  cache.Cache
	key    string
	group  singleflight.Group
	logger *slog.Logger
	now    func() time.Time
}

// NewCachedProvider creates a provider. A nil cache keeps tokens in memory.
func NewCachedProvider(cfg Config, exec Executor, c cache.Cache, logger *slog.Logger) (*CachedProvider, error) {
	if cfg.Secret == "" {
		return nil, errors.New("session secret is required")
	}
	if exec == nil {
		return nil, errors.New("session executor is required")
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultExpiry
	}
	if c == nil {
		c = cache.NewMemoryCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{
		cfg:   cfg,
		exec:  exec,
		cache: c,
		key: cache.Key(cfg.ServiceURL, strconv.FormatInt(cfg.PartnerID, 10), cfg.Secret,
			cfg.UserID, strconv.Itoa(int(cfg.Type)), cfg.Privileges),
		logger: logger,
		now:    time.Now,
	}, nil
}

// KS implements Provider.
func (p *CachedProvider) KS(ctx context.Context) (string, error) {
	entry, err := p.cache.Get(ctx, p.key)
	if err != nil {
		p.logger.Warn("session cache read failed", "error", err)
	} else if entry != nil {
		return entry.Value, nil
	}

	v, err, _ := p.group.Do(p.key, func() (any, error) {
		return p.start(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token so the next call starts a new session.
func (p *CachedProvider) Invalidate(ctx context.Context) error {
	return p.cache.Delete(ctx, p.key)
}

func (p *CachedProvider) start(ctx context.Context) (string, error) {
	started := p.now()
	resp := p.exec.Execute(ctx, NewStartRequest(p.cfg.Secret, p.cfg.UserID, p.cfg.Type,
		p.cfg.PartnerID, p.cfg.Expiry, p.cfg.Privileges))
	ks, err := request.ResultAs[string](resp)
	if err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	if ks == "" {
		return "", core.NewProtocolError("session.start returned an empty token")
	}

	// Refresh a tenth of the lifetime early, capped at five minutes.
	margin := min(p.cfg.Expiry/10, 5*time.Minute)
	entry := &cache.Entry{Value: ks, ExpiresAt: started.Add(p.cfg.Expiry - margin)}
	if err := p.cache.Set(ctx, p.key, entry); err != nil {
		p.logger.Warn("session cache write failed", "error", err)
	}
	p.logger.Debug("session started", "partner_id", p.cfg.PartnerID, "expires_at", entry.ExpiresAt)
	return ks, nil
}

// IsSessionRejected reports whether err is the server refusing the token.
func IsSessionRejected(err error) bool {
	var apiErr *core.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case "INVALID_KS", "EXPIRED_KS", "KS_EXPIRED":
		return true
	}
	return false
}
