// Package client is the entry point for API calls and uploads. It wires the transport, the
// session provider, the upload orchestrator and its connection pool, upload session storage
// and metrics from one configuration, and owns their lifecycle.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediaclient/config"
	"mediaclient/internal/cache"
	"mediaclient/internal/core"
	"mediaclient/internal/httpclient"
	"mediaclient/internal/metrics"
	"mediaclient/internal/pool"
	"mediaclient/internal/request"
	"mediaclient/internal/session"
	"mediaclient/internal/transport"
	"mediaclient/internal/upload"
	"mediaclient/internal/uploadstate"
)

// Client sends API calls and uploads. It is safe for concurrent use.
// The caller must call Close to release resources.
type Client struct {
	cfg       config.ClientConfig
	transport *transport.Client
	provider  session.Provider
	uploader  *upload.Orchestrator
	pool      *pool.Pool
	metrics   *metrics.Collector
	cache     cache.Cache
	sessions  *uploadstate.Result
	logger    *slog.Logger
	sessionID string

	closeMu sync.Mutex
	closed  bool
}

type options struct {
	httpClient *http.Client
	provider   session.Provider
	logger     *slog.Logger
	metrics    *metrics.Collector
	pool       *pool.Pool
	cache      cache.Cache
	store      uploadstate.Store
}

// Option customizes a Client.
type Option func(*options)

// WithHTTPClient replaces the HTTP client built from the configuration.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithSessionProvider replaces the session provider derived from the configuration.
func WithSessionProvider(p session.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records metrics into m, even when metrics are disabled in the configuration.
func WithMetrics(m *metrics.Collector) Option {
	return func(o *options) { o.metrics = m }
}

// WithPool shares an upload connection pool between clients.
func WithPool(p *pool.Pool) Option {
	return func(o *options) { o.pool = p }
}

// WithCache sets the session token cache. The client does not close a supplied cache.
func WithCache(c cache.Cache) Option {
	return func(o *options) { o.cache = c }
}

// WithUploadStore sets the upload session store. The client does not close a supplied store.
func WithUploadStore(s uploadstate.Store) Option {
	return func(o *options) { o.store = s }
}

// New creates a client from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	c := &Client{
		cfg:       cfg.Client,
		logger:    o.logger,
		metrics:   o.metrics,
		sessionID: uuid.NewString(),
	}
	if c.metrics == nil && cfg.Metrics.Enabled {
		c.metrics = metrics.New()
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = newHTTPClient(cfg)
	}
	tcfg := transport.DefaultConfig(cfg.Client.ServiceURL)
	tcfg.ClientTag = cfg.Client.ClientTag
	tcfg.MaxRetries = cfg.Client.MaxRetries
	c.transport = transport.NewWithHTTPClient(httpClient, tcfg, nil)
	if c.metrics != nil {
		c.transport.SetObserver(c.metrics)
	}

	if !cfg.Client.ParallelUploadsDisabled {
		c.pool = o.pool
		if c.pool == nil {
			var popts []pool.Option
			if c.metrics != nil {
				popts = append(popts, pool.WithObserver(c.metrics))
			}
			c.pool = pool.New(cfg.Client.MaxConcurrentUploadConnections, popts...)
		}
	}

	if err := c.initSession(cfg, o); err != nil {
		return nil, err
	}

	store := o.store
	if store == nil && cfg.Storage.Enabled {
		result, err := uploadstate.New(ctx, cfg)
		if err != nil {
			closeErr := c.closeOwned()
			if closeErr != nil {
				return nil, fmt.Errorf("failed to initialize upload sessions: %w (also: close error: %v)", err, closeErr)
			}
			return nil, fmt.Errorf("failed to initialize upload sessions: %w", err)
		}
		c.sessions = result
		store = result.Store
	}

	uopts := []upload.Option{
		upload.WithBuildOptions(c.buildOptions),
		upload.WithLogger(c.logger),
	}
	if store != nil {
		uopts = append(uopts, upload.WithSessionStore(store))
	}
	if c.metrics != nil {
		uopts = append(uopts, upload.WithObserver(c.metrics))
	}
	c.uploader = upload.New(upload.Config{
		ChunkFileDisabled:       cfg.Client.ChunkFileDisabled,
		ParallelUploadsDisabled: cfg.Client.ParallelUploadsDisabled,
		ChunkFileSize:           cfg.Client.ChunkFileBytes(),
	}, c.transport, c.pool, uopts...)

	return c, nil
}

func newHTTPClient(cfg *config.Config) *http.Client {
	hc := httpclient.DefaultConfig()
	if cfg.HTTP.Timeout > 0 {
		hc.Timeout = time.Duration(cfg.HTTP.Timeout) * time.Second
	}
	if cfg.HTTP.ResponseHeaderTimeout > 0 {
		hc.ResponseHeaderTimeout = time.Duration(cfg.HTTP.ResponseHeaderTimeout) * time.Second
	}
	if cfg.Client.ClientTag != "" {
		hc.UserAgent = httpclient.DefaultUserAgent + " (" + cfg.Client.ClientTag + ")"
	}
	// keep every admitted chunk connection alive between chunks
	hc.MaxIdleConnsPerHost = max(hc.MaxIdleConnsPerHost, cfg.Client.MaxConcurrentUploadConnections)
	return httpclient.NewHTTPClient(&hc)
}

// initSession picks the session provider: an explicit one, a fixed token, or sessions started
// with the partner secret and kept in the configured cache.
func (c *Client) initSession(cfg *config.Config, o options) error {
	switch {
	case o.provider != nil:
		c.provider = o.provider
		return nil
	case cfg.Client.KS != "" || cfg.Client.Secret == "":
		c.provider = session.Static(cfg.Client.KS)
		return nil
	}

	tokens := o.cache
	if tokens == nil {
		var err error
		tokens, err = cache.New(cfg.Cache)
		if err != nil {
			return fmt.Errorf("failed to initialize session cache: %w", err)
		}
		c.cache = tokens
	}

	provider, err := session.NewCachedProvider(session.Config{
		ServiceURL: cfg.Client.ServiceURL,
		PartnerID:  cfg.Client.PartnerID,
		Secret:     cfg.Client.Secret,
		UserID:     cfg.Client.UserID,
		Type:       session.TypeAdmin,
		Expiry:     time.Duration(cfg.Client.SessionTTL) * time.Second,
	}, c, tokens, c.logger)
	if err != nil {
		return errors.Join(err, c.closeOwned())
	}
	c.provider = provider
	return nil
}

// buildOptions resolves the settings every call is serialized with.
func (c *Client) buildOptions(ctx context.Context) (request.BuildOptions, error) {
	ks, err := c.provider.KS(ctx)
	if err != nil {
		return request.BuildOptions{}, err
	}
	opts := c.baseOptions(ctx)
	if ks != "" {
		opts.Defaults = append(opts.Defaults, request.KS(ks))
	}
	return opts, nil
}

func (c *Client) baseOptions(ctx context.Context) request.BuildOptions {
	opts := request.BuildOptions{
		APIVersion:       c.cfg.APIVersion,
		ClientTag:        c.cfg.ClientTag,
		AvoidQueryString: c.cfg.AvoidQueryString,
	}
	if c.cfg.PartnerID > 0 {
		opts.Defaults = append(opts.Defaults, request.PartnerID(int(c.cfg.PartnerID)))
	}
	sessionID := core.GetSessionID(ctx)
	if sessionID == "" {
		sessionID = c.sessionID
	}
	opts.Defaults = append(opts.Defaults, request.SessionID(sessionID))
	return opts
}

// Do sends one request. A call rejected for its session token is retried once with a fresh
// session when the provider can start one.
func (c *Client) Do(ctx context.Context, req *request.Request) *request.Response {
	opts, err := c.buildOptions(ctx)
	if err != nil {
		return req.Fail(err)
	}
	inv, canRenew := c.provider.(session.Invalidator)
	if !canRenew {
		return c.send(ctx, req, opts)
	}

	resp := c.sendQuiet(ctx, req, opts)
	if resp.Err == nil || !session.IsSessionRejected(resp.Err) {
		return req.Complete(resp)
	}
	c.logger.Info("session rejected, starting a new one", "service", req.Service(), "action", req.Action())
	if err := inv.Invalidate(ctx); err != nil {
		c.logger.Warn("failed to invalidate session", "error", err)
	}
	if opts, err = c.buildOptions(ctx); err != nil {
		return req.Fail(err)
	}
	return c.send(ctx, req, opts)
}

// Execute sends one request without a session token. It starts sessions for the cached
// session provider.
func (c *Client) Execute(ctx context.Context, req *request.Request) *request.Response {
	return c.send(ctx, req, c.baseOptions(ctx))
}

func (c *Client) send(ctx context.Context, req *request.Request, opts request.BuildOptions) *request.Response {
	raw, err := c.roundTrip(ctx, req, opts)
	if err != nil {
		return req.Fail(err)
	}
	return req.HandleResponse(raw)
}

// sendQuiet sends req without running its completion callback, so the call can be retried.
func (c *Client) sendQuiet(ctx context.Context, req *request.Request, opts request.BuildOptions) *request.Response {
	raw, err := c.roundTrip(ctx, req, opts)
	if err != nil {
		return &request.Response{Err: err}
	}
	return req.ParseRaw(raw)
}

func (c *Client) roundTrip(ctx context.Context, req *request.Request, opts request.BuildOptions) ([]byte, error) {
	payload, err := req.Build(opts)
	if err != nil {
		return nil, err
	}
	resp, err := c.transport.Do(ctx, transport.Request{
		Endpoint: payload.Endpoint,
		Query:    payload.Query,
		Body:     payload.Body,
		Headers:  payload.Headers,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// DoMulti sends a batch. Every member gets its own response, in request order.
func (c *Client) DoMulti(ctx context.Context, m *request.Multi) *request.MultiResponse {
	opts, err := c.buildOptions(ctx)
	if err != nil {
		return m.Fail(err)
	}
	payload, err := m.Build(opts)
	if err != nil {
		return m.Fail(err)
	}
	resp, err := c.transport.Do(ctx, transport.Request{
		Endpoint: payload.Endpoint,
		Query:    payload.Query,
		Body:     payload.Body,
		Headers:  payload.Headers,
	})
	if err != nil {
		return m.Fail(err)
	}
	result := m.HandleResponse(resp.Body)
	if result.ExecutionTime > 0 {
		c.logger.Debug("multi-request executed",
			"requests", m.Len(),
			"execution_time", result.ExecutionTime,
		)
	}
	return result
}

// Transmit starts an upload and returns immediately.
func (c *Client) Transmit(ctx context.Context, req *request.UploadRequest) *upload.Task {
	return c.uploader.Transmit(ctx, req)
}

// Upload runs an upload to completion.
func (c *Client) Upload(ctx context.Context, req *request.UploadRequest) (any, error) {
	return c.uploader.Upload(ctx, req)
}

// Pool returns the upload connection pool, or nil when parallel uploads are disabled.
func (c *Client) Pool() *pool.Pool {
	return c.pool
}

// Metrics returns the metrics collector, or nil when metrics are disabled.
func (c *Client) Metrics() *metrics.Collector {
	return c.metrics
}

// ChunkSize returns the effective upload chunk size.
func (c *Client) ChunkSize() int64 {
	return c.uploader.ChunkSize()
}

// Close releases the resources the client created. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.closeOwned()
}

func (c *Client) closeOwned() error {
	var errs []error
	if c.sessions != nil {
		if err := c.sessions.Close(); err != nil {
			errs = append(errs, fmt.Errorf("upload sessions close: %w", err))
		}
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("session cache close: %w", err))
		}
	}
	return errors.Join(errs...)
}
