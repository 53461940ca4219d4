// Package upload transmits files to upload actions, whole or in chunks.
//
// A chunked upload runs either sequentially, resuming from the offset the server reports
// after every chunk, or in parallel, with every chunk admitted by a shared connection pool.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"mediaclient/internal/core"
	"mediaclient/internal/object"
	"mediaclient/internal/pool"
	"mediaclient/internal/request"
	"mediaclient/internal/transport"
	"mediaclient/internal/uploadstate"
)

const (
	// DefaultChunkSize is used when no chunk size is configured.
	DefaultChunkSize int64 = 5_000_000
	// MinChunkSize is the smallest chunk the server accepts.
	MinChunkSize int64 = 100_000
)

// Strategy names, as reported to observers.
const (
	StrategySequential = "sequential"
	StrategyParallel   = "parallel"
)

// Config holds the client-wide upload settings.
type Config struct {
	ChunkFileDisabled       bool
	ParallelUploadsDisabled bool
	// ChunkFileSize is the requested chunk size in bytes; see ResolveChunkSize.
	ChunkFileSize int64
}

// Sender performs one multipart transfer.
type Sender interface {
	Upload(ctx context.Context, up transport.Upload) (*transport.Response, error)
}

// Observer receives upload events, e.g. for metrics.
type Observer interface {
	ObserveChunk(strategy string, bytes int64, duration time.Duration, err error)
	ObserveUpload(strategy string, err error)
}

// BuildOptionsFunc resolves the serialization options of an upload, such as the session token.
type BuildOptionsFunc func(ctx context.Context) (request.BuildOptions, error)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBuildOptions sets how request options are resolved for each upload.
func WithBuildOptions(fn BuildOptionsFunc) Option {
	return func(o *Orchestrator) { o.buildOptions = fn }
}

// WithSessionStore records upload progress so sequential uploads can resume.
func WithSessionStore(store uploadstate.Store) Option {
	return func(o *Orchestrator) { o.sessions = store }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithObserver sets the event observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// Orchestrator runs uploads. It is safe for concurrent use.
type Orchestrator struct {
	cfg          Config
	sender       Sender
	pool         *pool.Pool
	buildOptions BuildOptionsFunc
	sessions     uploadstate.Store
	logger       *slog.Logger
	observer     Observer
	chunkSize    int64
}

// New creates an orchestrator. p may be nil when parallel uploads are disabled; uploads then
// run sequentially.
func New(cfg Config, sender Sender, p *pool.Pool, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:    cfg,
		sender: sender,
		pool:   p,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.buildOptions == nil {
		o.buildOptions = func(context.Context) (request.BuildOptions, error) {
			return request.BuildOptions{}, nil
		}
	}
	o.chunkSize = ResolveChunkSize(cfg.ChunkFileSize, o.logger)
	return o
}

// ChunkSize returns the effective chunk size.
func (o *Orchestrator) ChunkSize() int64 {
	return o.chunkSize
}

// ResolveChunkSize returns requested when it is at least MinChunkSize, MinChunkSize for
// smaller positive values and DefaultChunkSize otherwise.
func ResolveChunkSize(requested int64, logger *slog.Logger) int64 {
	switch {
	case requested >= MinChunkSize:
		return requested
	case requested > 0:
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("chunk file size below minimum, using minimum",
			"requested", requested,
			"minimum", MinChunkSize,
		)
		return MinChunkSize
	default:
		return DefaultChunkSize
	}
}

// Transmit starts the upload and returns immediately. Cancel ctx or call Task.Cancel to abort.
func (o *Orchestrator) Transmit(ctx context.Context, req *request.UploadRequest) *Task {
	ctx, cancel := context.WithCancel(ctx)
	task := newTask(cancel)
	go func() {
		result, err := o.run(ctx, req)
		task.finish(result, err)
	}()
	return task
}

// Upload runs the upload to completion.
func (o *Orchestrator) Upload(ctx context.Context, req *request.UploadRequest) (any, error) {
	return o.Transmit(ctx, req).Wait(ctx)
}

// transfer is the per-upload context shared by both strategies.
type transfer struct {
	req      *request.UploadRequest
	file     object.File
	opts     request.BuildOptions
	size     int64
	chunked  bool
	progress request.ProgressFunc
	strategy string

	sessionMu sync.Mutex
	session   *uploadstate.Session
}

func (o *Orchestrator) run(ctx context.Context, req *request.UploadRequest) (any, error) {
	file, err := req.File()
	if err != nil {
		return nil, req.Fail(err).Err
	}
	opts, err := o.buildOptions(ctx)
	if err != nil {
		return nil, req.Fail(err).Err
	}

	t := &transfer{
		req:      req,
		file:     file,
		opts:     opts,
		size:     file.Size(),
		chunked:  o.chunkingEnabled(req, file),
		progress: req.Progress(),
		strategy: StrategySequential,
	}
	if o.parallel() {
		t.strategy = StrategyParallel
	}
	t.session = o.loadSession(ctx, t)

	var raw []byte
	if t.strategy == StrategyParallel {
		raw, err = o.runParallel(ctx, t)
	} else {
		raw, err = o.runSequential(ctx, t)
	}

	var resp *request.Response
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, core.ErrCanceled) {
			err = core.NewCanceledError(ctx.Err())
		}
		resp = req.Fail(err)
	} else {
		resp = req.HandleUploadResponse(raw)
	}

	o.finishSession(t, resp.Err)
	if o.observer != nil {
		o.observer.ObserveUpload(t.strategy, resp.Err)
	}
	if resp.Err != nil {
		o.logger.Debug("upload failed",
			"service", req.Service(),
			"action", req.Action(),
			"strategy", t.strategy,
			"error", resp.Err,
		)
	}
	return resp.Result, resp.Err
}

func (o *Orchestrator) parallel() bool {
	return !o.cfg.ParallelUploadsDisabled && o.pool != nil
}

// chunkingEnabled requires the client to allow chunking, the file to be sliceable and the
// action to accept chunks.
func (o *Orchestrator) chunkingEnabled(req *request.UploadRequest, file object.File) bool {
	return !o.cfg.ChunkFileDisabled && request.Sliceable(file) && req.SupportsChunkUpload()
}

// sendChunk transfers length bytes starting at offset. A nil chunk sends the whole file.
func (o *Orchestrator) sendChunk(ctx context.Context, t *transfer, chunk *request.ChunkParams, offset, length int64, onProgress func(sent int64)) ([]byte, error) {
	payload, err := t.req.BuildUpload(t.opts, chunk)
	if err != nil {
		return nil, err
	}

	var content io.Reader = payload.File
	if ra, ok := payload.File.(io.ReaderAt); ok && request.Sliceable(payload.File) {
		content = io.NewSectionReader(ra, offset, length)
	}

	start := time.Now()
	resp, err := o.sender.Upload(ctx, transport.Upload{
		Endpoint:  payload.Endpoint,
		Query:     payload.Query,
		FileField: payload.FileField,
		FileName:  payload.FileName,
		Content:   content,
		Headers:   payload.Headers,
		Progress:  onProgress,
	})
	if o.observer != nil {
		o.observer.ObserveChunk(t.strategy, length, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// report invokes the progress callback, which must never break the upload.
func (o *Orchestrator) report(t *transfer, loaded int64) {
	if t.progress == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("upload progress callback panicked", "panic", rec)
		}
	}()
	t.progress(loaded, t.size)
}

func (o *Orchestrator) loadSession(ctx context.Context, t *transfer) *uploadstate.Session {
	key := t.req.ResumeKey()
	if o.sessions == nil || key == "" || !t.chunked {
		return nil
	}
	sess, err := o.sessions.Get(ctx, key)
	switch {
	case err == nil && sess.Status != uploadstate.StatusCompleted && sess.FileSize == t.size && sess.ChunkSize == o.chunkSize:
		return sess
	case err != nil && !errors.Is(err, uploadstate.ErrNotFound):
		o.logger.Warn("failed to load upload session", "token", key, "error", err)
	}
	return uploadstate.NewSession(key, t.file.Name(), t.size, o.chunkSize)
}

// saveSession persists progress; store failures never fail the upload.
func (o *Orchestrator) saveSession(ctx context.Context, t *transfer, update func(*uploadstate.Session)) {
	t.sessionMu.Lock()
	defer t.sessionMu.Unlock()
	if t.session == nil {
		return
	}
	update(t.session)
	t.session.UpdatedAt = time.Now().UTC()
	if err := o.sessions.Save(ctx, t.session); err != nil {
		o.logger.Warn("failed to save upload session", "token", t.session.TokenID, "error", err)
	}
}

func (o *Orchestrator) finishSession(t *transfer, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o.saveSession(ctx, t, func(s *uploadstate.Session) {
		if err != nil {
			s.Status = uploadstate.StatusFailed
			s.Error = err.Error()
			return
		}
		s.Status = uploadstate.StatusCompleted
		s.ResumeAt = t.size
		s.Error = ""
	})
}

func protocolError(format string, args ...any) error {
	return core.NewProtocolError(fmt.Sprintf(format, args...))
}
