// Package server implements a fake media API for local development and end-to-end tests.
// It serves single calls, multi-requests with result placeholders, chunked uploads and
// session starts from in-memory state.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultBodySizeLimit bounds request bodies, chunks included.
const DefaultBodySizeLimit int64 = 512 << 20

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
	state   *State
}

// Config holds server configuration options
type Config struct {
	PartnerID       int64         // Partner the fake API serves
	Secret          string        // Optional: when set, calls need a session started with it
	NestedResponses bool          // Wrap responses in {result: ...} / {error: ...} envelopes
	UploadDelay     time.Duration // Delay added to every upload transfer
	MetricsEnabled  bool          // Whether to expose Prometheus metrics endpoint
	MetricsEndpoint string        // HTTP path for metrics endpoint (default: /metrics)
	BodySizeLimit   int64         // Max request body size in bytes (default: 512MB)
}

type serverMetrics struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec
}

func newServerMetrics() *serverMetrics {
	reg := prometheus.NewRegistry()
	return &serverMetrics{
		registry: reg,
		calls: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "mockapi_calls_total",
			Help: "Calls served by the fake API by service, action and outcome",
		}, []string{"service", "action", "outcome"}),
	}
}

func (m *serverMetrics) observe(service, action string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "exception"
	}
	m.calls.WithLabelValues(service, action, outcome).Inc()
}

// New creates a new HTTP server
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	state := NewState(cfg.PartnerID)
	metrics := newServerMetrics()
	handler := NewHandler(*cfg, state, metrics)

	// Global middleware stack (order matters)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("request", "method", v.Method, "path", v.URIPath, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	bodySizeLimit := DefaultBodySizeLimit
	if cfg.BodySizeLimit > 0 {
		bodySizeLimit = cfg.BodySizeLimit
	}
	e.Use(middleware.BodyLimit(strconv.FormatInt(bodySizeLimit, 10)))

	// Public routes
	e.GET("/health", handler.Health)
	if cfg.MetricsEnabled {
		metricsPath := "/metrics"
		if cfg.MetricsEndpoint != "" {
			// Normalize path to prevent traversal attacks
			metricsPath = path.Clean(cfg.MetricsEndpoint)
		}
		e.GET(metricsPath, echo.WrapHandler(promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{})))
	}

	// API routes
	e.POST("/api_v3/service/multirequest", handler.MultiRequest)
	e.POST("/api_v3/service/:service/action/:action", handler.Action)

	return &Server{
		echo:    e,
		handler: handler,
		state:   state,
	}
}

// State returns the server's data.
func (s *Server) State() *State {
	return s.state
}

// MaxConcurrentUploads returns the highest number of uploads handled at the same time.
func (s *Server) MaxConcurrentUploads() int64 {
	return s.handler.MaxConcurrentUploads()
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
