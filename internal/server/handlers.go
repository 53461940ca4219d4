package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// Handler holds the HTTP handlers of the fake API
type Handler struct {
	cfg     Config
	state   *State
	metrics *serverMetrics

	uploadsInFlight atomic.Int64
	maxUploads      atomic.Int64
}

// NewHandler creates a handler serving state
func NewHandler(cfg Config, state *State, m *serverMetrics) *Handler {
	return &Handler{cfg: cfg, state: state, metrics: m}
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Action handles POST /api_v3/service/:service/action/:action
func (h *Handler) Action(c echo.Context) error {
	service, action := c.Param("service"), c.Param("action")
	if service == "uploadToken" && action == "upload" {
		return h.Upload(c)
	}

	p, err := h.requestParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"message": "invalid request body: " + err.Error()})
	}
	start := time.Now()
	result, err := h.call(service, action, p)
	h.metrics.observe(service, action, err)
	return h.respond(c, result, err, time.Since(start))
}

// MultiRequest handles POST /api_v3/service/multirequest
func (h *Handler) MultiRequest(c echo.Context) error {
	p, err := h.requestParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"message": "invalid request body: " + err.Error()})
	}

	start := time.Now()
	var results []any
	for i := 0; ; i++ {
		sub, ok := p[strconv.Itoa(i)].(map[string]any)
		if !ok {
			break
		}
		call := params(resolvePlaceholders(sub, results).(map[string]any))
		if _, ok := call["ks"]; !ok && p["ks"] != nil {
			call["ks"] = p["ks"]
		}
		service, action := call.str("service"), call.str("action")
		result, err := h.call(service, action, call)
		h.metrics.observe(service, action, err)
		results = append(results, payload(result, err))
	}
	if results == nil {
		results = []any{}
	}
	return h.respond(c, results, nil, time.Since(start))
}

// Upload handles multipart uploadToken.upload calls; chunk control parameters travel in the
// query string.
func (h *Handler) Upload(c echo.Context) error {
	n := h.uploadsInFlight.Add(1)
	defer h.uploadsInFlight.Add(-1)
	for {
		cur := h.maxUploads.Load()
		if n <= cur || h.maxUploads.CompareAndSwap(cur, n) {
			break
		}
	}
	if h.cfg.UploadDelay > 0 {
		time.Sleep(h.cfg.UploadDelay)
	}

	p := params{}
	for k, v := range c.QueryParams() {
		p[k] = v[0]
	}
	start := time.Now()
	result, err := h.upload(c, p)
	h.metrics.observe("uploadToken", "upload", err)
	return h.respond(c, result, err, time.Since(start))
}

func (h *Handler) upload(c echo.Context, p params) (any, error) {
	if err := h.authorize("uploadToken", "upload", p); err != nil {
		return nil, err
	}
	fh, err := c.FormFile("fileData")
	if err != nil {
		return nil, apiException("UPLOAD_ERROR", "Missing file data")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	offset, _ := p.int("resumeAt")
	final := p.bool("finalChunk")
	if _, chunked := p["finalChunk"]; !chunked {
		final = true
	}
	return h.state.writeChunk(p.str("uploadTokenId"), data, offset, final)
}

// MaxConcurrentUploads returns the highest number of uploads handled at the same time.
func (h *Handler) MaxConcurrentUploads() int64 {
	return h.maxUploads.Load()
}

func (h *Handler) requestParams(c echo.Context) (params, error) {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, err
	}
	p, err := decodeParams(raw)
	if err != nil {
		return nil, err
	}
	for k, v := range c.QueryParams() {
		if _, ok := p[k]; !ok {
			p[k] = v[0]
		}
	}
	return p, nil
}

func (h *Handler) respond(c echo.Context, result any, err error, elapsed time.Duration) error {
	var apiErr *apiError
	if err != nil && !errors.As(err, &apiErr) {
		slog.Error("fake api internal error", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{"message": "an unexpected error occurred"})
	}
	if !h.cfg.NestedResponses {
		return c.JSON(http.StatusOK, payload(result, err))
	}
	body := map[string]any{"executionTime": elapsed.Seconds()}
	if apiErr != nil {
		body["error"] = apiErr.payload()
	} else {
		body["result"] = result
	}
	return c.JSON(http.StatusOK, body)
}

// payload is the wire value of a call outcome.
func payload(result any, err error) any {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.payload()
	}
	if err != nil {
		return apiException("INTERNAL_SERVER_ERROR", err.Error()).payload()
	}
	return result
}

var placeholder = regexp.MustCompile(`^\{(\d+):result(?::(.*))?\}$`)

// resolvePlaceholders replaces {N:result[:path]} references with values from the results of
// earlier requests of the batch.
func resolvePlaceholders(v any, results []any) any {
	switch t := v.(type) {
	case string:
		m := placeholder.FindStringSubmatch(t)
		if m == nil {
			return t
		}
		n, _ := strconv.Atoi(m[1])
		if n < 1 || n > len(results) {
			return t
		}
		value := results[n-1]
		if m[2] != "" {
			for _, key := range strings.Split(m[2], ":") {
				obj, ok := value.(map[string]any)
				if !ok {
					return t
				}
				value = obj[key]
			}
		}
		return value
	case map[string]any:
		for k, item := range t {
			t[k] = resolvePlaceholders(item, results)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = resolvePlaceholders(item, results)
		}
		return t
	}
	return v
}
