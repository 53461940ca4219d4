// Package transport provides the HTTP transport for the media API with:
// - JSON request marshaling and response decompression (gzip, deflate, br)
// - Retries with exponential backoff for JSON calls
// - Multipart file uploads that are never retried
// - Circuit breaking
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"mediaclient/internal/core"
	"mediaclient/internal/httpclient"
)

// Config holds configuration for the transport
type Config struct {
	// ServiceURL is the API base URL, e.g. https://www.kaltura.com
	ServiceURL string

	// ClientTag identifies this client to the server
	ClientTag string

	// Retry configuration for JSON calls
	MaxRetries     int           // Maximum number of retry attempts (default: 3)
	InitialBackoff time.Duration // Initial backoff duration (default: 1s)
	MaxBackoff     time.Duration // Maximum backoff duration (default: 30s)
	BackoffFactor  float64       // Backoff multiplier (default: 2.0)

	// Circuit breaker configuration
	CircuitBreaker *CircuitBreakerConfig
}

// CircuitBreakerConfig holds circuit breaker settings
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of failures before opening the circuit
	FailureThreshold int
	// SuccessThreshold is the number of successes needed to close an open circuit
	SuccessThreshold int
	// Timeout is how long to wait before attempting to close an open circuit
	Timeout time.Duration
}

// DefaultConfig returns default transport configuration
func DefaultConfig(serviceURL string) Config {
	return Config{
		ServiceURL:     serviceURL,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		CircuitBreaker: &CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
		},
	}
}

// HeaderSetter is a function that sets headers on an HTTP request
type HeaderSetter func(req *http.Request)

// Observer receives the outcome of every HTTP exchange.
type Observer interface {
	ObserveRequest(kind string, statusCode int, duration time.Duration, err error)
}

// Request kinds reported to the Observer.
const (
	KindJSON   = "json"
	KindUpload = "upload"
)

// Client sends API calls and uploads
type Client struct {
	httpClient     *http.Client
	config         Config
	headerSetter   HeaderSetter
	breakers       breakerSet
	observer       Observer
}

// New creates a new transport with the default HTTP client
func New(config Config, headerSetter HeaderSetter) *Client {
	return NewWithHTTPClient(httpclient.NewDefaultHTTPClient(), config, headerSetter)
}

// NewWithHTTPClient creates a new transport with a custom HTTP client
func NewWithHTTPClient(httpClient *http.Client, config Config, headerSetter HeaderSetter) *Client {
	c := &Client{
		httpClient:   httpClient,
		config:       config,
		headerSetter: headerSetter,
		breakers:     newBreakerSet(config.CircuitBreaker, KindJSON, KindUpload),
	}
	return c
}

// SetObserver registers an observer for request outcomes
func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

// ServiceURL returns the current base URL
func (c *Client) ServiceURL() string {
	return c.config.ServiceURL
}

// ClientTag returns the configured client tag
func (c *Client) ClientTag() string {
	return c.config.ClientTag
}

// Request is a JSON API call
type Request struct {
	Endpoint string
	Query    url.Values
	Body     any // JSON marshaled if not nil
	Headers  map[string]string
}

// Response is a decoded HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Do executes a JSON POST with retries and circuit breaking, returning the decompressed body
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := c.do(ctx, req)
	c.observe(KindJSON, resp, time.Since(start), err)
	return resp, err
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	if err := c.breakers.admit(KindJSON); err != nil {
		return nil, err
	}

	var body []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewInvalidRequestError("failed to marshal request", err)
		}
		body = b
	}

	var lastErr error
	maxAttempts := c.config.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return nil, core.NewCanceledError(ctx.Err())
			case <-time.After(backoff):
			}
		}

		httpReq, err := c.newRequest(ctx, req.Endpoint, req.Query, bytes.NewReader(body), req.Headers)
		if err != nil {
			return nil, err
		}
		if req.Body != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.send(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, core.NewCanceledError(ctx.Err())
			}
			lastErr = err
			c.breakers.failure(KindJSON)
			continue
		}

		if isRetryable(resp.StatusCode) {
			c.breakers.failure(KindJSON)
			lastErr = core.ParseTransportError(resp.StatusCode, resp.Body, nil)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			if resp.StatusCode >= 500 {
				c.breakers.failure(KindJSON)
			}
			return nil, core.ParseTransportError(resp.StatusCode, resp.Body, nil)
		}

		c.breakers.success(KindJSON)
		return resp, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, core.NewTransferError(http.StatusBadGateway, "request failed after retries", nil)
}

// Upload is a multipart file transfer
type Upload struct {
	Endpoint string
	Query    url.Values
	// FileField is the multipart part name carrying the content
	FileField string
	FileName  string
	Content   io.Reader
	Headers   map[string]string
	// Progress receives the number of content bytes written so far
	Progress func(sent int64)
}

// Upload posts a multipart form with fields fileName and FileField.
// Uploads are never retried: a partially consumed chunk cannot be replayed safely.
func (c *Client) Upload(ctx context.Context, up Upload) (*Response, error) {
	start := time.Now()
	resp, err := c.upload(ctx, up)
	c.observe(KindUpload, resp, time.Since(start), err)
	return resp, err
}

func (c *Client) upload(ctx context.Context, up Upload) (*Response, error) {
	if err := c.breakers.admit(KindUpload); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeMultipart(mw, up))
	}()

	httpReq, err := c.newRequest(ctx, up.Endpoint, up.Query, pr, up.Headers)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.send(httpReq)
	_ = pr.Close()
	if err != nil {
		if ctx.Err() != nil {
			return nil, core.NewCanceledError(ctx.Err())
		}
		c.breakers.failure(KindUpload)
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			c.breakers.failure(KindUpload)
		}
		msg := string(bytes.TrimSpace(resp.Body))
		if msg == "" {
			msg = "failed to upload file"
		}
		return nil, core.NewTransferError(resp.StatusCode, msg, nil)
	}

	c.breakers.success(KindUpload)
	return resp, nil
}

func writeMultipart(mw *multipart.Writer, up Upload) error {
	if err := mw.WriteField("fileName", up.FileName); err != nil {
		return err
	}
	part, err := mw.CreateFormFile(up.FileField, up.FileName)
	if err != nil {
		return err
	}
	var dst io.Writer = part
	if up.Progress != nil {
		dst = &progressWriter{w: part, report: up.Progress}
	}
	if _, err := io.Copy(dst, up.Content); err != nil {
		return err
	}
	return mw.Close()
}

type progressWriter struct {
	w      io.Writer
	sent   int64
	report func(int64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.sent += int64(n)
	if n > 0 {
		p.report(p.sent)
	}
	return n, err
}

// send executes a single HTTP exchange without retries and reads the decompressed body
func (c *Client) send(httpReq *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewTransferError(http.StatusBadGateway, "failed to send request: "+err.Error(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewTransferError(http.StatusBadGateway, "failed to read response: "+err.Error(), err)
	}
	body, err := decompress(raw, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, core.NewResponseParseError(fmt.Sprintf("failed to decode %s response", resp.Header.Get("Content-Encoding")), err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// newRequest creates a POST request against the service URL
func (c *Client) newRequest(ctx context.Context, endpoint string, query url.Values, body io.Reader, headers map[string]string) (*http.Request, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("format", fmt.Sprint(FormatJSON))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, EndpointURL(c.config.ServiceURL, endpoint, q), body)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to create request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")

	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}
	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}
	return httpReq, nil
}

func (c *Client) observe(kind string, resp *Response, d time.Duration, err error) {
	if c.observer == nil {
		return
	}
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	var ce *core.ClientError
	if status == 0 && errors.As(err, &ce) {
		status = ce.StatusCode
	}
	c.observer.ObserveRequest(kind, status, d, err)
}

// calculateBackoff calculates the backoff duration for a given attempt
func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := float64(c.config.InitialBackoff) * math.Pow(c.config.BackoffFactor, float64(attempt-1))
	if backoff > float64(c.config.MaxBackoff) {
		backoff = float64(c.config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// isRetryable returns true if the status code indicates a retryable error
func isRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusGatewayTimeout
}
