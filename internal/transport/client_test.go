package transport

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"mediaclient/internal/core"
)

func testConfig(url string) Config {
	cfg := DefaultConfig(url)
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func TestClient_Do_Success(t *testing.T) {
	var receivedBody map[string]any
	var receivedQuery string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api_v3/service/media/action/get" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type 'application/json', got '%s'", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("X-Test") != "value" {
			t.Errorf("expected header set by HeaderSetter")
		}
		receivedQuery = r.URL.RawQuery
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &receivedBody)
		_, _ = w.Write([]byte(`{"objectType":"KalturaMediaEntry","id":"0_a"}`))
	}))
	defer server.Close()

	client := New(testConfig(server.URL), func(req *http.Request) {
		req.Header.Set("X-Test", "value")
	})

	resp, err := client.Do(context.Background(), Request{
		Endpoint: Endpoint("media", "get"),
		Body:     map[string]any{"entryId": "0_a"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(resp.Body), `"0_a"`) {
		t.Errorf("unexpected body %s", resp.Body)
	}
	if receivedBody["entryId"] != "0_a" {
		t.Errorf("expected entryId '0_a', got '%v'", receivedBody["entryId"])
	}
	if receivedQuery != "format=1" {
		t.Errorf("expected format=1 query, got %q", receivedQuery)
	}
}

func TestClient_Do_RetriesOnServiceUnavailable(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(testConfig(server.URL), nil)
	_, err := client.Do(context.Background(), Request{Endpoint: Endpoint("system", "ping")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestClient_Do_NonRetryableError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"bad input"}`))
	}))
	defer server.Close()

	client := New(testConfig(server.URL), nil)
	_, err := client.Do(context.Background(), Request{Endpoint: Endpoint("system", "ping")})

	var ce *core.ClientError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ClientError, got %T", err)
	}
	if ce.Type != core.ErrorTypeTransfer || ce.StatusCode != http.StatusBadRequest {
		t.Errorf("unexpected error %+v", ce)
	}
	if ce.Message != "bad input" {
		t.Errorf("expected message 'bad input', got %q", ce.Message)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestClient_Do_Decompression(t *testing.T) {
	payload := []byte(`{"ok":true}`)

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = zw.Write(payload)
	_ = zw.Close()

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	_, _ = bw.Write(payload)
	_ = bw.Close()

	tests := []struct {
		encoding string
		body     []byte
	}{
		{encoding: "gzip", body: gz.Bytes()},
		{encoding: "br", body: br.Bytes()},
		{encoding: "", body: payload},
	}

	for _, tt := range tests {
		t.Run("encoding "+tt.encoding, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.encoding != "" {
					w.Header().Set("Content-Encoding", tt.encoding)
				}
				_, _ = w.Write(tt.body)
			}))
			defer server.Close()

			client := New(testConfig(server.URL), nil)
			resp, err := client.Do(context.Background(), Request{Endpoint: "/x"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(resp.Body, payload) {
				t.Errorf("expected %s, got %s", payload, resp.Body)
			}
		})
	}
}

func TestClient_Upload_Multipart(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if got := r.FormValue("fileName"); got != "clip.mp4" {
			t.Errorf("expected fileName clip.mp4, got %q", got)
		}
		if got := r.URL.Query().Get("resumeAt"); got != "10" {
			t.Errorf("expected resumeAt 10, got %q", got)
		}
		f, _, err := r.FormFile("fileData")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			return
		}
		content, _ := io.ReadAll(f)
		_, _ = w.Write([]byte(`{"uploadedFileSize":` + itoa(10+len(content)) + `}`))
	}))
	defer server.Close()

	client := New(testConfig(server.URL), nil)

	var lastProgress int64
	resp, err := client.Upload(context.Background(), Upload{
		Endpoint:  Endpoint("uploadToken", "upload"),
		Query:     FlattenParams(map[string]any{"resumeAt": int64(10)}),
		FileField: "fileData",
		FileName:  "clip.mp4",
		Content:   strings.NewReader("0123456789"),
		Progress:  func(sent int64) { lastProgress = sent },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != `{"uploadedFileSize":20}` {
		t.Errorf("unexpected body %s", resp.Body)
	}
	if lastProgress != 10 {
		t.Errorf("expected progress 10, got %d", lastProgress)
	}
}

func TestClient_Upload_NotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(testConfig(server.URL), nil)
	_, err := client.Upload(context.Background(), Upload{
		Endpoint:  "/up",
		FileField: "fileData",
		FileName:  "a.bin",
		Content:   strings.NewReader("abc"),
	})
	if !errors.Is(err, core.ErrTransfer) {
		t.Fatalf("expected transfer error, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", attempts.Load())
	}
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.MaxRetries = 0
	cfg.CircuitBreaker = &CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Hour}
	client := New(cfg, nil)

	for i := 0; i < 2; i++ {
		_, _ = client.Do(context.Background(), Request{Endpoint: "/x"})
	}
	if got := client.breakers.state(KindJSON); got != "open" {
		t.Fatalf("expected open circuit, got %s", got)
	}
	_, err := client.Do(context.Background(), Request{Endpoint: "/x"})
	if err == nil || !strings.Contains(err.Error(), "circuit breaker is open") {
		t.Errorf("expected circuit breaker error, got %v", err)
	}
}

func TestClient_UploadFailuresDoNotBlockCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/up") {
			_, _ = io.Copy(io.Discard, r.Body)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"objectType":"KalturaMediaEntry"}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.CircuitBreaker = &CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Hour}
	client := New(cfg, nil)

	upload := func() error {
		_, err := client.Upload(context.Background(), Upload{
			Endpoint:  "/up",
			FileField: "fileData",
			FileName:  "a.bin",
			Content:   strings.NewReader("abc"),
		})
		return err
	}
	for i := 0; i < 2; i++ {
		if err := upload(); err == nil {
			t.Fatal("expected upload failure")
		}
	}
	if got := client.breakers.state(KindUpload); got != "open" {
		t.Fatalf("expected open upload circuit, got %s", got)
	}
	if err := upload(); err == nil || !strings.Contains(err.Error(), "upload circuit breaker is open") {
		t.Errorf("expected upload circuit breaker error, got %v", err)
	}

	if got := client.breakers.state(KindJSON); got != "closed" {
		t.Fatalf("expected closed json circuit, got %s", got)
	}
	if _, err := client.Do(context.Background(), Request{Endpoint: "/api"}); err != nil {
		t.Fatalf("json call blocked by upload failures: %v", err)
	}
}

func TestBreaker_HalfOpenCycle(t *testing.T) {
	set := newBreakerSet(&CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Millisecond}, KindJSON)

	set.failure(KindJSON)
	if err := set.admit(KindJSON); err == nil {
		t.Fatal("expected open breaker to reject")
	}

	time.Sleep(5 * time.Millisecond)
	if err := set.admit(KindJSON); err != nil {
		t.Fatalf("expected trial exchange after timeout, got %v", err)
	}
	if got := set.state(KindJSON); got != "half-open" {
		t.Fatalf("expected half-open, got %s", got)
	}

	set.failure(KindJSON)
	if got := set.state(KindJSON); got != "open" {
		t.Fatalf("trial failure should reopen, got %s", got)
	}

	time.Sleep(5 * time.Millisecond)
	_ = set.admit(KindJSON)
	set.success(KindJSON)
	if got := set.state(KindJSON); got != "half-open" {
		t.Fatalf("one trial success should not close, got %s", got)
	}
	set.success(KindJSON)
	if got := set.state(KindJSON); got != "closed" {
		t.Fatalf("expected closed, got %s", got)
	}
}

func TestBreaker_DisabledAdmitsEverything(t *testing.T) {
	var set breakerSet
	for i := 0; i < 10; i++ {
		set.failure(KindUpload)
	}
	if err := set.admit(KindUpload); err != nil {
		t.Fatalf("expected nil set to admit, got %v", err)
	}
}

func TestClient_Do_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour
	client := New(cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.Do(ctx, Request{Endpoint: "/x"})
	if !errors.Is(err, core.ErrCanceled) {
		t.Fatalf("expected canceled error, got %v", err)
	}
}

func TestFlattenParams(t *testing.T) {
	values := FlattenParams(map[string]any{
		"entryId": "0_a",
		"resume":  true,
		"filter": map[string]any{
			"objectType": "KalturaMediaEntryFilter",
			"idIn":       "a,b",
		},
		"tags":  []any{map[string]any{"value": "x"}},
		"empty": []any{},
		"ratio": 0.5,
	})

	expected := map[string]string{
		"entryId":           "0_a",
		"resume":            "1",
		"filter:objectType": "KalturaMediaEntryFilter",
		"filter:idIn":       "a,b",
		"tags:0:value":      "x",
		"empty:-":           "",
		"ratio":             "0.5",
	}
	for k, v := range expected {
		if got := values.Get(k); got != v {
			t.Errorf("%s: expected %q, got %q", k, v, got)
		}
	}
}

func TestEndpoint(t *testing.T) {
	if got := Endpoint("media", "list"); got != "/api_v3/service/media/action/list" {
		t.Errorf("unexpected endpoint %s", got)
	}
	if got := Endpoint(MultiRequestService, ""); got != "/api_v3/service/multirequest" {
		t.Errorf("unexpected endpoint %s", got)
	}
	if got := EndpointURL("https://example.com/", "/a", nil); got != "https://example.com/a" {
		t.Errorf("unexpected url %s", got)
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
