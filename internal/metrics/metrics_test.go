package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaclient/internal/pool"
	"mediaclient/internal/transport"
	"mediaclient/internal/upload"
)

var (
	_ transport.Observer = (*Collector)(nil)
	_ upload.Observer    = (*Collector)(nil)
	_ pool.Observer      = (*Collector)(nil)
)

func TestCollector(t *testing.T) {
	c := New()

	c.ObserveRequest(transport.KindJSON, 200, 10*time.Millisecond, nil)
	c.ObserveRequest(transport.KindJSON, 503, 10*time.Millisecond, errors.New("unavailable"))
	c.ObserveChunk(upload.StrategyParallel, 100_000, time.Second, nil)
	c.ObserveChunk(upload.StrategyParallel, 100_000, time.Second, errors.New("reset"))
	c.ObserveUpload(upload.StrategyParallel, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("json", "200", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("json", "503", "error")))
	assert.Equal(t, 100_000.0, testutil.ToFloat64(c.chunkBytes.WithLabelValues("parallel")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.chunks.WithLabelValues("parallel", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.uploads.WithLabelValues("parallel", "success")))
}

func TestPoolGaugeFollowsPool(t *testing.T) {
	c := New()
	p := pool.New(3, pool.WithObserver(c))

	require.True(t, p.TryAcquire())
	assert.Equal(t, 2.0, testutil.ToFloat64(c.poolAvailable))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.poolCapacity))

	require.NoError(t, p.Release())
	assert.Equal(t, 3.0, testutil.ToFloat64(c.poolAvailable))
}

func TestHandler(t *testing.T) {
	c := New()
	c.ObserveUpload(upload.StrategySequential, nil)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `mediaclient_uploads_total{outcome="success",strategy="sequential"} 1`))
}
