// Package metrics exports Prometheus metrics for API calls, uploads and the upload
// connection pool.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records client events. It implements the observer interfaces of the transport,
// the upload orchestrator and the connection pool.
type Collector struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	chunks          *prometheus.CounterVec
	chunkBytes      *prometheus.CounterVec
	chunkDuration   *prometheus.HistogramVec
	uploads         *prometheus.CounterVec
	poolAvailable   prometheus.Gauge
	poolCapacity    prometheus.Gauge
}

// New creates a collector with its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mediaclient_requests_total",
			Help: "HTTP exchanges with the API by kind and status code",
		}, []string{"kind", "status", "outcome"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mediaclient_request_duration_seconds",
			Help:    "Duration of HTTP exchanges with the API",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		chunks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mediaclient_upload_chunks_total",
			Help: "Upload chunk transfers by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		chunkBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mediaclient_upload_bytes_total",
			Help: "Bytes sent in successful upload chunks",
		}, []string{"strategy"}),
		chunkDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mediaclient_upload_chunk_duration_seconds",
			Help:    "Duration of upload chunk transfers",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"strategy"}),
		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mediaclient_uploads_total",
			Help: "Completed uploads by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		poolAvailable: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mediaclient_upload_pool_available",
			Help: "Free admission tokens in the upload connection pool",
		}),
		poolCapacity: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mediaclient_upload_pool_capacity",
			Help: "Capacity of the upload connection pool",
		}),
	}
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRequest implements transport.Observer.
func (c *Collector) ObserveRequest(kind string, statusCode int, duration time.Duration, err error) {
	c.requests.WithLabelValues(kind, strconv.Itoa(statusCode), outcome(err)).Inc()
	c.requestDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveChunk implements upload.Observer.
func (c *Collector) ObserveChunk(strategy string, bytes int64, duration time.Duration, err error) {
	c.chunks.WithLabelValues(strategy, outcome(err)).Inc()
	c.chunkDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	if err == nil {
		c.chunkBytes.WithLabelValues(strategy).Add(float64(bytes))
	}
}

// ObserveUpload implements upload.Observer.
func (c *Collector) ObserveUpload(strategy string, err error) {
	c.uploads.WithLabelValues(strategy, outcome(err)).Inc()
}

// PoolAvailable implements pool.Observer.
func (c *Collector) PoolAvailable(available, capacity int) {
	c.poolAvailable.Set(float64(available))
	c.poolCapacity.Set(float64(capacity))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
