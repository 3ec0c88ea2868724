// Package metrics exposes Prometheus collectors for the batching service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	uploadsTotal               *prometheus.CounterVec
	filesProcessedTotal        prometheus.Counter
	batchesTotal               *prometheus.CounterVec
	oversizedBatchesTotal      prometheus.Counter
	archiveBytes               *prometheus.HistogramVec
	activeProgressStreams      prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		uploadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdbatcher_uploads_total",
				Help: "Total archive uploads, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		filesProcessedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mdbatcher_files_processed_total",
				Help: "Total Markdown files consumed by the pipeline.",
			},
		)

		batchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdbatcher_batches_total",
				Help: "Total output batches emitted, labeled by kind.",
			},
			[]string{"kind"},
		)

		oversizedBatchesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mdbatcher_oversized_batches_total",
				Help: "Total batches flagged for exceeding the word limit.",
			},
		)

		archiveBytes = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mdbatcher_archive_bytes",
				Help:    "Histogram of archive sizes in bytes, labeled by direction.",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
			[]string{"direction"},
		)

		activeProgressStreams = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mdbatcher_active_progress_streams",
				Help: "Number of progress streams currently attached.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveUpload increments the upload counter for the given outcome.
func ObserveUpload(outcome string) {
	uploadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFilesProcessed adds n consumed files to the pipeline counter.
func ObserveFilesProcessed(n int) {
	filesProcessedTotal.Add(float64(n))
}

// ObserveBatch increments the batch counter, tracking oversized batches too.
func ObserveBatch(kind string, oversized bool) {
	batchesTotal.WithLabelValues(kind).Inc()
	if oversized {
		oversizedBatchesTotal.Inc()
	}
}

// ObserveArchiveBytes records an input or output archive size.
func ObserveArchiveBytes(direction string, size int) {
	archiveBytes.WithLabelValues(direction).Observe(float64(size))
}

// IncActiveStreams increments the attached progress stream gauge.
func IncActiveStreams() {
	activeProgressStreams.Inc()
}

// DecActiveStreams decrements the attached progress stream gauge.
func DecActiveStreams() {
	activeProgressStreams.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
