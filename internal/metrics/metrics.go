// Package metrics exposes Prometheus collectors for the ingestion service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yamelab/medref/internal/ingest"
)

var (
	ingestPagesTotal           *prometheus.CounterVec
	ingestRecordsTotal         *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	workerRunsTotal            *prometheus.CounterVec
	queueTransitionsTotal      *prometheus.CounterVec
	queueDepth                 *prometheus.GaugeVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		ingestPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medref_ingest_pages_total",
				Help: "Total API pages fetched, labeled by domain and outcome.",
			},
			[]string{"domain", "outcome"},
		)

		ingestRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medref_ingest_records_total",
				Help: "Total records processed by the upsert writer, labeled by domain and disposition.",
			},
			[]string{"domain", "disposition"},
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

		workerRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medref_worker_runs_total",
				Help: "Total crawl worker runs, labeled by status.",
			},
			[]string{"status"},
		)

		queueTransitionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medref_queue_transitions_total",
				Help: "Total crawl queue items moved to a terminal status.",
			},
			[]string{"status"},
		)

		queueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "medref_queue_depth",
				Help: "Crawl queue items by source and status.",
			},
			[]string{"source", "status"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePages counts one fetch walk over a domain.
func ObservePages(domain string, pages int, ok bool) {
	if ingestPagesTotal == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	ingestPagesTotal.WithLabelValues(domain, outcome).Add(float64(pages))
}

// ObserveSave records the dispositions of one upsert batch.
func ObserveSave(domain string, save ingest.SaveResult) {
	if ingestRecordsTotal == nil {
		return
	}
	ingestRecordsTotal.WithLabelValues(domain, "saved").Add(float64(save.Saved))
	ingestRecordsTotal.WithLabelValues(domain, "updated").Add(float64(save.Updated))
	ingestRecordsTotal.WithLabelValues(domain, "skipped").Add(float64(save.Skipped))
	ingestRecordsTotal.WithLabelValues(domain, "errors").Add(float64(save.Errors))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveWorkerRun counts one worker drain run by final status.
func ObserveWorkerRun(status string) {
	if workerRunsTotal == nil {
		return
	}
	workerRunsTotal.WithLabelValues(status).Inc()
}

// ObserveQueueTransition counts one item reaching a terminal status.
func ObserveQueueTransition(status string) {
	if queueTransitionsTotal == nil {
		return
	}
	queueTransitionsTotal.WithLabelValues(status).Inc()
}

// SetQueueDepth publishes one row of queue statistics.
func SetQueueDepth(source, status string, count int) {
	if queueDepth == nil {
		return
	}
	queueDepth.WithLabelValues(source, status).Set(float64(count))
}
