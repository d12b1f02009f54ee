// Package metrics defines Prometheus metrics for the search service.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "faro_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faro_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faro_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faro_searches_total",
			Help: "Total searches by strategy",
		},
		[]string{"strategy"},
	)

	EmbeddingCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faro_embedding_cache_lookups_total",
			Help: "Query embedding cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	WriteQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "faro_write_queue_depth",
			Help: "Pending jobs in the write-serializer queue",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		SearchesTotal, EmbeddingCacheLookups, WriteQueueDepth,
	)
}
