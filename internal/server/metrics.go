package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"

	// outcomeOK and outcomeError partition domain-operation counters.
	outcomeOK    = "ok"
	outcomeError = "error"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler name, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// searchesTotal counts retrieval searches, partitioned by outcome.
	searchesTotal *prometheus.CounterVec

	// searchDurationSeconds records the wall-clock duration of each
	// retrieval search, embedding included.
	searchDurationSeconds prometheus.Histogram

	// documentsAddedTotal counts documents accepted into the index.
	documentsAddedTotal prometheus.Counter

	// indexedDocuments is the current number of documents in the index.
	indexedDocuments prometheus.Gauge

	// runsTotal counts /api/run executions, partitioned by domain and outcome.
	runsTotal *prometheus.CounterVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dsla",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dsla",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),

		searchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dsla",
			Subsystem: "rag",
			Name:      "searches_total",
			Help:      "Total number of retrieval searches, partitioned by outcome.",
		}, []string{"outcome"}),

		searchDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dsla",
			Subsystem: "rag",
			Name:      "search_duration_seconds",
			Help:      "Wall-clock duration of retrieval searches, embedding included.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		documentsAddedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dsla",
			Subsystem: "rag",
			Name:      "documents_added_total",
			Help:      "Total number of documents accepted into the retrieval index.",
		}),

		indexedDocuments: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dsla",
			Subsystem: "rag",
			Name:      "indexed_documents",
			Help:      "Current number of documents in the retrieval index.",
		}),

		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dsla",
			Subsystem: "adapter",
			Name:      "runs_total",
			Help:      "Total number of /api/run executions, partitioned by domain and outcome.",
		}, []string{"domain", "outcome"}),
	}
}
