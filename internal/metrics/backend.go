package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search backend and deferred queue Prometheus metrics.
var (
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solango",
			Name:      "backend_requests_total",
			Help:      "Total number of search backend requests",
		},
		[]string{"operation", "status"},
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "solango",
			Name:      "backend_request_duration_seconds",
			Help:      "Search backend request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	BackendAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "solango",
			Name:      "backend_available",
			Help:      "1 if the last health check passed, 0 otherwise",
		},
	)

	IndexedDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solango",
			Name:      "indexed_documents_total",
			Help:      "Documents sent to the backend",
		},
		[]string{"action"}, // "add" / "delete"
	)

	DeferredEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solango",
			Name:      "deferred_enqueued_total",
			Help:      "Failed writes recorded for replay",
		},
		[]string{"method"},
	)

	DeferredReplayedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solango",
			Name:      "deferred_replayed_total",
			Help:      "Deferred writes replayed, by outcome",
		},
		[]string{"method", "status"}, // status: "success" / "error" / "superseded"
	)

	QueuedKeysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "solango",
			Name:      "queued_keys_total",
			Help:      "Record keys queued for the next queued indexing run",
		},
	)

	DeferredPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "solango",
			Name:      "deferred_pending",
			Help:      "Deferred writes pending after the last drain",
		},
	)
)

var backendMetricsRegistered bool

// RegisterBackendMetrics registers backend and deferred queue metrics. Must be called once from main.
func RegisterBackendMetrics() {
	if backendMetricsRegistered {
		return
	}
	prometheus.MustRegister(BackendRequestsTotal)
	prometheus.MustRegister(BackendRequestDuration)
	prometheus.MustRegister(BackendAvailable)
	prometheus.MustRegister(IndexedDocumentsTotal)
	prometheus.MustRegister(DeferredEnqueuedTotal)
	prometheus.MustRegister(DeferredReplayedTotal)
	prometheus.MustRegister(DeferredPending)
	prometheus.MustRegister(QueuedKeysTotal)
	backendMetricsRegistered = true
}
