package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(backendRequestsTotal, backendLatency, backendRetriesTotal)
}

var (
	backendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_backend_requests_total",
			Help: "Backend calls by operation and final result (ok, transport, protocol).",
		},
		[]string{"op", "result"},
	)

	backendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_backend_latency_seconds",
			Help:    "Backend call latency including retries.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30},
		},
		[]string{"op"},
	)

	backendRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_backend_retries_total",
			Help: "Retried backend attempts by operation.",
		},
		[]string{"op"},
	)
)

func ObserveBackendCall(op, result string, seconds float64) {
	backendRequestsTotal.WithLabelValues(norm(op), norm(result)).Inc()
	backendLatency.WithLabelValues(norm(op)).Observe(seconds)
}

func IncBackendRetry(op string) {
	backendRetriesTotal.WithLabelValues(norm(op)).Inc()
}
