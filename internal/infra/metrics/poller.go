package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		pollCyclesTotal,
		pollCycleDuration,
		pollItemsPulledTotal,
		deliveriesTotal,
		outcomeReportsTotal,
	)
}

var (
	pollCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_poll_cycles_total",
			Help: "Poll cycles by result (ok, failed, skipped, panicked).",
		},
		[]string{"result"},
	)

	pollCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_poll_cycle_duration_seconds",
			Help:    "Wall time of completed poll cycles.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	pollItemsPulledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_items_pulled_total",
			Help: "Pending approvals returned by pull requests.",
		},
	)

	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Delivery attempts by outcome (sent, error, skipped, duplicate).",
		},
		[]string{"outcome"},
	)

	outcomeReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_outcome_reports_total",
			Help: "Mark requests by reported status and whether the backend accepted them.",
		},
		[]string{"status", "result"},
	)
)

func IncPollCycle(result string) {
	pollCyclesTotal.WithLabelValues(norm(result)).Inc()
}

func ObservePollCycle(seconds float64) {
	pollCycleDuration.Observe(seconds)
}

func AddItemsPulled(n int) {
	pollItemsPulledTotal.Add(float64(n))
}

func IncDelivery(outcome string) {
	deliveriesTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncOutcomeReport(status, result string) {
	outcomeReportsTotal.WithLabelValues(norm(status), norm(result)).Inc()
}
