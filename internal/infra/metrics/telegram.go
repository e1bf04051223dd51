package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		telegramCommandsReceivedTotal,
		telegramRateLimitTriggeredTotal,
		bindsTotal,
		decisionsTotal,
	)
}

var (
	telegramCommandsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_commands_received_total",
			Help: "Counts incoming commands and callback queries.",
		},
		[]string{"command"},
	)

	telegramRateLimitTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_rate_limit_triggered_total",
			Help: "Total number of times users have been rate-limited.",
		},
	)

	bindsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_binds_total",
			Help: "Bind attempts by outcome (ok, invalid, rejected, failed).",
		},
		[]string{"outcome"},
	)

	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_decisions_total",
			Help: "Decision taps by action and outcome (ok, unmatched, rejected, failed).",
		},
		[]string{"action", "outcome"},
	)
)

func IncTelegramCommand(command string) {
	telegramCommandsReceivedTotal.WithLabelValues(norm(command)).Inc()
}

func IncRateLimitTriggered() {
	telegramRateLimitTriggeredTotal.Inc()
}

func IncBind(outcome string) {
	bindsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncDecision(action, outcome string) {
	if action == "" {
		action = "none"
	}
	decisionsTotal.WithLabelValues(norm(action), norm(outcome)).Inc()
}
