package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "apartments"

func newBreakerTransitions() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "transitions_total",
			Help:      "Circuit breaker state transitions by operation and new state.",
		},
		[]string{"operation", "state"},
	)
}
