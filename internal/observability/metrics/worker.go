package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
)

type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
	universeSize    prometheus.Gauge
	breakerChanges  *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "requests_total",
			Help:      "Total request-reply messages handled by operation and status.",
		},
		[]string{"service", "operation", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "request_duration_seconds",
			Help:      "Request-reply handling duration in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"service", "operation"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "in_flight",
			Help:      "Number of request-reply messages being handled.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	universeSize := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "universe_size",
			Help:      "Number of properties in the loaded catalog.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	breakerChanges := newBreakerTransitions()

	registry.MustRegister(requestTotal, requestDuration, requestInFlight, universeSize, breakerChanges)

	return &WorkerMetrics{
		registry:        registry,
		service:         service,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		universeSize:    universeSize,
		breakerChanges:  breakerChanges,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartRequest() {
	m.requestInFlight.Inc()
}

func (m *WorkerMetrics) FinishRequest(operation string, duration time.Duration, err error) {
	m.requestInFlight.Dec()

	status := "success"
	if err != nil {
		status = domain.KindName(err)
	}

	m.requestTotal.WithLabelValues(m.service, operation, status).Inc()
	m.requestDuration.WithLabelValues(m.service, operation).Observe(duration.Seconds())
}

// ObserveCatalog matches the artifacts load hook signature.
func (m *WorkerMetrics) ObserveCatalog(catalog *domain.Catalog) {
	m.universeSize.Set(float64(catalog.Size()))
}

func (m *WorkerMetrics) RecordBreakerTransition(operation, state string) {
	m.breakerChanges.WithLabelValues(operation, state).Inc()
}
