package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	recommendTotal   *prometheus.CounterVec
	recommendResults *prometheus.HistogramVec
	nearbyTotal      *prometheus.CounterVec
	nearbyEmptyTotal *prometheus.CounterVec
	queryDuration    *prometheus.HistogramVec
	breakerChanges   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	recommendTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "requests_total",
			Help:      "Successful recommendation requests by identifier match type.",
		},
		[]string{"service", "endpoint", "match"},
	)
	recommendResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "results",
			Help:      "Number of recommended properties per request.",
			Buckets:   []float64{0, 1, 3, 5, 7, 10, 15, 20},
		},
		[]string{"service", "endpoint"},
	)
	nearbyTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "nearby",
			Name:      "requests_total",
			Help:      "Successful radius queries by identifier match type.",
		},
		[]string{"service", "endpoint", "match"},
	)
	nearbyEmptyTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "nearby",
			Name:      "empty_total",
			Help:      "Radius queries that found no property within the radius.",
		},
		[]string{"service", "endpoint"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Recommend and nearby execution time in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"service", "operation"},
	)
	breakerChanges := newBreakerTransitions()

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		recommendTotal,
		recommendResults,
		nearbyTotal,
		nearbyEmptyTotal,
		queryDuration,
		breakerChanges,
	)

	return &HTTPServerMetrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		recommendTotal:   recommendTotal,
		recommendResults: recommendResults,
		nearbyTotal:      nearbyTotal,
		nearbyEmptyTotal: nearbyEmptyTotal,
		queryDuration:    queryDuration,
		breakerChanges:   breakerChanges,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/properties/") && strings.HasSuffix(path, "/similar"):
		return "/v1/properties/{name}/similar"
	case strings.HasPrefix(path, "/v1/locations/") && strings.HasSuffix(path, "/nearby"):
		return "/v1/locations/{name}/nearby"
	default:
		return path
	}
}

func matchLabel(exact bool) string {
	if exact {
		return "exact"
	}
	return "approximate"
}

func (m *HTTPServerMetrics) RecordRecommendation(service, endpoint string, exact bool, results int, duration time.Duration) {
	m.recommendTotal.WithLabelValues(service, endpoint, matchLabel(exact)).Inc()
	m.recommendResults.WithLabelValues(service, endpoint).Observe(float64(results))
	m.queryDuration.WithLabelValues(service, "recommend").Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordNearby(service, endpoint string, exact bool, results int, duration time.Duration) {
	m.nearbyTotal.WithLabelValues(service, endpoint, matchLabel(exact)).Inc()
	if results == 0 {
		m.nearbyEmptyTotal.WithLabelValues(service, endpoint).Inc()
	}
	m.queryDuration.WithLabelValues(service, "nearby").Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordBreakerTransition(operation, state string) {
	m.breakerChanges.WithLabelValues(operation, state).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
