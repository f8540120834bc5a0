package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the HTTP handler that exposes every metric registered
// on the default registry (where PrometheusMetrics registers via promauto;
// NoopCollector registers nothing) in the Prometheus text exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// PrometheusMetrics implements Collector using the Prometheus client.
type PrometheusMetrics struct {
	// Debug HTTP surface metrics
	requestDuration *prometheus.HistogramVec
	requests        *prometheus.CounterVec

	// Core-bus call metrics
	coreBusCalls   *prometheus.CounterVec
	coreBusLatency *prometheus.HistogramVec

	// IPC broker metrics
	ipcRequests *prometheus.CounterVec
	ipcErrors   *prometheus.CounterVec

	// Component lifecycle metrics
	lifecycleTransitions *prometheus.CounterVec
	phaseDuration        *prometheus.HistogramVec
	componentState       *prometheus.GaugeVec

	// Fleet status publisher metrics
	fleetStatusPublishes *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics collector.
func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{}

	m.requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "debugapi_request_duration_seconds",
			Help:    "Duration of debug HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	m.requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debugapi_requests_total",
			Help: "Total number of debug HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.coreBusCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corebus_calls_total",
			Help: "Total number of core-bus operation calls",
		},
		[]string{"destination", "operation", "status"},
	)

	m.coreBusLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "corebus_call_duration_seconds",
			Help:    "Duration of core-bus operation calls in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"destination", "operation"},
	)

	m.ipcRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipc_requests_total",
			Help: "Total number of IPC broker requests from components",
		},
		[]string{"operation", "status"},
	)

	m.ipcErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipc_errors_total",
			Help: "Total number of IPC broker errors by kind",
		},
		[]string{"operation", "kind"},
	)

	m.lifecycleTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_transitions_total",
			Help: "Total number of component lifecycle state transitions",
		},
		[]string{"component", "from", "to"},
	)

	m.phaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lifecycle_phase_duration_seconds",
			Help:    "Duration of component lifecycle phase scripts in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"component", "phase", "status"},
	)

	m.componentState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "component_state",
			Help: "Current lifecycle state of a component (1 for the active state, 0 otherwise)",
		},
		[]string{"component", "state"},
	)

	m.fleetStatusPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetstatus_publishes_total",
			Help: "Total number of fleet status documents published",
		},
		[]string{"trigger", "status"},
	)

	return m
}

// RecordRequest records a debug HTTP request.
func (m *PrometheusMetrics) RecordRequest(method, path string, status int, duration time.Duration) {
	labels := prometheus.Labels{"method": method, "path": path, "status": statusLabel(status)}
	m.requests.With(labels).Inc()
	m.requestDuration.With(labels).Observe(duration.Seconds())
}

// RecordCoreBusCall records a core-bus operation call.
func (m *PrometheusMetrics) RecordCoreBusCall(destination, operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.coreBusCalls.With(prometheus.Labels{
		"destination": destination,
		"operation":   operation,
		"status":      status,
	}).Inc()
	m.coreBusLatency.With(prometheus.Labels{
		"destination": destination,
		"operation":   operation,
	}).Observe(duration.Seconds())
}

// RecordIPCRequest records an IPC broker request and, on failure, its error kind.
func (m *PrometheusMetrics) RecordIPCRequest(operation string, success bool, kind string) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.ipcRequests.With(prometheus.Labels{"operation": operation, "status": status}).Inc()
	if !success {
		m.ipcErrors.With(prometheus.Labels{"operation": operation, "kind": kind}).Inc()
	}
}

// RecordLifecycleTransition records a component state transition.
func (m *PrometheusMetrics) RecordLifecycleTransition(component, from, to string) {
	m.lifecycleTransitions.With(prometheus.Labels{
		"component": component,
		"from":      from,
		"to":        to,
	}).Inc()
	m.componentState.With(prometheus.Labels{"component": component, "state": from}).Set(0)
	m.componentState.With(prometheus.Labels{"component": component, "state": to}).Set(1)
}

// RecordPhaseDuration records the duration of a lifecycle phase script.
func (m *PrometheusMetrics) RecordPhaseDuration(component, phase string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.phaseDuration.With(prometheus.Labels{
		"component": component,
		"phase":     phase,
		"status":    status,
	}).Observe(duration.Seconds())
}

// RecordFleetStatusPublish records a fleet status publish attempt.
func (m *PrometheusMetrics) RecordFleetStatusPublish(trigger string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.fleetStatusPublishes.With(prometheus.Labels{"trigger": trigger, "status": status}).Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "unknown"
	}
}
