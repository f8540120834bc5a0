package metrics

import (
	"time"

	"github.com/edgecore/edgeagentd/pkg/logger"
)

// Collector provides an interface for metrics collection across the
// core-bus, the IPC broker, the component lifecycle executor and the
// fleet status publisher.
type Collector interface {
	// RecordRequest records a debug HTTP request.
	RecordRequest(method, path string, status int, duration time.Duration)

	// RecordCoreBusCall records a core-bus operation call.
	RecordCoreBusCall(destination, operation string, success bool, duration time.Duration)

	// RecordIPCRequest records an IPC broker request from a component.
	RecordIPCRequest(operation string, success bool, kind string)

	// RecordLifecycleTransition records a component state transition.
	RecordLifecycleTransition(component, from, to string)

	// RecordPhaseDuration records the duration of a lifecycle phase script.
	RecordPhaseDuration(component, phase string, success bool, duration time.Duration)

	// RecordFleetStatusPublish records a fleet status publish attempt.
	RecordFleetStatusPublish(trigger string, success bool)
}

// NewCollector creates a new metrics collector by implementation name.
func NewCollector(impl string, log logger.Logger) Collector {
	switch impl {
	case "prometheus":
		return NewPrometheusMetrics()
	case "noop", "":
		return &NoopCollector{}
	default:
		log.Warn("unknown metrics implementation, falling back to noop", logger.String("impl", impl))
		return &NoopCollector{}
	}
}

// NoopCollector is a no-operation metrics collector for testing or when
// metrics are disabled.
type NoopCollector struct{}

func (n *NoopCollector) RecordRequest(method, path string, status int, duration time.Duration) {}

func (n *NoopCollector) RecordCoreBusCall(destination, operation string, success bool, duration time.Duration) {
}

func (n *NoopCollector) RecordIPCRequest(operation string, success bool, kind string) {}

func (n *NoopCollector) RecordLifecycleTransition(component, from, to string) {}

func (n *NoopCollector) RecordPhaseDuration(component, phase string, success bool, duration time.Duration) {
}

func (n *NoopCollector) RecordFleetStatusPublish(trigger string, success bool) {}
