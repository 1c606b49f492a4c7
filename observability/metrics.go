package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	podMetricsOnce sync.Once
	podRegistry    *PodMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "memepod",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "memepod",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method, and error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "memepod",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "memepod",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. code is zero on success
// and the JSON-RPC error code otherwise.
func (m *moduleMetrics) Observe(module, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" or
// "replay" so dashboards and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// PodMetrics tracks lifecycle calls executed by the node.
type PodMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	quoteIn    prometheus.Counter
	baseOut    prometheus.Counter
}

// Pods returns the singleton lifecycle metrics registry.
func Pods() *PodMetrics {
	podMetricsOnce.Do(func() {
		podRegistry = &PodMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "memepod",
				Subsystem: "pod",
				Name:      "operations_total",
				Help:      "Count of lifecycle operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "memepod",
				Subsystem: "pod",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution of lifecycle operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			quoteIn: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "memepod",
				Subsystem: "pod",
				Name:      "buy_quote_units_total",
				Help:      "Quote units paid into pods by buyers.",
			}),
			baseOut: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "memepod",
				Subsystem: "pod",
				Name:      "buy_base_units_total",
				Help:      "Base units delivered to buyers.",
			}),
		}
		prometheus.MustRegister(podRegistry.operations, podRegistry.latency, podRegistry.quoteIn, podRegistry.baseOut)
	})
	return podRegistry
}

// Observe records one lifecycle call. outcome is "ok" or the error kind.
func (m *PodMetrics) Observe(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "ok"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBuy accumulates purchase volume.
func (m *PodMetrics) RecordBuy(quoteAmount, baseAmount uint64) {
	if m == nil {
		return
	}
	m.quoteIn.Add(float64(quoteAmount))
	m.baseOut.Add(float64(baseAmount))
}
