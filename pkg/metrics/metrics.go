// Package metrics provides Prometheus instrumentation for the A2A
// runtime: request counts per JSON-RPC method, broker subscriber counts
// and published/dropped events, and push-notification delivery outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector this runtime exposes. A nil *Metrics is
// safe to call methods on — every recorder is a no-op — so instrumenting
// a code path never requires a nil check at the call site.
type Metrics struct {
	namespace string
	registry  *prometheus.Registry

	rpcRequests *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec

	brokerSubscribers *prometheus.GaugeVec
	brokerDropped     *prometheus.CounterVec
	brokerPublished   *prometheus.CounterVec

	pushAttempts  *prometheus.CounterVec
	pushOutcomes  *prometheus.CounterVec
	pushDuration  prometheus.Histogram
	tasksActive   *prometheus.GaugeVec
	tasksFinished *prometheus.CounterVec
}

// New creates a Metrics instance registered under namespace (e.g. "a2a").
// Pass "" to use the default namespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "a2a"
	}

	m := &Metrics{
		namespace: namespace,
		registry:  prometheus.NewRegistry(),
	}

	m.initRPCMetrics()
	m.initBrokerMetrics()
	m.initPushMetrics()
	m.initTaskMetrics()

	return m
}

func (m *Metrics) initRPCMetrics() {
	m.rpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of JSON-RPC requests handled.",
		},
		[]string{"method", "outcome"},
	)

	m.rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "JSON-RPC request handling duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to 8s
		},
		[]string{"method"},
	)

	m.registry.MustRegister(m.rpcRequests, m.rpcDuration)
}

func (m *Metrics) initBrokerMetrics() {
	m.brokerSubscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: "broker",
			Name:      "subscribers",
			Help:      "Number of active event subscriptions for a task.",
		},
		[]string{"task_id"},
	)

	m.brokerPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "broker",
			Name:      "events_published_total",
			Help:      "Total number of events published to subscribers.",
		},
		[]string{"event_type"},
	)

	m.brokerDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "broker",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped because a subscriber's buffer was full.",
		},
		[]string{"event_type"},
	)

	m.registry.MustRegister(m.brokerSubscribers, m.brokerPublished, m.brokerDropped)
}

func (m *Metrics) initPushMetrics() {
	m.pushAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "push",
			Name:      "attempts_total",
			Help:      "Total number of push-notification delivery attempts.",
		},
		[]string{"outcome"},
	)

	m.pushOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "push",
			Name:      "dispatches_total",
			Help:      "Total number of completed push-notification dispatches, by final outcome.",
		},
		[]string{"outcome"},
	)

	m.pushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: "push",
			Name:      "dispatch_duration_seconds",
			Help:      "Total time spent delivering a push notification, including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to 80s
		},
	)

	m.registry.MustRegister(m.pushAttempts, m.pushOutcomes, m.pushDuration)
}

func (m *Metrics) initTaskMetrics() {
	m.tasksActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: "tasks",
			Name:      "active",
			Help:      "Number of tasks not yet in a terminal state.",
		},
		[]string{"state"},
	)

	m.tasksFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "tasks",
			Name:      "finished_total",
			Help:      "Total number of tasks that reached a terminal state.",
		},
		[]string{"state"},
	)

	m.registry.MustRegister(m.tasksActive, m.tasksFinished)
}

// RecordRPC records a completed JSON-RPC dispatch.
func (m *Metrics) RecordRPC(method, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(method, outcome).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// SetBrokerSubscribers records the current subscriber count for a task.
func (m *Metrics) SetBrokerSubscribers(taskID string, count int) {
	if m == nil {
		return
	}
	m.brokerSubscribers.WithLabelValues(taskID).Set(float64(count))
}

// RecordBrokerPublish records an event delivered (or attempted) to subscribers.
func (m *Metrics) RecordBrokerPublish(eventType string) {
	if m == nil {
		return
	}
	m.brokerPublished.WithLabelValues(eventType).Inc()
}

// RecordBrokerDrop records an event dropped because a subscriber's buffer was full.
func (m *Metrics) RecordBrokerDrop(eventType string) {
	if m == nil {
		return
	}
	m.brokerDropped.WithLabelValues(eventType).Inc()
}

// RecordPushAttempt records a single HTTP delivery attempt for a push notification.
func (m *Metrics) RecordPushAttempt(outcome string) {
	if m == nil {
		return
	}
	m.pushAttempts.WithLabelValues(outcome).Inc()
}

// RecordPushDispatch records the final outcome of a push-notification dispatch
// (after all retries), along with the total wall-clock time spent.
func (m *Metrics) RecordPushDispatch(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.pushOutcomes.WithLabelValues(outcome).Inc()
	m.pushDuration.Observe(duration.Seconds())
}

// SetTasksActive records the number of tasks currently in state.
func (m *Metrics) SetTasksActive(state string, count int) {
	if m == nil {
		return
	}
	m.tasksActive.WithLabelValues(state).Set(float64(count))
}

// RecordTaskFinished records a task reaching a terminal state.
func (m *Metrics) RecordTaskFinished(state string) {
	if m == nil {
		return
	}
	m.tasksFinished.WithLabelValues(state).Inc()
}

// Handler returns the HTTP handler serving this registry in the
// Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
