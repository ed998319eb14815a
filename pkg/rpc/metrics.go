package rpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements QueueMetrics, CorrelatorMetrics, and RouterMetrics
// with Prometheus collectors, following internal/metrics/metrics.go's
// promauto construction style.
type Metrics struct {
	connectionState   prometheus.Gauge
	reconnectAttempts prometheus.Counter
	reconnectsGivenUp prometheus.Counter

	requestsSubmitted prometheus.Counter
	requestLatency    prometheus.Histogram
	requestTimeouts   *prometheus.CounterVec
	orphanedResponses prometheus.Counter
	pendingLimitHits  *prometheus.CounterVec

	queueBackpressure *prometheus.CounterVec
	queueSaturation   prometheus.Counter
	queueDepth        prometheus.Gauge

	listenerPanics   prometheus.Counter
	protocolErrors   prometheus.Counter
}

// NewMetrics registers a full set of collectors under the given namespace
// (e.g. "ethwire_rpc") on the default registry.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		connectionState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current Connection state (0=Connecting,1=Connected,2=Reconnecting,3=Closed)",
		}),
		reconnectAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Total number of reconnect attempts made",
		}),
		reconnectsGivenUp: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_given_up_total",
			Help:      "Total number of times reconnection was abandoned after exhausting attempts",
		}),
		requestsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_submitted_total",
			Help:      "Total number of requests accepted onto the submission queue",
		}),
		requestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_latency_seconds",
			Help:      "Latency between request submission and result-slot completion",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		requestTimeouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_timeouts_total",
			Help:      "Total number of requests that timed out by method",
		}, []string{"method"}),
		orphanedResponses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphaned_responses_total",
			Help:      "Total number of response frames with no matching pending request",
		}),
		pendingLimitHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pending_limit_reached_total",
			Help:      "Total number of submissions rejected because max_pending_requests was already reached, by method",
		}, []string{"method"}),
		queueBackpressure: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_backpressure_total",
			Help:      "Total number of submissions rejected due to queue backpressure, by method",
		}, []string{"method"}),
		queueSaturation: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_saturation_total",
			Help:      "Total number of submissions observed above the saturation threshold",
		}),
		queueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Approximate number of queued-but-undrained requests",
		}),
		listenerPanics: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_panics_total",
			Help:      "Total number of subscription listener invocations that panicked",
		}),
		protocolErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Total number of frames that failed to parse as JSON-RPC",
		}),
	}
}

func (m *Metrics) SetState(s ConnectionState) {
	if m == nil {
		return
	}
	m.connectionState.Set(float64(s))
}

func (m *Metrics) OnReconnectAttempt() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

func (m *Metrics) OnReconnectGivenUp() {
	if m == nil {
		return
	}
	m.reconnectsGivenUp.Inc()
}

func (m *Metrics) OnRequestSubmitted() {
	if m == nil {
		return
	}
	m.requestsSubmitted.Inc()
}

func (m *Metrics) OnRequestLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.requestLatency.Observe(d.Seconds())
}

func (m *Metrics) OnBackpressure(method string) {
	if m == nil {
		return
	}
	m.queueBackpressure.WithLabelValues(method).Inc()
}

func (m *Metrics) OnSaturation(occupancy, capacity uint64) {
	if m == nil {
		return
	}
	m.queueSaturation.Inc()
}

func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func (m *Metrics) OnOrphanedResponse(id int64) {
	if m == nil {
		return
	}
	m.orphanedResponses.Inc()
}

func (m *Metrics) OnTimeout(method string, id int64) {
	if m == nil {
		return
	}
	m.requestTimeouts.WithLabelValues(method).Inc()
}

func (m *Metrics) OnPendingLimitReached(method string) {
	if m == nil {
		return
	}
	m.pendingLimitHits.WithLabelValues(method).Inc()
}

func (m *Metrics) OnListenerPanic(subscriptionID string) {
	if m == nil {
		return
	}
	m.listenerPanics.Inc()
}

func (m *Metrics) OnProtocolError() {
	if m == nil {
		return
	}
	m.protocolErrors.Inc()
}
