package infra

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"token_swap/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports ledger activity to Prometheus and keeps an atomic summary
// for the health endpoint. Each instance owns its registry so tests can
// create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	commands      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	state         prometheus.Gauge
	notifications *prometheus.CounterVec
	throttles     *prometheus.CounterVec
	streams       prometheus.Gauge
	feedPolls     *prometheus.CounterVec

	// Counters
	commandsTotal atomic.Uint64
	errorsTotal   atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeStreams atomic.Int32
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "token_swap",
			Subsystem: "ledger",
			Name:      "commands_total",
			Help:      "Ledger commands processed by the sequencer, segmented by operation and outcome.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "token_swap",
			Subsystem: "ledger",
			Name:      "command_duration_seconds",
			Help:      "Latency distribution for ledger commands.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "token_swap",
			Subsystem: "ledger",
			Name:      "operational_state",
			Help:      "Current operational state (0 inactive, 1 active, 2 paused).",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "token_swap",
			Subsystem: "ledger",
			Name:      "notifications_total",
			Help:      "Notifications emitted for committed mutations, by topic.",
		}, []string{"topic"}),
		throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "token_swap",
			Subsystem: "api",
			Name:      "throttles_total",
			Help:      "Requests rejected before reaching the ledger, by reason.",
		}, []string{"reason"}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "token_swap",
			Subsystem: "api",
			Name:      "active_streams",
			Help:      "Open notification websocket streams.",
		}),
		feedPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "token_swap",
			Subsystem: "rate_feed",
			Name:      "polls_total",
			Help:      "Rate feed polls by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.commands,
		m.latency,
		m.state,
		m.notifications,
		m.throttles,
		m.streams,
		m.feedPolls,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveCommand records one processed command. The outcome label is "ok" or
// the domain error code.
func (m *Metrics) ObserveCommand(op string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = domain.ErrorCode(err)
		m.errorsTotal.Add(1)
	}
	m.commands.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
	m.commandsTotal.Add(1)
	m.latencySumNs.Add(elapsed.Nanoseconds())
	m.latencyCount.Add(1)
}

// Notify implements domain.NotificationSink.
func (m *Metrics) Notify(n domain.Notification) {
	m.notifications.WithLabelValues(n.Topic()).Inc()
}

// SetState publishes the operational state gauge.
func (m *Metrics) SetState(s domain.OperationalState) {
	m.state.Set(float64(s))
}

// RecordThrottle counts a request rejected before dispatch.
func (m *Metrics) RecordThrottle(reason string) {
	m.throttles.WithLabelValues(reason).Inc()
}

// RecordFeedPoll counts a rate feed poll.
func (m *Metrics) RecordFeedPoll(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		var netErr *domain.NetworkError
		if errors.As(err, &netErr) && !netErr.IsRetriable() {
			outcome = "fatal"
		}
	}
	m.feedPolls.WithLabelValues(outcome).Inc()
}

// IncrementStreams increments active streams by 1.
func (m *Metrics) IncrementStreams() {
	m.activeStreams.Add(1)
	m.streams.Inc()
}

// DecrementStreams decrements active streams by 1.
func (m *Metrics) DecrementStreams() {
	m.activeStreams.Add(-1)
	m.streams.Dec()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	CommandsProcessed uint64    `json:"commands_processed"`
	ErrorsTotal       uint64    `json:"errors_total"`
	AvgLatencyNs      int64     `json:"avg_latency_ns"`
	ActiveStreams     int32     `json:"active_streams"`
	Timestamp         time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		CommandsProcessed: m.commandsTotal.Load(),
		ErrorsTotal:       m.errorsTotal.Load(),
		AvgLatencyNs:      avgLatency,
		ActiveStreams:     m.activeStreams.Load(),
		Timestamp:         time.Now(),
	}
}
