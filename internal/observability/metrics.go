// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Observer metrics
	TicksProcessed  prometheus.Counter
	TickRegressions prometheus.Counter
	DeltaEvents     *prometheus.CounterVec
	LastTickSeen    prometheus.Gauge

	// Director metrics
	EffectsStarted     *prometheus.CounterVec
	EffectsInFlight    prometheus.Gauge
	CameraFocusChanges prometheus.Counter
	EventsDropped      prometheus.Counter

	// Session metrics
	SessionsStarted   prometheus.Counter
	HandshakeFailures *prometheus.CounterVec
	RunsFinished      prometheus.Counter
	Disconnects       prometheus.Counter

	// Stream metrics
	WSMessagesReceived *prometheus.CounterVec
	TickLatency        prometheus.Histogram

	// Storage metrics
	SummariesPersisted prometheus.Counter
	TicksArchived      prometheus.Counter
	DBQueryErrors      *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "storesim_observer"
	}

	return &Metrics{
		// Observer metrics
		TicksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "ticks_processed_total",
			Help:      "Total number of tick snapshots classified",
		}),
		TickRegressions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "tick_regressions_total",
			Help:      "Total number of tick regressions that triggered a state reset",
		}),
		DeltaEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "delta_events_total",
			Help:      "Total number of delta events emitted by type",
		}, []string{"type"}),
		LastTickSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "last_tick_seen",
			Help:      "Highest tick number seen in the current run",
		}),

		// Director metrics
		EffectsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "director",
			Name:      "effects_started_total",
			Help:      "Total number of stage effects started by event type",
		}, []string{"type"}),
		EffectsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "director",
			Name:      "effects_in_flight",
			Help:      "Current number of stage effects awaiting completion",
		}),
		CameraFocusChanges: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "director",
			Name:      "camera_focus_changes_total",
			Help:      "Total number of camera focus transitions requested",
		}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "director",
			Name:      "events_dropped_total",
			Help:      "Total number of visual events dropped by the per-tick cap",
		}),

		// Session metrics
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "sessions_started_total",
			Help:      "Total number of sessions that completed the handshake",
		}),
		HandshakeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "handshake_failures_total",
			Help:      "Total number of handshake failures by step",
		}, []string{"step"}),
		RunsFinished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "runs_finished_total",
			Help:      "Total number of runs that reached a finished summary",
		}),
		Disconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "disconnects_total",
			Help:      "Total number of unexpected stream disconnects",
		}),

		// Stream metrics
		WSMessagesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "ws_messages_received_total",
			Help:      "Total number of WebSocket messages received by kind",
		}, []string{"kind"}),
		TickLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "tick_latency_seconds",
			Help:      "Tick snapshot processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Storage metrics
		SummariesPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "summaries_persisted_total",
			Help:      "Total number of run summaries written",
		}),
		TicksArchived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "ticks_archived_total",
			Help:      "Total number of ticks written to the archive",
		}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "query_errors_total",
			Help:      "Total number of storage query errors",
		}, []string{"store", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTickProcessed records a classified tick snapshot.
func RecordTickProcessed(tick int64) {
	DefaultMetrics.TicksProcessed.Inc()
	DefaultMetrics.LastTickSeen.Set(float64(tick))
}

// RecordTickRegression increments the tick regression counter.
func RecordTickRegression() {
	DefaultMetrics.TickRegressions.Inc()
}

// RecordDeltaEvent increments the delta event counter for an event type.
func RecordDeltaEvent(eventType string) {
	DefaultMetrics.DeltaEvents.WithLabelValues(eventType).Inc()
}

// RecordEffectStarted records a started stage effect.
func RecordEffectStarted(eventType string) {
	DefaultMetrics.EffectsStarted.WithLabelValues(eventType).Inc()
}

// UpdateEffectsInFlight updates the in-flight effects gauge.
func UpdateEffectsInFlight(n int) {
	DefaultMetrics.EffectsInFlight.Set(float64(n))
}

// RecordFocusChange increments the camera focus counter.
func RecordFocusChange() {
	DefaultMetrics.CameraFocusChanges.Inc()
}

// RecordEventsDropped records visual events discarded by the per-tick cap.
func RecordEventsDropped(n int) {
	DefaultMetrics.EventsDropped.Add(float64(n))
}

// RecordSessionStarted increments the sessions started counter.
func RecordSessionStarted() {
	DefaultMetrics.SessionsStarted.Inc()
}

// RecordHandshakeFailure records a handshake failure at a given step.
func RecordHandshakeFailure(step string) {
	DefaultMetrics.HandshakeFailures.WithLabelValues(step).Inc()
}

// RecordRunFinished increments the runs finished counter.
func RecordRunFinished() {
	DefaultMetrics.RunsFinished.Inc()
}

// RecordDisconnect increments the disconnect counter.
func RecordDisconnect() {
	DefaultMetrics.Disconnects.Inc()
}

// RecordWSMessage records a received WebSocket message by kind.
func RecordWSMessage(kind string) {
	DefaultMetrics.WSMessagesReceived.WithLabelValues(kind).Inc()
}

// RecordTickLatency records tick processing latency.
func RecordTickLatency(seconds float64) {
	DefaultMetrics.TickLatency.Observe(seconds)
}

// RecordSummaryPersisted increments the summaries persisted counter.
func RecordSummaryPersisted() {
	DefaultMetrics.SummariesPersisted.Inc()
}

// RecordTicksArchived records ticks written to the archive.
func RecordTicksArchived(n int) {
	DefaultMetrics.TicksArchived.Add(float64(n))
}

// RecordDBQueryError records a storage query error.
func RecordDBQueryError(store, operation string) {
	DefaultMetrics.DBQueryErrors.WithLabelValues(store, operation).Inc()
}
