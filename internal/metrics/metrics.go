package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the sync engine.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	CommandsTotal        *prometheus.CounterVec
	DriftEventsTotal     *prometheus.CounterVec
	FlushTotal           *prometheus.CounterVec
	FlushConflictsTotal  prometheus.Counter
	FlushDurationSeconds prometheus.Histogram
	RelabelFailuresTotal prometheus.Counter
	Bindings             prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "realname_commands_total",
			Help: "Total number of real-name commands, labeled by command and outcome",
		}, []string{"command", "outcome"}),
		DriftEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "realname_drift_events_total",
			Help: "Total number of label-changed events, labeled by reconcile outcome",
		}, []string{"outcome"}),
		FlushTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "realname_flush_total",
			Help: "Total number of snapshot flushes, labeled by reason and status",
		}, []string{"reason", "status"}),
		FlushConflictsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "realname_flush_conflicts_total",
			Help: "Total number of remote version conflicts seen while flushing",
		}),
		FlushDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "realname_flush_duration_seconds",
			Help:    "Duration of snapshot flushes in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		}),
		RelabelFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "realname_relabel_failures_total",
			Help: "Total number of nickname updates the platform rejected or failed",
		}),
		Bindings: factory.NewGauge(prometheus.GaugeOpts{
			Name: "realname_bindings",
			Help: "Current number of members with a real name bound",
		}),
	}
}

func (m *Metrics) IncrementCommand(command, outcome string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) IncrementDriftEvent(outcome string) {
	if m == nil {
		return
	}
	m.DriftEventsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementFlush(reason, status string) {
	if m == nil {
		return
	}
	m.FlushTotal.WithLabelValues(reason, status).Inc()
}

func (m *Metrics) IncrementFlushConflict() {
	if m == nil {
		return
	}
	m.FlushConflictsTotal.Inc()
}

func (m *Metrics) ObserveFlushDuration(durationSeconds float64) {
	if m == nil {
		return
	}
	m.FlushDurationSeconds.Observe(durationSeconds)
}

func (m *Metrics) IncrementRelabelFailure() {
	if m == nil {
		return
	}
	m.RelabelFailuresTotal.Inc()
}

func (m *Metrics) SetBindings(count int) {
	if m == nil {
		return
	}
	m.Bindings.Set(float64(count))
}
