package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the combat bot's Prometheus collectors.
type Metrics struct {
	sessions *prometheus.CounterVec
	turns    prometheus.Histogram
	duration prometheus.Histogram
	commands *prometheus.CounterVec
	signals  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
//
// Precondition: reg must be non-nil and must not already hold these collectors.
// Postcondition: Returns Metrics whose collectors are registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autocombat_sessions_total",
			Help: "Combat sessions by outcome.",
		}, []string{"outcome"}),
		turns: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autocombat_session_turns",
			Help:    "Turns reached per combat session.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55},
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autocombat_session_duration_seconds",
			Help:    "Wall time per combat session.",
			Buckets: prometheus.ExponentialBuckets(15, 2, 8),
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autocombat_commands_total",
			Help: "Script commands dispatched by kind.",
		}, []string{"kind"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autocombat_battle_end_signals_total",
			Help: "Terminal battle-end signals observed.",
		}, []string{"signal"}),
	}
	reg.MustRegister(m.sessions, m.turns, m.duration, m.commands, m.signals)
	return m
}

// CommandDispatched counts one dispatched command.
func (m *Metrics) CommandDispatched(kind string) {
	m.commands.WithLabelValues(kind).Inc()
}

// SignalObserved counts one terminal battle-end signal.
func (m *Metrics) SignalObserved(signal string) {
	m.signals.WithLabelValues(signal).Inc()
}

// SessionFinished records a finished combat session.
func (m *Metrics) SessionFinished(outcome string, turn int, elapsed time.Duration) {
	m.sessions.WithLabelValues(outcome).Inc()
	m.turns.Observe(float64(turn))
	m.duration.Observe(elapsed.Seconds())
}
