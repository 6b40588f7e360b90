// Package metrics exposes the engine's prometheus instrumentation: reactor
// loop iteration counters, ring-buffer backpressure counters, session
// state-change counters, and journal append latency (spec §9's "global
// counters" note plus the ambient observability stack carried regardless
// of the spec's admin-dashboard non-goal).
//
// Grounded on the teacher's internal/escrow/metrics.go: a single struct of
// *prometheus.CounterVec/HistogramVec/GaugeVec fields built once via
// promauto in a NewMetrics constructor, with small Record*/Update* methods
// wrapping WithLabelValues calls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every prometheus collector the engine registers.
type Metrics struct {
	ReactorIterations    *prometheus.CounterVec
	RingBufferFull       *prometheus.CounterVec
	RingBufferClaimBytes *prometheus.CounterVec
	SessionStateChanges  *prometheus.CounterVec
	JournalAppendLatency *prometheus.HistogramVec
	JournalEntriesTotal  *prometheus.CounterVec
	GapRecoveries        *prometheus.CounterVec
}

// New builds and registers every collector against the default registry.
func New() *Metrics {
	return &Metrics{
		ReactorIterations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnibridge_reactor_loop_iterations_total",
				Help: "Total number of event-loop iterations per reactor.",
			},
			[]string{"reactor"},
		),
		RingBufferFull: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnibridge_ringbuffer_full_total",
				Help: "Total number of try_claim calls that returned Full (backpressure).",
			},
			[]string{"channel"},
		),
		RingBufferClaimBytes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnibridge_ringbuffer_claimed_bytes_total",
				Help: "Total payload bytes successfully claimed and committed.",
			},
			[]string{"channel"},
		),
		SessionStateChanges: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnibridge_session_state_changes_total",
				Help: "Total session state transitions, labeled by protocol and target state.",
			},
			[]string{"session_id", "protocol", "state"},
		),
		JournalAppendLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "omnibridge_journal_append_seconds",
				Help:    "Latency of a single journal stream append.",
				Buckets: []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1},
			},
			[]string{"stream"},
		),
		JournalEntriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnibridge_journal_entries_total",
				Help: "Total journal entries appended, labeled by direction.",
			},
			[]string{"stream", "direction"},
		),
		GapRecoveries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnibridge_sequence_gap_recoveries_total",
				Help: "Total sequence-number gap recoveries triggered (ResendRequest sent).",
			},
			[]string{"session_id"},
		),
	}
}

// RecordReactorIteration increments the per-reactor loop counter.
func (m *Metrics) RecordReactorIteration(reactor string) {
	m.ReactorIterations.WithLabelValues(reactor).Inc()
}

// RecordRingFull records a backpressure-full event on channel.
func (m *Metrics) RecordRingFull(channel string) {
	m.RingBufferFull.WithLabelValues(channel).Inc()
}

// RecordRingClaim adds n successfully claimed payload bytes to channel's total.
func (m *Metrics) RecordRingClaim(channel string, n int) {
	m.RingBufferClaimBytes.WithLabelValues(channel).Add(float64(n))
}

// RecordStateChange records a session transition into state.
func (m *Metrics) RecordStateChange(sessionID, protocol, state string) {
	m.SessionStateChanges.WithLabelValues(sessionID, protocol, state).Inc()
}

// RecordJournalAppend records one append's latency in seconds and bumps
// the per-direction entry counter.
func (m *Metrics) RecordJournalAppend(stream, direction string, seconds float64) {
	m.JournalAppendLatency.WithLabelValues(stream).Observe(seconds)
	m.JournalEntriesTotal.WithLabelValues(stream, direction).Inc()
}

// RecordGapRecovery records a sequence gap recovery for sessionID.
func (m *Metrics) RecordGapRecovery(sessionID string) {
	m.GapRecoveries.WithLabelValues(sessionID).Inc()
}
