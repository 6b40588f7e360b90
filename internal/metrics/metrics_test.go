package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestMetricsRecordingIncrementsCollectors exercises every Record* helper against a single Metrics instance (prometheus collectors panic on
// duplicate registration against the default registry, so New is called
// exactly once for the whole file).
func TestMetricsRecordingIncrementsCollectors(t *testing.T) {
	m := New()

	m.RecordReactorIteration("fix-reactor")
	m.RecordReactorIteration("fix-reactor")
	require.Equal(t, float64(2), testutil.ToFloat64(m.ReactorIterations.WithLabelValues("fix-reactor")))

	m.RecordRingFull("chan-1")
	require.Equal(t, float64(1), testutil.ToFloat64(m.RingBufferFull.WithLabelValues("chan-1")))

	m.RecordRingClaim("chan-1", 128)
	m.RecordRingClaim("chan-1", 64)
	require.Equal(t, float64(192), testutil.ToFloat64(m.RingBufferClaimBytes.WithLabelValues("chan-1")))

	m.RecordStateChange("FIX-A", "FIX", "LOGGED_ON")
	require.Equal(t, float64(1), testutil.ToFloat64(m.SessionStateChanges.WithLabelValues("FIX-A", "FIX", "LOGGED_ON")))

	m.RecordJournalAppend("EX_to_CL", "outbound", 0.0005)
	require.Equal(t, float64(1), testutil.ToFloat64(m.JournalEntriesTotal.WithLabelValues("EX_to_CL", "outbound")))
	require.Equal(t, 1, testutil.CollectAndCount(m.JournalAppendLatency), "one observation recorded on the latency histogram")

	m.RecordGapRecovery("FIX-A")
	require.Equal(t, float64(1), testutil.ToFloat64(m.GapRecoveries.WithLabelValues("FIX-A")))
}
