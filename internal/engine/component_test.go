package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLifecycleLegalTransitions(t *testing.T) {
	l := newLifecycle("comp-a")
	require.Equal(t, StateUninitialized, l.State())

	require.NoError(t, l.transition(StateInitialized))
	require.NoError(t, l.transition(StateActive))
	require.NoError(t, l.transition(StateStandby))
	require.NoError(t, l.transition(StateActive))
	require.NoError(t, l.transition(StateStopped))
	require.Equal(t, StateStopped, l.State())
}

func TestLifecycleIllegalTransitionReturnsInvalidState(t *testing.T) {
	l := newLifecycle("comp-b")

	err := l.transition(StateActive)
	require.Error(t, err)
	var invalid *InvalidState
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "comp-b", invalid.Component)
	require.Equal(t, StateUninitialized, invalid.From)
	require.Equal(t, StateActive, invalid.To)
	require.Equal(t, StateUninitialized, l.State(), "a rejected transition must not mutate state")
}

func TestLifecycleStoppedIsTerminal(t *testing.T) {
	l := newLifecycle("comp-c")
	require.NoError(t, l.transition(StateInitialized))
	require.NoError(t, l.transition(StateStopped))

	require.Error(t, l.transition(StateActive))
	require.Error(t, l.transition(StateInitialized))
}

func TestStateStringer(t *testing.T) {
	require.Equal(t, "UNINITIALIZED", StateUninitialized.String())
	require.Equal(t, "INITIALIZED", StateInitialized.String())
	require.Equal(t, "ACTIVE", StateActive.String())
	require.Equal(t, "STANDBY", StateStandby.String())
	require.Equal(t, "STOPPED", StateStopped.String())
	require.Equal(t, "UNKNOWN", State(99).String())
}
