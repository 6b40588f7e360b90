// Package engine implements the component lifecycle and session binding
// described in spec §4.10 (C11): a small initialize/start/stop
// lifecycle with an explicit component state
// machine, and the Engine type that binds, per configured session, one
// session object, its codec pool, a channel (created on connect), and a
// journal stream.
//
// Grounded on the teacher's internal/circuitbreaker/breaker.go State
// enum + String() idiom (here with a five-state machine instead of
// three) and the teacher's explicit construct-and-wire main() startup
// style.
package engine

import "fmt"

// State is a component's lifecycle state (spec §4.10).
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateActive
	StateStandby
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateInitialized:
		return "INITIALIZED"
	case StateActive:
		return "ACTIVE"
	case StateStandby:
		return "STANDBY"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// InvalidState reports an illegal lifecycle transition attempt (spec
// §4.10 "Illegal transitions fail with InvalidState").
type InvalidState struct {
	Component string
	From      State
	To        State
}

func (e *InvalidState) Error() string {
	return fmt.Sprintf("engine: invalid transition for %s: %s -> %s", e.Component, e.From, e.To)
}

var legalTransitions = map[State]map[State]bool{
	StateUninitialized: {StateInitialized: true, StateStopped: true},
	StateInitialized:   {StateActive: true, StateStandby: true, StateStopped: true},
	StateActive:        {StateStandby: true, StateStopped: true},
	StateStandby:       {StateActive: true, StateStopped: true},
	StateStopped:       {},
}

// Component is anything the engine lifecycle manages: sessions, the
// reactor, the journal store, the HA arbiter. Dependencies reports the
// names of the components this one relies on; nothing in this package
// orders components by it, and Engine does not consult Component.
type Component interface {
	Name() string
	Dependencies() []string
	Initialize() error
	StartActive() error
	StartStandby() error
	Stop() error
}

// lifecycle is embeddable by Component implementations to get the state
// machine and its guarded transitions for free.
type lifecycle struct {
	name  string
	state State
}

func newLifecycle(name string) lifecycle {
	return lifecycle{name: name, state: StateUninitialized}
}

func (l *lifecycle) State() State { return l.state }

func (l *lifecycle) transition(next State) error {
	edges, ok := legalTransitions[l.state]
	if !ok || !edges[next] {
		return &InvalidState{Component: l.name, From: l.state, To: next}
	}
	l.state = next
	return nil
}
