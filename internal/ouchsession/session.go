// Package ouchsession implements the simplified OUCH session state
// machine (spec §4.8, C9): SoupBinTCP login/logout and heartbeat
// exchange wrapping the OUCH order-entry message stream, sharing the
// mutex-guarded-transition discipline fixsession uses (grounded on the
// same internal/protocol/session.go source).
package ouchsession

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/omnibridge/engine/internal/clock"
	"github.com/omnibridge/engine/internal/ouch"
	"github.com/omnibridge/engine/internal/ringbuf"
)

// State is the OUCH session state (spec §4.8).
type State string

const (
	StateCreated      State = "CREATED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateLoginSent    State = "LOGIN_SENT"
	StateLoggedIn     State = "LOGGED_IN"
	StateLogoutSent   State = "LOGOUT_SENT"
	StateDisconnected State = "DISCONNECTED"
	StateStopped      State = "STOPPED"
)

var legalTransitions = map[State]map[State]bool{
	StateCreated:      {StateConnecting: true, StateStopped: true},
	StateConnecting:   {StateConnected: true, StateDisconnected: true, StateStopped: true},
	StateConnected:    {StateLoginSent: true, StateDisconnected: true, StateStopped: true},
	StateLoginSent:    {StateLoggedIn: true, StateDisconnected: true, StateStopped: true},
	StateLoggedIn:     {StateLogoutSent: true, StateDisconnected: true, StateStopped: true},
	StateLogoutSent:   {StateDisconnected: true, StateStopped: true},
	StateDisconnected: {StateConnecting: true, StateStopped: true},
	StateStopped:      {},
}

// StateError reports an illegal transition or operation attempt.
type StateError struct {
	Attempted string
	Current   State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("ouchsession: cannot %s in state %s", e.Attempted, e.Current)
}

// Listener observes session lifecycle and order-entry traffic.
type Listener interface {
	OnStateChange(sess *Session, from, to State)
	OnMessage(sess *Session, typ ouch.MessageType, raw []byte)
	OnLoginRejected(sess *Session, reason string)
}

// Transport is the claim/write/commit contract the session needs from the
// underlying channel (same shape as fixsession.Transport; kept as a
// separate, package-local interface so ouchsession has no dependency on
// fixsession).
type Transport interface {
	TryClaim(msgTypeID int32, length int) (ringbuf.ClaimIndex, error)
	WriteAt(ci ringbuf.ClaimIndex) []byte
	Commit(ci ringbuf.ClaimIndex)
}

// Config configures a session's identity and heartbeat cadence (spec §6
// session configuration, OUCH subset).
type Config struct {
	Version           ouch.Version
	Username          string
	Password          string
	RequestedSession  string
	HeartbeatInterval int // seconds
}

// Session is one OUCH/SoupBinTCP session (spec §4.8).
type Session struct {
	cfg Config

	mu    sync.Mutex
	state State

	nextSeq int64 // SoupBinTCP sequenced-packet counter, client side

	lastInboundAtMillis  int64
	lastOutboundAtMillis int64

	transport Transport
	clockSrc  clock.Source

	listenersPtr atomic.Pointer[[]Listener]

	journalW JournalWriter

	scratch [256]byte // encode scratch for SoupBin envelopes and Login bodies
}

// New constructs a Session in StateCreated. journalW may be nil, in which
// case traffic is not durably recorded.
func New(cfg Config, transport Transport, clockSrc clock.Source, journalW JournalWriter) *Session {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 1
	}
	if journalW == nil {
		journalW = nopJournal{}
	}
	return &Session{
		cfg:       cfg,
		state:     StateCreated,
		nextSeq:   1,
		transport: transport,
		clockSrc:  clockSrc,
		journalW:  journalW,
	}
}

// AddListener registers ln (copy-on-write, same discipline as
// fixsession.listeners).
func (s *Session) AddListener(ln Listener) {
	for {
		old := s.listenersPtr.Load()
		var cur []Listener
		if old != nil {
			cur = *old
		}
		next := append(append([]Listener{}, cur...), ln)
		if s.listenersPtr.CompareAndSwap(old, &next) {
			return
		}
	}
}

func (s *Session) snapshotListeners() []Listener {
	p := s.listenersPtr.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) transition(next State) error {
	s.mu.Lock()
	cur := s.state
	edges, ok := legalTransitions[cur]
	if !ok || !edges[next] {
		s.mu.Unlock()
		return &StateError{Attempted: fmt.Sprintf("transition to %s", next), Current: cur}
	}
	s.state = next
	s.mu.Unlock()
	for _, ln := range s.snapshotListeners() {
		ln.OnStateChange(s, cur, next)
	}
	return nil
}

func (s *Session) nowMillis() int64 { return s.clockSrc.Now().UnixMilli() }

// SetTransport swaps the session's underlying transport once the engine's
// reactor establishes or accepts the TCP connection backing it (mirrors
// fixsession.Session.SetTransport).
func (s *Session) SetTransport(t Transport) { s.transport = t }

// Connect marks the transport as connected (the engine performs the
// actual TCP connect via netio and calls this once established).
func (s *Session) Connect() error {
	if err := s.transition(StateConnecting); err != nil {
		return err
	}
	return s.transition(StateConnected)
}

// Disconnect moves to StateDisconnected from any transport-bound state.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	cur := s.state
	s.mu.Unlock()
	if cur == StateDisconnected || cur == StateStopped {
		return nil
	}
	return s.transition(StateDisconnected)
}

// Stop terminates the session permanently.
func (s *Session) Stop() error { return s.transition(StateStopped) }
