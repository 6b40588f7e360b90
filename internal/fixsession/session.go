package fixsession

import (
	"fmt"
	"sync"

	"github.com/omnibridge/engine/internal/clock"
	"github.com/omnibridge/engine/internal/fix"
)

// Role distinguishes the session endpoint that sends Logon first
// (Initiator) from the one that waits for and answers it (Acceptor),
// spec §4.7.
type Role uint8

const (
	RoleInitiator Role = iota
	RoleAcceptor
)

// SessionID uniquely identifies a FIX session by its comp ID pair plus
// the negotiated begin string.
type SessionID struct {
	BeginString  string
	SenderCompID string
	TargetCompID string
}

func (id SessionID) String() string {
	return fmt.Sprintf("%s:%s->%s", id.BeginString, id.SenderCompID, id.TargetCompID)
}

// Config configures a Session's fixed identity and timing (spec §6
// session configuration options).
type Config struct {
	ID                SessionID
	Role              Role
	HeartbeatInterval int // seconds
	ResetOnLogon      bool
	BodyLengthWidth   int
	MsgSeqNumWidth    int
	BufferCapacity    int
}

// Session is one FIX session's state machine, sequence-number bookkeeping,
// and message routing (spec §4.7, C8). A single reactor goroutine drives
// it: ProcessInbound, heartbeat ticks, and admin replies all run without
// additional locking from that goroutine; mu only guards fields a
// supervisory goroutine (engine lifecycle, metrics) may read concurrently.
type Session struct {
	cfg Config

	mu    sync.Mutex
	state State

	inboundNextExpected int64
	outboundNext        int64

	lastInboundAtMillis  int64
	lastOutboundAtMillis int64
	testRequestPending   bool
	testRequestID        string

	transport Transport
	clockSrc  clock.Source

	incoming *fix.IncomingMessage
	// outByType holds one pooled encoder flyweight per message type: the
	// fixed header fix.NewOutgoingMessage lays out bakes MsgType in as
	// part of the immutable prefix, so a session sending several admin
	// message types needs one instance per type rather than one shared
	// instance (spec §9 object-pool discipline, applied per distinct
	// outbound shape instead of per slot).
	outByType map[string]*fix.OutgoingMessage

	journalW JournalWriter
	journalR JournalReader

	listeners listeners

	resendFrom int64
	resendTo   int64 // last inbound seq the open gap must reach; 0 means no bound (resendComplete reports true)
}

// New constructs a Session in StateCreated with sequence numbers reset to
// 1 (spec §4.7 "initial sequence numbers"). journal may be nil, in which
// case messages are not durably recorded or replayable.
func New(cfg Config, transport Transport, clockSrc clock.Source, journalW JournalWriter, journalR JournalReader) (*Session, error) {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30
	}
	if cfg.BodyLengthWidth <= 0 {
		cfg.BodyLengthWidth = 4
	}
	if cfg.MsgSeqNumWidth <= 0 {
		cfg.MsgSeqNumWidth = 9
	}
	if journalW == nil {
		journalW = nopJournal{}
	}
	if journalR == nil {
		journalR = nopJournal{}
	}

	return &Session{
		cfg:                 cfg,
		state:               StateCreated,
		inboundNextExpected: 1,
		outboundNext:        1,
		transport:           transport,
		clockSrc:            clockSrc,
		incoming:            fix.NewIncomingMessage(),
		outByType:           make(map[string]*fix.OutgoingMessage),
		journalW:            journalW,
		journalR:            journalR,
	}, nil
}

// outgoingFor returns the pooled encoder flyweight for msgType, lazily
// constructing and caching one on first use.
func (s *Session) outgoingFor(msgType string) (*fix.OutgoingMessage, error) {
	if m, ok := s.outByType[msgType]; ok {
		return m, nil
	}
	m, err := fix.NewOutgoingMessage(fix.OutgoingMessageConfig{
		BeginString:     s.cfg.ID.BeginString,
		MsgType:         msgType,
		SenderCompID:    s.cfg.ID.SenderCompID,
		TargetCompID:    s.cfg.ID.TargetCompID,
		BufferCapacity:  s.cfg.BufferCapacity,
		BodyLengthWidth: s.cfg.BodyLengthWidth,
		MsgSeqNumWidth:  s.cfg.MsgSeqNumWidth,
	})
	if err != nil {
		return nil, err
	}
	s.outByType[msgType] = m
	return m, nil
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AddListener registers ln for state-change and message notifications.
func (s *Session) AddListener(ln Listener) { s.listeners.add(ln) }

// RemoveListener unregisters ln.
func (s *Session) RemoveListener(ln Listener) { s.listeners.remove(ln) }

func (s *Session) transition(next State) error {
	s.mu.Lock()
	cur := s.state
	if !cur.canTransitionTo(next) {
		s.mu.Unlock()
		return &StateError{Attempted: fmt.Sprintf("transition to %s", next), Current: cur}
	}
	s.state = next
	s.mu.Unlock()

	for _, ln := range s.listeners.snapshot() {
		ln.OnStateChange(s, cur, next)
	}
	return nil
}

// OutboundNext returns the next MsgSeqNum that will be assigned to an
// outgoing message.
func (s *Session) OutboundNext() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outboundNext
}

// InboundNextExpected returns the MsgSeqNum the session next expects from
// the peer.
func (s *Session) InboundNextExpected() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inboundNextExpected
}

// ResetSequences sets both sequence counters back to 1 (spec §4.7
// ResetSeqNumFlag handling and administrative reset).
func (s *Session) ResetSequences() {
	s.mu.Lock()
	s.outboundNext = 1
	s.inboundNextExpected = 1
	s.mu.Unlock()
}

// SetOutgoingSeq administratively overrides the next outbound MsgSeqNum
// (spec §4.10 sessionapi operation).
func (s *Session) SetOutgoingSeq(next int64) { s.mu.Lock(); s.outboundNext = next; s.mu.Unlock() }

// SetIncomingSeq administratively overrides the next expected inbound
// MsgSeqNum.
func (s *Session) SetIncomingSeq(next int64) {
	s.mu.Lock()
	s.inboundNextExpected = next
	s.mu.Unlock()
}

// nowMillis reads the session's clock source in epoch milliseconds.
func (s *Session) nowMillis() int64 { return s.clockSrc.Now().UnixMilli() }

// sendRaw marks the outbound sequence consumed, journals, notifies
// listeners, and hands the framed bytes to the transport.
func (s *Session) sendRaw(msgType string, framed []byte, seq int64) error {
	if err := s.journalW.Append(DirectionOutbound, seq, msgType, framed); err != nil {
		return fmt.Errorf("fixsession: journal append outbound: %w", err)
	}
	if err := send(s.transport, framed); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastOutboundAtMillis = s.nowMillisLocked()
	s.mu.Unlock()
	for _, ln := range s.listeners.snapshot() {
		ln.OnMessage(s, DirectionOutbound, msgType, seq, framed)
	}
	return nil
}

func (s *Session) nowMillisLocked() int64 { return s.clockSrc.Now().UnixMilli() }

// Connect marks the session as transport-connected (spec §4.7); the
// caller (engine) is responsible for the actual TCP connect via netio and
// calls this once the channel is established.
func (s *Session) Connect() error {
	if err := s.transition(StateConnecting); err != nil {
		return err
	}
	return s.transition(StateConnected)
}

// Disconnect moves the session to StateDisconnected from any
// transport-bound state, for use when the underlying channel closes.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	cur := s.state
	s.mu.Unlock()
	if cur == StateDisconnected || cur == StateStopped {
		return nil
	}
	return s.transition(StateDisconnected)
}

// Stop terminates the session permanently (spec §4.7 lifecycle terminal
// state).
func (s *Session) Stop() error { return s.transition(StateStopped) }
