package ouchsession

import (
	"fmt"

	"github.com/omnibridge/engine/internal/ouch"
)

const ringTypeID int32 = 1

func (s *Session) sendPacket(packetType ouch.PacketType, payload []byte) error {
	total := 2 + 1 + len(payload)
	ci, err := s.transport.TryClaim(ringTypeID, total)
	if err != nil {
		return err
	}
	dst := s.transport.WriteAt(ci)
	n, err := ouch.EncodePacket(dst, packetType, payload)
	if err != nil {
		return err
	}
	framed := dst[:n]
	seq := s.OutboundNext()
	if err := s.journalW.Append(DirectionOutbound, seq, string(byte(packetType)), framed); err != nil {
		return fmt.Errorf("ouchsession: journal append outbound: %w", err)
	}
	s.transport.Commit(ci)
	s.mu.Lock()
	s.lastOutboundAtMillis = s.nowMillis()
	s.mu.Unlock()
	return nil
}

// SendLoginRequest emits a SoupBinTCP Login Request (spec §4.8) and moves
// the session to StateLoginSent.
func (s *Session) SendLoginRequest() error {
	body := ouch.LoginRequestPayload{
		Username:         s.cfg.Username,
		Password:         s.cfg.Password,
		RequestedSession: s.cfg.RequestedSession,
		SequenceNumber:   uint64(s.OutboundNext()),
	}
	n, err := body.Encode(s.scratch[:])
	if err != nil {
		return err
	}
	if err := s.sendPacket(ouch.PacketLoginRequest, s.scratch[:n]); err != nil {
		return err
	}
	return s.transition(StateLoginSent)
}

// OutboundNext returns the next sequenced-packet number to be sent.
func (s *Session) OutboundNext() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq
}

// ResetSequences sets the client sequenced-packet counter back to 1
// (spec §6 reset-sequences session API operation, OUCH side).
func (s *Session) ResetSequences() {
	s.mu.Lock()
	s.nextSeq = 1
	s.mu.Unlock()
}

// SetOutgoingSeq administratively overrides the next sequenced-packet
// number (spec §6 set-outgoing-seq).
func (s *Session) SetOutgoingSeq(next int64) {
	s.mu.Lock()
	s.nextSeq = next
	s.mu.Unlock()
}

// SetIncomingSeq is a no-op for OUCH: SoupBinTCP numbers only the
// client-to-server stream explicitly at this layer, so there is no
// separate inbound counter to override (spec §6 documents this operation
// as FIX-specific; kept here so both bindings satisfy the same engine
// interface).
func (s *Session) SetIncomingSeq(next int64) {}

// SendHeartbeat emits a client heartbeat packet (empty payload).
func (s *Session) SendHeartbeat() error {
	return s.sendPacket(ouch.PacketClientHeartbeat, nil)
}

// SendLogoutRequest emits a Logout Request and moves to StateLogoutSent.
func (s *Session) SendLogoutRequest() error {
	if err := s.sendPacket(ouch.PacketLogoutRequest, nil); err != nil {
		return err
	}
	return s.transition(StateLogoutSent)
}

// SendOrder frames an OUCH order-entry message (e.g. EnterOrder) as a
// SoupBin Unsequenced Data packet and transmits it. raw must already be a
// complete, version-correct OUCH message (built via ouch.WrapForWriting
// plus the typed setters).
func (s *Session) SendOrder(raw []byte) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateLoggedIn {
		return &StateError{Attempted: "send order", Current: state}
	}
	return s.sendPacket(ouch.PacketUnsequencedData, raw)
}

// HandlePacket processes one SoupBinTCP envelope already stripped of its
// length/type prefix (spec §4.8): login acceptance/rejection, server
// heartbeats, and sequenced/unsequenced OUCH payloads, which are handed
// to listeners for application-level handling.
func (s *Session) HandlePacket(typ ouch.PacketType, payload []byte) error {
	s.mu.Lock()
	s.lastInboundAtMillis = s.nowMillis()
	s.mu.Unlock()

	if err := s.journalW.Append(DirectionInbound, s.OutboundNext(), string(byte(typ)), payload); err != nil {
		return fmt.Errorf("ouchsession: journal append inbound: %w", err)
	}

	switch typ {
	case ouch.PacketLoginAccepted:
		return s.transition(StateLoggedIn)
	case ouch.PacketLoginRejected:
		for _, ln := range s.snapshotListeners() {
			ln.OnLoginRejected(s, fmt.Sprintf("login rejected: %q", payload))
		}
		return s.Disconnect()
	case ouch.PacketServerHeartbeat:
		return nil
	case ouch.PacketLogoutRequest:
		return s.Disconnect()
	case ouch.PacketSequencedData, ouch.PacketUnsequencedData:
		return s.dispatchOrderMessage(payload)
	default:
		return fmt.Errorf("ouchsession: unrecognized SoupBin packet type %q", byte(typ))
	}
}

func (s *Session) dispatchOrderMessage(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("ouchsession: empty order-entry payload")
	}
	typ := ouch.MessageType(payload[0])
	for _, ln := range s.snapshotListeners() {
		ln.OnMessage(s, typ, payload)
	}
	return nil
}
