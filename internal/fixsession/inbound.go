package fixsession

import (
	"fmt"

	"github.com/omnibridge/engine/internal/fix"
)

// ProcessInbound parses one complete, checksum-validated FIX message
// (already extracted by fix.Framer) and drives the session's recovery
// logic (spec §4.7 "per-message inbound processing"):
//
//  1. MsgSeqNum < expected and PossDupFlag unset -> fatal: Logout + Disconnect.
//  2. MsgSeqNum < expected and PossDupFlag set -> re-dispatch idempotently:
//     the message still reaches listeners via the same routing path as a
//     live message, but without re-appending to the journal or advancing
//     inboundNextExpected (it was already accounted for the first time).
//  3. MsgSeqNum > expected -> gap: ResendRequest, state -> Resending.
//  4. MsgSeqNum == expected -> dispatch (admin handled here, application
//     messages forwarded to listeners), then inboundNextExpected++.
func (s *Session) ProcessInbound(raw []byte) error {
	if err := s.incoming.Parse(raw); err != nil {
		return err
	}
	msg := s.incoming

	seq, haveSeq := msg.GetInt(fix.TagMsgSeqNum)
	if !haveSeq {
		return s.SendReject(0, "MsgSeqNum missing")
	}

	s.mu.Lock()
	expected := s.inboundNextExpected
	s.lastInboundAtMillis = s.nowMillisLocked()
	s.mu.Unlock()

	switch {
	case seq < expected:
		if !msg.PossDupFlag {
			_ = s.SendLogout(fmt.Sprintf("MsgSeqNum too low, expected %d received %d", expected, seq))
			return s.Disconnect()
		}
		return s.redispatchReplay(msg, seq, raw)
	case seq > expected:
		return s.handleGap(seq, expected)
	default:
		return s.dispatch(msg, seq, raw)
	}
}

// handleGap requests a resend for the missing range and parks the
// session in StateResending until the gap is closed. EndSeqNo is sent as
// the literal 0 the spec requires ("0 = infinity", §4.7 step 2 and §8
// boundary behavior); the locally known high-water mark (the sequence
// number the out-of-order message itself revealed) is tracked separately
// in resendTo so resendComplete can tell when the gap has actually
// closed, since the peer is never told a concrete upper bound on the
// wire.
func (s *Session) handleGap(received, expected int64) error {
	if err := s.SendResendRequest(expected, 0); err != nil {
		return err
	}
	s.mu.Lock()
	s.resendTo = received - 1
	s.mu.Unlock()
	return nil
}

// dispatch routes a message at the exactly-expected sequence number,
// advances inboundNextExpected, and notifies listeners.
func (s *Session) dispatch(msg *fix.IncomingMessage, seq int64, raw []byte) error {
	msgType, _ := msg.GetStr(fix.TagMsgType)
	mt := msgType.String()

	if err := s.journalW.Append(DirectionInbound, seq, mt, raw); err != nil {
		return fmt.Errorf("fixsession: journal append inbound: %w", err)
	}

	return s.route(mt, msg, seq, raw, true)
}

// redispatchReplay re-delivers a PossDup message whose MsgSeqNum is below
// inboundNextExpected through the same routing path as a live message
// (spec §4.7 step 2), without re-appending to the journal or advancing the
// sequence counter — both already happened the first time this sequence
// number was seen.
func (s *Session) redispatchReplay(msg *fix.IncomingMessage, seq int64, raw []byte) error {
	msgType, _ := msg.GetStr(fix.TagMsgType)
	mt := msgType.String()
	return s.route(mt, msg, seq, raw, false)
}

// route runs the per-msgType handling and listener notification shared by
// a live dispatch and an idempotent replay. advance controls whether
// inboundNextExpected moves forward and a pending resend is checked for
// completion; notifyMessage always runs so listeners see the message
// either way.
func (s *Session) route(mt string, msg *fix.IncomingMessage, seq int64, raw []byte, advance bool) error {
	var err error
	switch mt {
	case fix.MsgTypeLogon:
		err = s.handleLogon(msg)
	case fix.MsgTypeHeartbeat:
		err = s.handleHeartbeat(msg)
	case fix.MsgTypeTestRequest:
		err = s.handleTestRequest(msg)
	case fix.MsgTypeResendRequest:
		err = s.handleResendRequest(msg)
	case fix.MsgTypeSequenceReset:
		err = s.handleSequenceReset(msg, seq)
		if err != nil {
			return err
		}
		// SequenceReset (hard reset) sets inboundNextExpected directly;
		// skip the generic increment below.
		s.notifyMessage(mt, seq, raw)
		return nil
	case fix.MsgTypeReject:
		// Session-level reject from the peer: no action beyond
		// notifying listeners, handled generically below.
	case fix.MsgTypeLogout:
		err = s.handleLogout(msg)
	default:
		// Application message: advance sequence and forward.
	}
	if err != nil {
		return err
	}

	if advance {
		s.mu.Lock()
		s.inboundNextExpected = seq + 1
		wasResending := s.state == StateResending
		s.mu.Unlock()
		if wasResending && s.resendComplete() {
			_ = s.transition(StateLoggedOn)
		}
	}

	s.notifyMessage(mt, seq, raw)
	return nil
}

func (s *Session) resendComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resendTo == 0 || s.inboundNextExpected > s.resendTo
}

func (s *Session) notifyMessage(msgType string, seq int64, raw []byte) {
	for _, ln := range s.listeners.snapshot() {
		ln.OnMessage(s, DirectionInbound, msgType, seq, raw)
	}
}

func (s *Session) handleLogon(msg *fix.IncomingMessage) error {
	if resetFlag, ok := msg.GetBool(fix.TagResetSeqNumFlag); ok && resetFlag {
		s.ResetSequences()
	}
	if err := s.transition(StateLoggedOn); err != nil {
		// Acceptor: first Logon seen while merely Connected is the
		// expected path into LoggedOn; Connected -> LoggedOn is a
		// legal edge, so only a genuinely illegal transition reaches
		// here (e.g. a second unsolicited Logon).
		for _, ln := range s.listeners.snapshot() {
			ln.OnLogonRejected(s, err.Error())
		}
		return err
	}
	if s.cfg.Role == RoleAcceptor {
		return s.SendLogon()
	}
	return nil
}

func (s *Session) handleHeartbeat(msg *fix.IncomingMessage) error {
	s.mu.Lock()
	s.testRequestPending = false
	s.mu.Unlock()
	return nil
}

func (s *Session) handleTestRequest(msg *fix.IncomingMessage) error {
	id, _ := msg.GetStr(fix.TagTestReqID)
	return s.SendHeartbeat(id.String())
}

// handleResendRequest replays journaled outbound messages for
// [BeginSeqNo, EndSeqNo] with PossDupFlag set (spec §4.7 "Resend
// processing"). EndSeqNo of 0 means through the current high-water mark.
// A message that cannot be found in the journal (e.g. an admin message
// never persisted) is bridged with a SequenceReset GapFill instead of
// being individually replayed.
func (s *Session) handleResendRequest(msg *fix.IncomingMessage) error {
	from, _ := msg.GetInt(fix.TagBeginSeqNo)
	to, _ := msg.GetInt(fix.TagEndSeqNo)
	if to == 0 {
		to = s.OutboundNext() - 1
	}

	gapStart := int64(0)
	flushGap := func(upto int64) error {
		if gapStart == 0 {
			return nil
		}
		if err := s.SendSequenceReset(upto, true); err != nil {
			return err
		}
		gapStart = 0
		return nil
	}

	for seq := from; seq <= to; seq++ {
		raw, found, err := s.journalR.FindOutboundBySeq(seq)
		if err != nil {
			return err
		}
		if !found {
			if gapStart == 0 {
				gapStart = seq
			}
			continue
		}
		if err := flushGap(seq); err != nil {
			return err
		}
		dup, err := fix.InjectPossDup(raw)
		if err != nil {
			return err
		}
		if err := send(s.transport, dup); err != nil {
			return err
		}
	}
	return flushGap(to + 1)
}

func (s *Session) handleSequenceReset(msg *fix.IncomingMessage, seq int64) error {
	newSeqNo, ok := msg.GetInt(fix.TagNewSeqNo)
	if !ok {
		return s.SendReject(seq, "SequenceReset missing NewSeqNo")
	}
	gapFill, _ := msg.GetBool(fix.TagGapFillFlag)

	s.mu.Lock()
	if gapFill {
		if newSeqNo < s.inboundNextExpected {
			s.mu.Unlock()
			return s.SendReject(seq, "SequenceReset GapFill NewSeqNo below current expectation")
		}
	}
	s.inboundNextExpected = newSeqNo
	wasResending := s.state == StateResending
	s.mu.Unlock()

	if wasResending && s.resendComplete() {
		return s.transition(StateLoggedOn)
	}
	return nil
}

func (s *Session) handleLogout(msg *fix.IncomingMessage) error {
	s.mu.Lock()
	cur := s.state
	s.mu.Unlock()
	if cur == StateLogoutSent {
		return s.Disconnect()
	}
	// Peer-initiated logout: answer in kind, then disconnect.
	if err := s.SendLogout(""); err != nil {
		return err
	}
	return s.Disconnect()
}
