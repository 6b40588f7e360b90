package fixsession

import "github.com/omnibridge/engine/internal/fix"

// SendLogon emits a Logon (spec §4.7): the initiator sends it to open the
// session; the acceptor sends it in reply once it has validated the
// peer's Logon. ResetSeqNumFlag, when cfg.ResetOnLogon is set, resets
// both counters to 1 before the message is built so the MsgSeqNum it
// carries is itself 1.
func (s *Session) SendLogon() error {
	if s.cfg.ResetOnLogon {
		s.ResetSequences()
	}
	m, err := s.outgoingFor(fix.MsgTypeLogon)
	if err != nil {
		return err
	}
	m.Reset()
	if err := m.SetInt(fix.TagHeartBtInt, int64(s.cfg.HeartbeatInterval)); err != nil {
		return err
	}
	if s.cfg.ResetOnLogon {
		if err := m.SetBool(fix.TagResetSeqNumFlag, true); err != nil {
			return err
		}
	}
	return s.finishAndSend(m, fix.MsgTypeLogon)
}

// SendHeartbeat emits an unsolicited or TestRequest-answering Heartbeat.
// testReqID is echoed via tag 112 when answering a TestRequest, and
// omitted (empty) for the periodic keep-alive case.
func (s *Session) SendHeartbeat(testReqID string) error {
	m, err := s.outgoingFor(fix.MsgTypeHeartbeat)
	if err != nil {
		return err
	}
	m.Reset()
	if testReqID != "" {
		if err := m.SetStr(fix.TagTestReqID, testReqID); err != nil {
			return err
		}
	}
	return s.finishAndSend(m, fix.MsgTypeHeartbeat)
}

// SendTestRequest emits a TestRequest carrying testReqID and marks it
// outstanding, which switches Tick to its 2.4x-interval inbound-silence
// disconnect check.
func (s *Session) SendTestRequest(testReqID string) error {
	m, err := s.outgoingFor(fix.MsgTypeTestRequest)
	if err != nil {
		return err
	}
	m.Reset()
	if err := m.SetStr(fix.TagTestReqID, testReqID); err != nil {
		return err
	}
	if err := s.finishAndSend(m, fix.MsgTypeTestRequest); err != nil {
		return err
	}
	s.mu.Lock()
	s.testRequestPending = true
	s.testRequestID = testReqID
	s.mu.Unlock()
	return nil
}

// SendResendRequest asks the peer to replay seqnums [from, to]. to=0 means
// "through your current high-water mark" (spec §4.7 "0 as EndSeqNo").
func (s *Session) SendResendRequest(from, to int64) error {
	m, err := s.outgoingFor(fix.MsgTypeResendRequest)
	if err != nil {
		return err
	}
	m.Reset()
	if err := m.SetInt(fix.TagBeginSeqNo, from); err != nil {
		return err
	}
	if err := m.SetInt(fix.TagEndSeqNo, to); err != nil {
		return err
	}
	if err := s.finishAndSend(m, fix.MsgTypeResendRequest); err != nil {
		return err
	}
	s.mu.Lock()
	s.resendFrom = from
	s.resendTo = to
	s.mu.Unlock()
	return s.transition(StateResending)
}

// SendSequenceReset emits a GapFill (gapFill=true, preserves the target
// sequence it skips to) or a hard reset (gapFill=false, unconditionally
// sets the peer's expectation to newSeqNo).
func (s *Session) SendSequenceReset(newSeqNo int64, gapFill bool) error {
	m, err := s.outgoingFor(fix.MsgTypeSequenceReset)
	if err != nil {
		return err
	}
	m.Reset()
	if gapFill {
		if err := m.SetBool(fix.TagGapFillFlag, true); err != nil {
			return err
		}
	}
	if err := m.SetInt(fix.TagNewSeqNo, newSeqNo); err != nil {
		return err
	}
	return s.finishAndSend(m, fix.MsgTypeSequenceReset)
}

// SendReject emits a session-level Reject referencing refSeqNum and a
// human-readable reason (spec §4.7 "malformed or out-of-context admin
// message").
func (s *Session) SendReject(refSeqNum int64, reason string) error {
	m, err := s.outgoingFor(fix.MsgTypeReject)
	if err != nil {
		return err
	}
	m.Reset()
	if err := m.SetInt(fix.TagRefSeqNum, refSeqNum); err != nil {
		return err
	}
	if err := m.SetStr(fix.TagText, reason); err != nil {
		return err
	}
	return s.finishAndSend(m, fix.MsgTypeReject)
}

// SendLogout emits a Logout, optionally carrying a reason, and moves the
// session to StateLogoutSent.
func (s *Session) SendLogout(reason string) error {
	m, err := s.outgoingFor(fix.MsgTypeLogout)
	if err != nil {
		return err
	}
	m.Reset()
	if reason != "" {
		if err := m.SetStr(fix.TagText, reason); err != nil {
			return err
		}
	}
	if err := s.finishAndSend(m, fix.MsgTypeLogout); err != nil {
		return err
	}
	return s.transition(StateLogoutSent)
}

// finishAndSend assigns the next outbound MsgSeqNum, stamps SendingTime,
// computes BodyLength/CheckSum, journals, and transmits.
func (s *Session) finishAndSend(m *fix.OutgoingMessage, msgType string) error {
	s.mu.Lock()
	seq := s.outboundNext
	s.outboundNext++
	s.mu.Unlock()

	framed, err := m.PrepareForSend(seq, s.nowMillis())
	if err != nil {
		s.mu.Lock()
		s.outboundNext--
		s.mu.Unlock()
		return err
	}
	return s.sendRaw(msgType, framed, seq)
}
