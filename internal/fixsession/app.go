package fixsession

import "github.com/omnibridge/engine/internal/fix"

// AcquireApplicationMessage returns the pooled outgoing flyweight for
// msgType, reset and ready for the caller to populate with application
// body fields before SendApplication (spec §9 object-pool discipline;
// spec §6 "send-application-message(encoded bytes)" — the flyweight is
// the zero-copy equivalent of a caller-supplied encoded buffer, since the
// session itself owns the pre-laid-out buffer the bytes must land in).
func (s *Session) AcquireApplicationMessage(msgType string) (*fix.OutgoingMessage, error) {
	m, err := s.outgoingFor(msgType)
	if err != nil {
		return nil, err
	}
	m.Reset()
	return m, nil
}

// SendApplication finalizes and transmits an application message acquired
// via AcquireApplicationMessage. It is rejected with StateError unless the
// session is LoggedOn (spec §7 StateError "attempting to send before
// logon").
func (s *Session) SendApplication(m *fix.OutgoingMessage, msgType string) error {
	if st := s.State(); st != StateLoggedOn {
		return &StateError{Attempted: "send application message", Current: st}
	}
	return s.finishAndSend(m, msgType)
}

// SendApplicationMessage is the session-API-facing form of
// send-application-message(encoded bytes) (spec §6): encoded carries the
// already tag=value-SOH-encoded application body fields, which are
// grafted onto the pooled header for msgType and transmitted.
func (s *Session) SendApplicationMessage(msgType string, encoded []byte) error {
	m, err := s.AcquireApplicationMessage(msgType)
	if err != nil {
		return err
	}
	if err := m.AppendRaw(encoded); err != nil {
		return err
	}
	return s.SendApplication(m, msgType)
}
