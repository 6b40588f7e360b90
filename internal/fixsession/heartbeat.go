package fixsession

import "fmt"

// Tick drives the heartbeat timer (spec §4.7 "heartbeat production"):
// called periodically (e.g. every second) by the reactor's scheduled
// task queue with the current wall-clock time in epoch milliseconds.
//
//   - No outbound traffic for HeartbeatInterval seconds -> send Heartbeat.
//   - No inbound traffic for 1.2x HeartbeatInterval seconds and no
//     TestRequest already outstanding -> send TestRequest.
//   - A TestRequest is outstanding and no inbound traffic has arrived for
//     2.4x HeartbeatInterval seconds (measured from the last inbound
//     message) -> the peer is presumed dead: Logout and disconnect.
func (s *Session) Tick(nowMillis int64) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateLoggedOn && state != StateResending {
		return nil
	}

	intervalMillis := int64(s.cfg.HeartbeatInterval) * 1000

	s.mu.Lock()
	sinceOutbound := nowMillis - s.lastOutboundAtMillis
	sinceInbound := nowMillis - s.lastInboundAtMillis
	pending := s.testRequestPending
	s.mu.Unlock()

	if pending {
		// A TestRequest is outstanding: only the 2.4x disconnect clock
		// matters until it is answered (handleHeartbeat clears pending).
		if sinceInbound >= (intervalMillis*24)/10 {
			_ = s.SendLogout("TestRequest timed out")
			return s.Disconnect()
		}
		return nil
	}

	if sinceInbound >= (intervalMillis*12)/10 {
		return s.SendTestRequest(fmt.Sprintf("TEST-%d", nowMillis))
	}

	if sinceOutbound >= intervalMillis {
		return s.SendHeartbeat("")
	}
	return nil
}
