package ouchsession

// Tick drives the session's idle timers (spec §4.8): absence of outbound
// traffic for HeartbeatInterval seconds triggers a client heartbeat;
// absence of any inbound traffic for 3x that interval is treated as a
// dead peer and disconnects.
func (s *Session) Tick(nowMillis int64) error {
	s.mu.Lock()
	state := s.state
	sinceOutbound := nowMillis - s.lastOutboundAtMillis
	sinceInbound := nowMillis - s.lastInboundAtMillis
	s.mu.Unlock()

	if state != StateLoggedIn {
		return nil
	}

	intervalMillis := int64(s.cfg.HeartbeatInterval) * 1000

	if sinceInbound >= intervalMillis*3 {
		return s.Disconnect()
	}
	if sinceOutbound >= intervalMillis {
		return s.SendHeartbeat()
	}
	return nil
}
