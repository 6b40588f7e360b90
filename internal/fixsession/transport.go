package fixsession

import "github.com/omnibridge/engine/internal/ringbuf"

// ringTypeID is the opaque ring-buffer record type used for every FIX
// payload; the session has only one kind of outbound record (a fully
// framed message ready to write verbatim).
const ringTypeID int32 = 1

// Transport is the thin claim/write/commit contract a session needs from
// its underlying channel. netio.Channel.Ring() satisfies it directly
// (method set of *ringbuf.RingBuffer matches exactly), keeping fixsession
// decoupled from netio's epoll/reactor machinery.
type Transport interface {
	TryClaim(msgTypeID int32, length int) (ringbuf.ClaimIndex, error)
	WriteAt(ci ringbuf.ClaimIndex) []byte
	Commit(ci ringbuf.ClaimIndex)
}

// SetTransport swaps the session's underlying transport, used once the
// engine's reactor establishes or accepts the TCP connection backing this
// session (spec §4.10 "channel created on connect"). Always called from
// the same reactor goroutine that drives ProcessInbound/Tick, so no lock
// is required beyond what the session already holds for its own fields.
func (s *Session) SetTransport(t Transport) { s.transport = t }

// send enqueues a fully framed outbound message onto the transport's ring
// buffer. Returns ringbuf.ErrFull under backpressure (spec §4.2); the
// caller (the session itself, from the reactor goroutine) decides whether
// to retry or disconnect.
func send(t Transport, framed []byte) error {
	ci, err := t.TryClaim(ringTypeID, len(framed))
	if err != nil {
		return err
	}
	copy(t.WriteAt(ci), framed)
	t.Commit(ci)
	return nil
}
