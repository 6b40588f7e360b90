package ouchsession

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omnibridge/engine/internal/clock"
	"github.com/omnibridge/engine/internal/ouch"
	"github.com/omnibridge/engine/internal/ringbuf"
)

// fakeClock is a settable clock.Source, mirroring fixsession's test fake.
type fakeClock struct{ t time.Time }

func (c *fakeClock) NowNanos() int64  { return c.t.UnixNano() }
func (c *fakeClock) NowMillis() int64 { return c.t.UnixMilli() }
func (c *fakeClock) Now() time.Time   { return c.t }

var _ clock.Source = (*fakeClock)(nil)

// memJournal is an in-memory JournalWriter fake recording every append.
type memJournal struct {
	entries []journalEntry
}

type journalEntry struct {
	dir   Direction
	seq   int64
	label string
	raw   []byte
}

func (j *memJournal) Append(dir Direction, seq int64, label string, raw []byte) error {
	cp := append([]byte(nil), raw...)
	j.entries = append(j.entries, journalEntry{dir: dir, seq: seq, label: label, raw: cp})
	return nil
}

// drainRing reads every committed record out of rb in commit order.
func drainRing(rb *ringbuf.RingBuffer) [][]byte {
	var out [][]byte
	rb.Read(func(_ int32, buf []byte, offset, length int) bool {
		cp := append([]byte(nil), buf[offset:offset+length]...)
		out = append(out, cp)
		return true
	})
	return out
}

// recordingListener captures lifecycle/traffic callbacks for assertions.
type recordingListener struct {
	states         [][2]State
	messages       []ouch.MessageType
	rejectReasons  []string
}

func (l *recordingListener) OnStateChange(sess *Session, from, to State) {
	l.states = append(l.states, [2]State{from, to})
}
func (l *recordingListener) OnMessage(sess *Session, typ ouch.MessageType, raw []byte) {
	l.messages = append(l.messages, typ)
}
func (l *recordingListener) OnLoginRejected(sess *Session, reason string) {
	l.rejectReasons = append(l.rejectReasons, reason)
}

func newTestSession(t *testing.T) (*Session, *ringbuf.RingBuffer, *memJournal, *fakeClock) {
	t.Helper()
	rb := ringbuf.New(1 << 16)
	j := &memJournal{}
	fc := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	cfg := Config{
		Version:           ouch.Version42,
		Username:          "user1",
		Password:          "pw12345678",
		RequestedSession:  "",
		HeartbeatInterval: 1,
	}
	s := New(cfg, rb, fc, j)
	return s, rb, j, fc
}

func decodeSoupBin(t *testing.T, raw []byte) (ouch.PacketType, []byte) {
	t.Helper()
	f := ouch.NewSoupBinFramer()
	var typ ouch.PacketType
	var payload []byte
	err := f.Feed(raw, func(tp ouch.PacketType, p []byte) error {
		typ = tp
		payload = append([]byte{}, p...)
		return nil
	})
	require.NoError(t, err)
	return typ, payload
}

func TestLoginRequestFlowReachesLoggedIn(t *testing.T) {
	s, rb, _, _ := newTestSession(t)
	require.NoError(t, s.Connect())
	require.Equal(t, StateConnected, s.State())

	require.NoError(t, s.SendLoginRequest())
	require.Equal(t, StateLoginSent, s.State())

	sent := drainRing(rb)
	require.Len(t, sent, 1)
	typ, payload := decodeSoupBin(t, sent[0])
	require.Equal(t, ouch.PacketLoginRequest, typ)
	body, err := ouch.DecodeLoginRequestPayload(payload)
	require.NoError(t, err)
	require.Equal(t, "user1", body.Username)

	require.NoError(t, s.HandlePacket(ouch.PacketLoginAccepted, nil))
	require.Equal(t, StateLoggedIn, s.State())
}

func TestLoginRejectionNotifiesListenerAndDisconnects(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	ln := &recordingListener{}
	s.AddListener(ln)

	require.NoError(t, s.Connect())
	require.NoError(t, s.SendLoginRequest())

	require.NoError(t, s.HandlePacket(ouch.PacketLoginRejected, []byte("X")))
	require.Equal(t, StateDisconnected, s.State())
	require.Len(t, ln.rejectReasons, 1)
}

// TestHeartbeatEmittedUnderIdle mirrors fixsession's idle-heartbeat
// coverage (spec §4.8 item 3): absence of outbound traffic for the
// configured interval triggers a client heartbeat on Tick.
func TestHeartbeatEmittedUnderIdle(t *testing.T) {
	s, rb, _, fc := newTestSession(t)
	require.NoError(t, s.Connect())
	require.NoError(t, s.SendLoginRequest())
	require.NoError(t, s.HandlePacket(ouch.PacketLoginAccepted, nil))
	drainRing(rb)

	fc.t = fc.t.Add(1100 * time.Millisecond)
	require.NoError(t, s.Tick(fc.NowMillis()))

	sent := drainRing(rb)
	require.Len(t, sent, 1)
	typ, _ := decodeSoupBin(t, sent[0])
	require.Equal(t, ouch.PacketClientHeartbeat, typ)
}

// TestPeerSilenceTimeoutDisconnects: no inbound traffic for 3x the
// heartbeat interval is treated as a dead peer.
func TestPeerSilenceTimeoutDisconnects(t *testing.T) {
	s, rb, _, fc := newTestSession(t)
	require.NoError(t, s.Connect())
	require.NoError(t, s.transition(StateLoginSent))
	require.NoError(t, s.transition(StateLoggedIn))
	drainRing(rb)

	fc.t = fc.t.Add(3100 * time.Millisecond)
	require.NoError(t, s.Tick(fc.NowMillis()))

	require.Equal(t, StateDisconnected, s.State())
}

func TestLogoutRequestFlow(t *testing.T) {
	s, rb, _, _ := newTestSession(t)
	require.NoError(t, s.Connect())
	require.NoError(t, s.transition(StateLoginSent))
	require.NoError(t, s.transition(StateLoggedIn))
	drainRing(rb)

	require.NoError(t, s.SendLogoutRequest())
	require.Equal(t, StateLogoutSent, s.State())

	sent := drainRing(rb)
	require.Len(t, sent, 1)
	typ, _ := decodeSoupBin(t, sent[0])
	require.Equal(t, ouch.PacketLogoutRequest, typ)
}

func TestPeerInitiatedLogoutDisconnects(t *testing.T) {
	s, rb, _, _ := newTestSession(t)
	require.NoError(t, s.Connect())
	require.NoError(t, s.transition(StateLoginSent))
	require.NoError(t, s.transition(StateLoggedIn))
	drainRing(rb)

	require.NoError(t, s.HandlePacket(ouch.PacketLogoutRequest, nil))
	require.Equal(t, StateDisconnected, s.State())
}

func TestResetAndSetOutgoingSeq(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	require.Equal(t, int64(1), s.OutboundNext())

	s.SetOutgoingSeq(40)
	require.Equal(t, int64(40), s.OutboundNext())

	s.ResetSequences()
	require.Equal(t, int64(1), s.OutboundNext())

	// Documented no-op: OUCH has no separate inbound counter to override.
	s.SetIncomingSeq(99)
	require.Equal(t, int64(1), s.OutboundNext())
}

func TestSendOrderRejectedBeforeLoggedIn(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	require.NoError(t, s.Connect())

	err := s.SendOrder([]byte{byte(ouch.MsgEnterOrder)})
	require.Error(t, err)
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
}

// TestSendOrderRoundTripsThroughUnsequencedData exercises an OUCH
// EnterOrder (scenario D's wire shape) carried end-to-end through
// SendOrder -> SoupBin Unsequenced Data -> HandlePacket dispatch.
func TestSendOrderRoundTripsThroughUnsequencedData(t *testing.T) {
	s, rb, _, _ := newTestSession(t)
	ln := &recordingListener{}
	s.AddListener(ln)

	require.NoError(t, s.Connect())
	require.NoError(t, s.transition(StateLoginSent))
	require.NoError(t, s.transition(StateLoggedIn))
	drainRing(rb)

	buf := make([]byte, 49)
	m, err := ouch.WrapForWriting(buf, ouch.Version42, ouch.MsgEnterOrder)
	require.NoError(t, err)
	require.NoError(t, m.SetOrderToken("ORDER000000001"))
	require.NoError(t, m.SetSide('B'))
	require.NoError(t, m.SetShares(100))
	require.NoError(t, m.SetSymbol("AAPL"))
	require.NoError(t, m.SetPrice(1502500))
	require.NoError(t, m.SetTimeInForce(0))
	require.NoError(t, m.SetFirm(""))
	require.NoError(t, m.SetDisplay('N'))
	require.NoError(t, m.SetCapacity('O'))
	require.NoError(t, m.SetIntermarketSweepFlag('N'))
	require.NoError(t, m.SetMinimumQuantity(0))
	require.NoError(t, m.SetCrossType('N'))
	require.NoError(t, m.SetCustomerType(' '))

	require.NoError(t, s.SendOrder(buf))

	sent := drainRing(rb)
	require.Len(t, sent, 1)
	typ, payload := decodeSoupBin(t, sent[0])
	require.Equal(t, ouch.PacketUnsequencedData, typ)

	require.NoError(t, s.HandlePacket(typ, payload))
	require.Len(t, ln.messages, 1)
	require.Equal(t, ouch.MsgEnterOrder, ln.messages[0])
}
