package fixsession

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omnibridge/engine/internal/clock"
	"github.com/omnibridge/engine/internal/fix"
	"github.com/omnibridge/engine/internal/ringbuf"
)

// fakeClock is a settable clock.Source for deterministic heartbeat and
// SendingTime assertions.
type fakeClock struct{ t time.Time }

func (c *fakeClock) NowNanos() int64  { return c.t.UnixNano() }
func (c *fakeClock) NowMillis() int64 { return c.t.UnixMilli() }
func (c *fakeClock) Now() time.Time   { return c.t }

var _ clock.Source = (*fakeClock)(nil)

// memJournal is an in-memory fixsession.JournalWriter/JournalReader fake
// that records every appended frame, keyed by direction and sequence
// number, for resend-request assertions.
type memJournal struct {
	entries []journalEntry
}

type journalEntry struct {
	dir     Direction
	seq     int64
	msgType string
	raw     []byte
}

func (j *memJournal) Append(dir Direction, seq int64, msgType string, raw []byte) error {
	cp := append([]byte(nil), raw...)
	j.entries = append(j.entries, journalEntry{dir: dir, seq: seq, msgType: msgType, raw: cp})
	return nil
}

func (j *memJournal) FindOutboundBySeq(seq int64) ([]byte, bool, error) {
	for _, e := range j.entries {
		if e.dir == DirectionOutbound && e.seq == seq {
			return e.raw, true, nil
		}
	}
	return nil, false, nil
}

// drainRing reads every committed record out of rb as a slice of byte
// slices, in commit order.
func drainRing(rb *ringbuf.RingBuffer) [][]byte {
	var out [][]byte
	rb.Read(func(_ int32, buf []byte, offset, length int) bool {
		cp := append([]byte(nil), buf[offset:offset+length]...)
		out = append(out, cp)
		return true
	})
	return out
}

func newTestSession(t *testing.T, role Role, resetOnLogon bool) (*Session, *ringbuf.RingBuffer, *memJournal, *fakeClock) {
	t.Helper()
	rb := ringbuf.New(1 << 16)
	j := &memJournal{}
	fc := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	cfg := Config{
		ID: SessionID{
			BeginString:  fix.BeginStringFIX44,
			SenderCompID: "SENDER",
			TargetCompID: "TARGET",
		},
		Role:              role,
		HeartbeatInterval: 1,
		ResetOnLogon:      resetOnLogon,
		BodyLengthWidth:   4,
		MsgSeqNumWidth:    1,
		BufferCapacity:    512,
	}
	s, err := New(cfg, rb, fc, j, j)
	require.NoError(t, err)
	return s, rb, j, fc
}

// buildPeerMessage encodes a message as if sent by the remote peer
// (SenderCompID/TargetCompID swapped relative to the session under test),
// for feeding into ProcessInbound.
func buildPeerMessage(t *testing.T, msgType string, seq int64, set func(m *fix.OutgoingMessage)) []byte {
	t.Helper()
	m, err := fix.NewOutgoingMessage(fix.OutgoingMessageConfig{
		BeginString:     fix.BeginStringFIX44,
		MsgType:         msgType,
		SenderCompID:    "TARGET",
		TargetCompID:    "SENDER",
		BodyLengthWidth: 4,
		MsgSeqNumWidth:  1,
		BufferCapacity:  512,
	})
	require.NoError(t, err)
	if set != nil {
		set(m)
	}
	encoded, err := m.PrepareForSend(seq, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
	require.NoError(t, err)
	return encoded
}

// recordingListener captures lifecycle/traffic callbacks for assertions.
type recordingListener struct {
	states        [][2]State
	messages      []string
	rejectReasons []string
}

func (l *recordingListener) OnStateChange(sess *Session, from, to State) {
	l.states = append(l.states, [2]State{from, to})
}
func (l *recordingListener) OnMessage(sess *Session, dir Direction, msgType string, seqNum int64, raw []byte) {
	l.messages = append(l.messages, msgType)
}
func (l *recordingListener) OnLogonRejected(sess *Session, reason string) {
	l.rejectReasons = append(l.rejectReasons, reason)
}

func TestAcceptorLogonFlow(t *testing.T) {
	s, rb, _, _ := newTestSession(t, RoleAcceptor, false)
	require.NoError(t, s.Connect())
	require.Equal(t, StateConnected, s.State())

	logon := buildPeerMessage(t, fix.MsgTypeLogon, 1, func(m *fix.OutgoingMessage) {
		require.NoError(t, m.SetInt(fix.TagHeartBtInt, 30))
	})
	require.NoError(t, s.ProcessInbound(logon))

	require.Equal(t, StateLoggedOn, s.State())
	require.Equal(t, int64(2), s.InboundNextExpected())

	sent := drainRing(rb)
	require.Len(t, sent, 1, "acceptor must answer inbound Logon with its own Logon")
	in := fix.NewIncomingMessage()
	require.NoError(t, in.Parse(sent[0]))
	require.True(t, in.MsgType.Equal(fix.MsgTypeLogon))
}

// TestResendOnGapScenarioB is spec §8 scenario B: session LoggedOn,
// next-expected=5, peer sends MsgSeqNum=7 -> engine emits
// ResendRequest(BeginSeqNo=5, EndSeqNo=0) and transitions to Resending
// without advancing inboundNextExpected.
func TestResendOnGapScenarioB(t *testing.T) {
	s, rb, _, _ := newTestSession(t, RoleInitiator, false)
	require.NoError(t, s.Connect())
	require.NoError(t, s.transition(StateLoggedOn))
	s.SetIncomingSeq(5)

	gapMsg := buildPeerMessage(t, fix.MsgTypeHeartbeat, 7, nil)
	require.NoError(t, s.ProcessInbound(gapMsg))

	require.Equal(t, StateResending, s.State())
	require.Equal(t, int64(5), s.InboundNextExpected(), "gap must not advance inboundNextExpected")

	sent := drainRing(rb)
	require.Len(t, sent, 1)
	in := fix.NewIncomingMessage()
	require.NoError(t, in.Parse(sent[0]))
	require.True(t, in.MsgType.Equal(fix.MsgTypeResendRequest))
	begin, ok := in.GetInt(fix.TagBeginSeqNo)
	require.True(t, ok)
	require.Equal(t, int64(5), begin)
	end, ok := in.GetInt(fix.TagEndSeqNo)
	require.True(t, ok)
	require.Equal(t, int64(0), end)
}

// TestResendRequestReplaysWithPossDupAndOrigSendingTime is spec §8
// testable property 7: replayed messages carry PossDupFlag=Y and
// OrigSendingTime equal to the original SendingTime.
func TestResendRequestReplaysWithPossDupAndOrigSendingTime(t *testing.T) {
	s, rb, j, fc := newTestSession(t, RoleAcceptor, false)
	require.NoError(t, s.Connect())
	require.NoError(t, s.transition(StateLoggedOn))

	// Populate the journal as if messages 1 and 2 were previously sent,
	// capturing their original SendingTime.
	require.NoError(t, s.SendHeartbeat(""))
	fc.t = fc.t.Add(5 * time.Second)
	require.NoError(t, s.SendHeartbeat(""))
	drainRing(rb) // discard the two live heartbeats, keep only journal entries

	origSent := make(map[int64]string)
	for _, e := range j.entries {
		if e.dir != DirectionOutbound {
			continue
		}
		in := fix.NewIncomingMessage()
		require.NoError(t, in.Parse(e.raw))
		st, ok := in.GetStr(fix.TagSendingTime)
		require.True(t, ok)
		origSent[e.seq] = st.String()
	}

	resendReq := buildPeerMessage(t, fix.MsgTypeResendRequest, 1, func(m *fix.OutgoingMessage) {
		require.NoError(t, m.SetInt(fix.TagBeginSeqNo, 1))
		require.NoError(t, m.SetInt(fix.TagEndSeqNo, 2))
	})
	require.NoError(t, s.ProcessInbound(resendReq))

	replayed := drainRing(rb)
	require.Len(t, replayed, 2)
	for i, raw := range replayed {
		in := fix.NewIncomingMessage()
		require.NoError(t, in.Parse(raw))
		dup, ok := in.GetBool(fix.TagPossDupFlag)
		require.True(t, ok)
		require.True(t, dup)
		orig, ok := in.GetStr(fix.TagOrigSendingTime)
		require.True(t, ok)
		seq := int64(i + 1)
		require.Equal(t, origSent[seq], orig.String())
	}
}

// TestHeartbeatEmittedUnderIdleScenarioF is spec §8 scenario F.
func TestHeartbeatEmittedUnderIdleScenarioF(t *testing.T) {
	s, rb, _, fc := newTestSession(t, RoleInitiator, false)
	require.NoError(t, s.Connect())
	require.NoError(t, s.transition(StateLoggedOn))
	// Establish a baseline of recent activity on both directions, as a
	// completed logon handshake would, so Tick measures idle time from
	// "just logged on" rather than from the zero value.
	require.NoError(t, s.ProcessInbound(buildPeerMessage(t, fix.MsgTypeHeartbeat, 1, nil)))
	require.NoError(t, s.SendHeartbeat(""))
	drainRing(rb)

	fc.t = fc.t.Add(1100 * time.Millisecond)
	require.NoError(t, s.Tick(fc.NowMillis()))

	sent := drainRing(rb)
	require.Len(t, sent, 1)
	in := fix.NewIncomingMessage()
	require.NoError(t, in.Parse(sent[0]))
	require.True(t, in.MsgType.Equal(fix.MsgTypeHeartbeat))
	require.Equal(t, s.OutboundNext()-1, in.MsgSeqNum)
}

func TestLogonWithResetSeqNumFlagResetsBothSequences(t *testing.T) {
	s, _, _, _ := newTestSession(t, RoleAcceptor, false)
	require.NoError(t, s.Connect())
	s.SetOutgoingSeq(40)

	logon := buildPeerMessage(t, fix.MsgTypeLogon, 1, func(m *fix.OutgoingMessage) {
		require.NoError(t, m.SetBool(fix.TagResetSeqNumFlag, true))
	})
	require.NoError(t, s.ProcessInbound(logon))

	require.Equal(t, int64(2), s.InboundNextExpected(), "ResetSeqNumFlag sets both counters to 1, then the Logon itself advances inbound to 2")
	require.Equal(t, int64(2), s.OutboundNext(), "the acceptor's own reply Logon consumes outbound seq 1")
	require.Equal(t, StateLoggedOn, s.State())
}

// TestLowSeqNumWithPossDupRedispatchesIdempotently is spec §4.7 step 2: a
// replayed message below inboundNextExpected still reaches listeners, but
// neither advances the sequence counter nor re-appends to the journal.
func TestLowSeqNumWithPossDupRedispatchesIdempotently(t *testing.T) {
	s, rb, j, _ := newTestSession(t, RoleInitiator, false)
	ln := &recordingListener{}
	s.AddListener(ln)

	require.NoError(t, s.Connect())
	require.NoError(t, s.transition(StateLoggedOn))
	require.NoError(t, s.ProcessInbound(buildPeerMessage(t, fix.MsgTypeHeartbeat, 1, nil)))
	drainRing(rb)
	require.Equal(t, int64(2), s.InboundNextExpected())
	require.Len(t, j.entries, 1)

	replay := buildPeerMessage(t, fix.MsgTypeHeartbeat, 1, func(m *fix.OutgoingMessage) {
		require.NoError(t, m.SetBool(fix.TagPossDupFlag, true))
	})
	require.NoError(t, s.ProcessInbound(replay))

	require.Equal(t, int64(2), s.InboundNextExpected(), "replay must not advance the sequence counter")
	require.Len(t, j.entries, 1, "replay must not re-append to the journal")
	require.Len(t, ln.messages, 2, "replay must still reach listeners")
	require.Equal(t, fix.MsgTypeHeartbeat, ln.messages[1])
}

func TestLowSeqNumWithoutPossDupIsFatal(t *testing.T) {
	s, rb, _, _ := newTestSession(t, RoleInitiator, false)
	require.NoError(t, s.Connect())
	require.NoError(t, s.transition(StateLoggedOn))
	s.SetIncomingSeq(5)

	tooLow := buildPeerMessage(t, fix.MsgTypeHeartbeat, 3, nil)
	require.NoError(t, s.ProcessInbound(tooLow))

	require.Equal(t, StateDisconnected, s.State())
	sent := drainRing(rb)
	require.Len(t, sent, 1)
	in := fix.NewIncomingMessage()
	require.NoError(t, in.Parse(sent[0]))
	require.True(t, in.MsgType.Equal(fix.MsgTypeLogout))
}
