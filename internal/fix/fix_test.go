package fix

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Scenario A (spec §8): minimal FIX round-trip.
func TestFramerDecodesMinimalLogon(t *testing.T) {
	raw := "8=FIX.4.4\x019=0055\x0135=0\x0149=SENDER\x0156=TARGET\x0134=1\x0152=20260101-00:00:00.000\x0110=154\x01"

	f := NewFramer()
	var got []byte
	err := f.Feed([]byte(raw), func(msg []byte) error {
		got = append([]byte{}, msg...)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []byte(raw), got)

	in := NewIncomingMessage()
	require.NoError(t, in.Parse(got))

	require.True(t, in.MsgType.Equal("0"))
	require.Equal(t, int64(1), in.MsgSeqNum)
	require.True(t, in.SenderCompID.Equal("SENDER"))
	require.True(t, in.TargetCompID.Equal("TARGET"))
}

func TestFramerNeedsMoreDataOnPartialMessage(t *testing.T) {
	raw := "8=FIX.4.4\x019=0058\x0135=0\x0149=SEN"
	f := NewFramer()
	called := false
	err := f.Feed([]byte(raw), func(msg []byte) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	require.False(t, called)
}

func TestFramerResyncsOnBadChecksum(t *testing.T) {
	bad := "8=FIX.4.4\x019=0055\x0135=0\x0149=SENDER\x0156=TARGET\x0134=1\x0152=20260101-00:00:00.000\x0110=999\x01"
	good := "8=FIX.4.4\x019=0055\x0135=0\x0149=SENDER\x0156=TARGET\x0134=1\x0152=20260101-00:00:00.000\x0110=154\x01"

	f := NewFramer()
	var protoErrs int
	f.OnProtocolError = func(err error) { protoErrs++ }

	var messages [][]byte
	err := f.Feed([]byte(bad+good), func(msg []byte) error {
		messages = append(messages, append([]byte{}, msg...))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, len(messages))
	require.Equal(t, []byte(good), messages[0])
	require.Greater(t, protoErrs, 0)
}

// Scenario invariant 2: CheckSum/BodyLength arithmetic on the encoder side,
// round-tripped through the decoder, reproduces scenario A's exact bytes.
func TestOutgoingEncoderReproducesScenarioA(t *testing.T) {
	out, err := NewOutgoingMessage(OutgoingMessageConfig{
		BeginString:     BeginStringFIX44,
		MsgType:         MsgTypeHeartbeat,
		SenderCompID:    "SENDER",
		TargetCompID:    "TARGET",
		BodyLengthWidth: 4,
		MsgSeqNumWidth:  1,
		BufferCapacity:  128,
	})
	require.NoError(t, err)

	tm, err := time.Parse(time.RFC3339, "2026-01-01T00:00:00.000Z")
	require.NoError(t, err)
	encoded, err := out.PrepareForSend(1, tm.UnixMilli())
	require.NoError(t, err)

	want := "8=FIX.4.4\x019=0055\x0135=0\x0149=SENDER\x0156=TARGET\x0134=1\x0152=20260101-00:00:00.000\x0110=154\x01"
	require.Equal(t, want, string(encoded))
}

func TestOutgoingMessageDuplicateTag(t *testing.T) {
	out, err := NewOutgoingMessage(OutgoingMessageConfig{
		BeginString:     BeginStringFIX44,
		MsgType:         MsgTypeNewOrderSingle,
		SenderCompID:    "S",
		TargetCompID:    "T",
		BodyLengthWidth: 4,
		MsgSeqNumWidth:  4,
		BufferCapacity:  256,
	})
	require.NoError(t, err)

	require.NoError(t, out.SetStr(TagAccount, "ACC1"))
	err = out.SetStr(TagAccount, "ACC2")
	var dupErr *DuplicateTagError
	require.ErrorAs(t, err, &dupErr)
	require.Equal(t, TagAccount, dupErr.Tag)
}

func TestOutgoingMessageResetClearsBodyAndBitset(t *testing.T) {
	out, err := NewOutgoingMessage(OutgoingMessageConfig{
		BeginString:     BeginStringFIX44,
		MsgType:         MsgTypeNewOrderSingle,
		SenderCompID:    "S",
		TargetCompID:    "T",
		BodyLengthWidth: 4,
		MsgSeqNumWidth:  4,
		BufferCapacity:  256,
	})
	require.NoError(t, err)
	require.NoError(t, out.SetStr(TagAccount, "ACC1"))
	out.Reset()
	require.NoError(t, out.SetStr(TagAccount, "ACC2"))
}
