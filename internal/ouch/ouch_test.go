package ouch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Scenario D (spec §8): OUCH 4.2 EnterOrder round-trip, 49 bytes.
func TestEnterOrder42RoundTrip(t *testing.T) {
	buf := make([]byte, 49)
	m, err := WrapForWriting(buf, Version42, MsgEnterOrder)
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

	require.Equal(t, byte('O'), buf[0])
	require.Equal(t, 49, len(buf))

	decoded, consumed, err := WrapForReading(buf, Version42, MsgEnterOrder)
	require.NoError(t, err)
	require.Equal(t, 49, consumed)

	token, err := decoded.OrderToken()
	require.NoError(t, err)
	require.Equal(t, "ORDER000000001", token)

	side, err := decoded.Side()
	require.NoError(t, err)
	require.Equal(t, byte('B'), side)

	shares, err := decoded.Shares()
	require.NoError(t, err)
	require.Equal(t, uint32(100), shares)

	symbol, err := decoded.Symbol()
	require.NoError(t, err)
	require.Equal(t, "AAPL    ", symbol)

	price, err := decoded.Price()
	require.NoError(t, err)
	require.Equal(t, int32(1502500), price)

	capacity, err := decoded.Capacity()
	require.NoError(t, err)
	require.Equal(t, byte('O'), capacity)
}

func TestFramerExtractsOneMessageAtATime(t *testing.T) {
	buf := make([]byte, 49)
	m, err := WrapForWriting(buf, Version42, MsgEnterOrder)
	require.NoError(t, err)
	require.NoError(t, m.SetOrderToken("A"))
	require.NoError(t, m.SetSymbol("AAPL"))

	f := NewFramer(Version42)
	var got int
	err = f.Feed(append(append([]byte{}, buf...), buf...), func(msg *Message) error {
		got++
		require.Equal(t, MsgEnterOrder, msg.Type())
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, got)
}

func TestFramerWaitsForAppendagesOn50(t *testing.T) {
	base, ok := baseLength(Version50, MsgEnterOrder)
	require.True(t, ok)

	buf := make([]byte, base+1+2+3) // base + count byte + one 3-byte block
	_, err := WrapForWriting(buf, Version50, MsgEnterOrder)
	require.NoError(t, err)
	buf[base] = 1    // appendage count
	buf[base+1] = 9  // appendage type
	buf[base+2] = 3  // appendage data length
	buf[base+3] = 42 // first appendage data byte

	f := NewFramer(Version50)

	// Feed everything except the last appendage data byte: framer must wait.
	var called bool
	require.NoError(t, f.Feed(buf[:len(buf)-1], func(msg *Message) error {
		called = true
		return nil
	}))
	require.False(t, called)

	require.NoError(t, f.Feed(buf[len(buf)-1:], func(msg *Message) error {
		called = true
		require.Len(t, msg.Appendages(), 1)
		require.Equal(t, byte(9), msg.Appendages()[0].Type)
		return nil
	}))
	require.True(t, called)
}

func TestSoupBinFramerStripsEnvelope(t *testing.T) {
	payload := []byte{byte(MsgEnterOrder), 1, 2, 3}
	dst := make([]byte, 64)
	n, err := EncodePacket(dst, PacketSequencedData, payload)
	require.NoError(t, err)

	f := NewSoupBinFramer()
	var gotType PacketType
	var gotPayload []byte
	err = f.Feed(dst[:n], func(tp PacketType, p []byte) error {
		gotType = tp
		gotPayload = append([]byte{}, p...)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, PacketSequencedData, gotType)
	require.Equal(t, payload, gotPayload)
}

func TestLoginRequestPayloadRoundTrip(t *testing.T) {
	p := LoginRequestPayload{Username: "user1", Password: "pw", RequestedSession: "", SequenceNumber: 42}
	buf := make([]byte, loginRequestPayloadLen)
	_, err := p.Encode(buf)
	require.NoError(t, err)

	got, err := DecodeLoginRequestPayload(buf)
	require.NoError(t, err)
	require.Equal(t, p, got)
}
