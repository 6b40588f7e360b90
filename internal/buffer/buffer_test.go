package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferBigEndianRoundTrip(t *testing.T) {
	b := Wrap(make([]byte, 32))

	require.NoError(t, b.PutU32BE(0, 0xDEADBEEF))
	v, err := b.GetU32BE(0)
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), v)

	require.NoError(t, b.PutU64BE(4, 0x0102030405060708))
	v64, err := b.GetU64BE(4)
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), v64)

	require.NoError(t, b.PutI32BE(12, -12345))
	iv, err := b.GetI32BE(12)
	require.NoError(t, err)
	require.Equal(t, int32(-12345), iv)
}

func TestBufferOutOfBounds(t *testing.T) {
	b := Wrap(make([]byte, 4))
	_, err := b.GetU32BE(2)
	require.Error(t, err)
	var oob *ErrOutOfBounds
	require.ErrorAs(t, err, &oob)
}

func TestCursorDigitsZeroPadded(t *testing.T) {
	b := Wrap(make([]byte, 16))
	c := NewCursor(b)
	require.NoError(t, c.AppendDigitsZeroPadded(42, 5))
	s, err := b.GetASCIISlice(0, 5)
	require.NoError(t, err)
	require.Equal(t, "00042", s.String())
}

func TestCursorAppendIntAndFloat(t *testing.T) {
	b := Wrap(make([]byte, 32))
	c := NewCursor(b)
	require.NoError(t, c.AppendInt(-4321))
	require.NoError(t, c.AppendU8(' '))
	require.NoError(t, c.AppendFloat(150.25, 4))

	s, err := b.GetASCIISlice(0, c.Position())
	require.NoError(t, err)
	require.Equal(t, "-4321 150.2500", s.String())
}

func TestASCIISliceEqual(t *testing.T) {
	b := Wrap([]byte("FIX.4.4"))
	s, err := b.GetASCIISlice(0, 7)
	require.NoError(t, err)
	require.True(t, s.Equal("FIX.4.4"))
	require.False(t, s.Equal("FIX.4.2"))
}
