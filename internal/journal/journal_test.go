package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestReplayYieldsOriginalOrderAndBytes is spec §8 scenario E: three
// entries written with distinct timestamps must come back, after a
// close/reopen cycle, in original order with byte-identical payloads.
func TestReplayYieldsOriginalOrderAndBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "EX_to_CL.log")

	s, err := OpenStream(StreamConfig{Path: path, DecoderName: "EX_to_CL", MaxFileSize: 1 << 20})
	require.NoError(t, err)

	payloads := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	timestamps := []int64{100, 200, 300}
	for i, p := range payloads {
		require.NoError(t, s.Append(DirectionOutbound, uint32(i+1), []byte("meta"), p, timestamps[i]))
	}
	require.NoError(t, s.Close())

	reopened, err := OpenStream(StreamConfig{Path: path, DecoderName: "EX_to_CL", MaxFileSize: 1 << 20})
	require.NoError(t, err)
	defer reopened.Close()

	tailer := NewTailer(reopened)
	tailer.SetPosition(PositionStart())

	for i, want := range payloads {
		e, ok, err := tailer.Poll(10 * time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok, "entry %d should be present", i)
		require.Equal(t, timestamps[i], e.TimestampMillis)
		require.Equal(t, uint32(i+1), e.SeqNum)
		require.Equal(t, want, e.Payload)
		require.Equal(t, []byte("meta"), e.Metadata)
	}

	_, ok, err := tailer.Poll(5 * time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSanitizeStreamName(t *testing.T) {
	require.Equal(t, "EX_to_CL", SanitizeStreamName("EX->CL"))
	require.Equal(t, "SENDER_FIX.4.4_TARGET", SanitizeStreamName("SENDER/FIX.4.4/TARGET"))
}

func TestFileFullRejectsOversizedAppend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.log")

	s, err := OpenStream(StreamConfig{Path: path, DecoderName: "tiny", MaxFileSize: headerSizeV2 + 32})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append(DirectionInbound, 1, nil, []byte("ok"), 1))
	err = s.Append(DirectionInbound, 2, nil, make([]byte, 64), 2)
	require.ErrorIs(t, err, ErrFileFull)
}

func TestMergeReaderOrdersByTimestampThenStreamName(t *testing.T) {
	dir := t.TempDir()
	streamA, err := OpenStream(StreamConfig{Path: filepath.Join(dir, "A.log"), DecoderName: "A", MaxFileSize: 1 << 20})
	require.NoError(t, err)
	defer streamA.Close()
	streamB, err := OpenStream(StreamConfig{Path: filepath.Join(dir, "B.log"), DecoderName: "B", MaxFileSize: 1 << 20})
	require.NoError(t, err)
	defer streamB.Close()

	require.NoError(t, streamA.Append(DirectionOutbound, 1, nil, []byte("a1"), 100))
	require.NoError(t, streamB.Append(DirectionOutbound, 1, nil, []byte("b1"), 100)) // tie on timestamp
	require.NoError(t, streamA.Append(DirectionOutbound, 2, nil, []byte("a2"), 300))
	require.NoError(t, streamB.Append(DirectionOutbound, 2, nil, []byte("b2"), 200))

	tailA := NewTailer(streamA)
	tailA.SetPosition(PositionStart())
	tailB := NewTailer(streamB)
	tailB.SetPosition(PositionStart())

	mr := NewMergeReader(map[string]*Tailer{"A": tailA, "B": tailB})

	var order []string
	for i := 0; i < 4; i++ {
		name, e, ok, err := mr.Next(5 * time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)
		order = append(order, name+":"+string(e.Payload))
	}
	require.Equal(t, []string{"A:a1", "B:b1", "B:b2", "A:a2"}, order)
}

func TestFingerprintDetectsTamper(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fp.log")
	s, err := OpenStream(StreamConfig{Path: path, DecoderName: "fp", MaxFileSize: 1 << 20})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append(DirectionInbound, 1, nil, []byte("payload"), 1))
	want, err := s.Fingerprint()
	require.NoError(t, err)
	require.NoError(t, s.VerifyFingerprint(want))

	require.NoError(t, s.Append(DirectionInbound, 2, nil, []byte("more"), 2))
	require.Error(t, s.VerifyFingerprint(want))
}

func TestLegacyV1HeaderToleratedReadOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.fixlog")

	// Hand-build a minimal v1 header: magic + version=1 at byte 8 + write
	// position at byte 16, matching decodeHeader's legacy branch.
	buf := make([]byte, headerSizeV1)
	copy(buf[0:8], magicV2)
	buf[8] = 1 // version, little-endian u32 low byte
	writePos := uint64(headerSizeV1)
	for i := 0; i < 8; i++ {
		buf[writePosOffsetV1+i] = byte(writePos >> (8 * i))
	}

	require.NoError(t, os.WriteFile(path, buf, 0o644))

	s, err := OpenStream(StreamConfig{Path: path, DecoderName: "legacy", MaxFileSize: int64(headerSizeV1)})
	require.NoError(t, err)
	defer s.Close()

	require.True(t, s.hdr.legacy)
	err = s.Append(DirectionInbound, 1, nil, []byte("x"), 1)
	require.Error(t, err)
}
