package journal

import (
	"encoding/binary"
	"fmt"
)

// Direction distinguishes an inbound (received) entry from an outbound
// (sent) one, persisted as a single byte (spec §4.9).
type Direction uint8

const (
	DirectionInbound  Direction = 0
	DirectionOutbound Direction = 1
)

// Entry is one immutable journal record (spec §4.9 "Journal entry").
type Entry struct {
	TimestampMillis int64
	SeqNum          uint32
	Direction       Direction
	Metadata        []byte
	Payload         []byte
}

// entryBodySize returns the serialized body length, excluding the 4-byte
// size prefix every on-disk entry carries.
func entryBodySize(e Entry) int {
	return 8 + 4 + 1 + 2 + len(e.Metadata) + 4 + len(e.Payload)
}

// encodeEntry serializes e's 4-byte size prefix plus body into dst, which
// must be at least 4+entryBodySize(e) bytes, returning the total bytes
// written.
func encodeEntry(dst []byte, e Entry) (int, error) {
	if len(e.Metadata) > 0xFFFF {
		return 0, fmt.Errorf("journal: metadata length %d exceeds 65535", len(e.Metadata))
	}
	body := entryBodySize(e)
	total := 4 + body
	if len(dst) < total {
		return 0, fmt.Errorf("journal: destination too small for entry: have %d need %d", len(dst), total)
	}

	binary.LittleEndian.PutUint32(dst[0:4], uint32(body))
	off := 4
	binary.LittleEndian.PutUint64(dst[off:off+8], uint64(e.TimestampMillis))
	off += 8
	binary.LittleEndian.PutUint32(dst[off:off+4], e.SeqNum)
	off += 4
	dst[off] = byte(e.Direction)
	off++
	binary.LittleEndian.PutUint16(dst[off:off+2], uint16(len(e.Metadata)))
	off += 2
	copy(dst[off:off+len(e.Metadata)], e.Metadata)
	off += len(e.Metadata)
	binary.LittleEndian.PutUint32(dst[off:off+4], uint32(len(e.Payload)))
	off += 4
	copy(dst[off:off+len(e.Payload)], e.Payload)
	off += len(e.Payload)
	return off, nil
}

// decodeEntry parses one {size|body} record starting at buf[0], returning
// the entry, total bytes consumed, and ok=false if buf does not yet hold
// a complete record (the tailer should wait for more data).
func decodeEntry(buf []byte) (Entry, int, bool, error) {
	if len(buf) < 4 {
		return Entry{}, 0, false, nil
	}
	body := int(binary.LittleEndian.Uint32(buf[0:4]))
	total := 4 + body
	if len(buf) < total {
		return Entry{}, 0, false, nil
	}
	if body < 19 {
		return Entry{}, 0, false, fmt.Errorf("journal: entry body length %d too short", body)
	}

	p := buf[4:total]
	off := 0
	ts := int64(binary.LittleEndian.Uint64(p[off : off+8]))
	off += 8
	seq := binary.LittleEndian.Uint32(p[off : off+4])
	off += 4
	dir := Direction(p[off])
	off++
	metaLen := int(binary.LittleEndian.Uint16(p[off : off+2]))
	off += 2
	if off+metaLen > len(p) {
		return Entry{}, 0, false, fmt.Errorf("journal: truncated metadata")
	}
	metadata := append([]byte(nil), p[off:off+metaLen]...)
	off += metaLen
	if off+4 > len(p) {
		return Entry{}, 0, false, fmt.Errorf("journal: truncated payload length")
	}
	payloadLen := int(binary.LittleEndian.Uint32(p[off : off+4]))
	off += 4
	if off+payloadLen > len(p) {
		return Entry{}, 0, false, fmt.Errorf("journal: truncated payload")
	}
	payload := append([]byte(nil), p[off:off+payloadLen]...)

	return Entry{
		TimestampMillis: ts,
		SeqNum:          seq,
		Direction:       dir,
		Metadata:        metadata,
		Payload:         payload,
	}, total, true, nil
}
