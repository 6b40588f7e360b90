package ouch

import (
	"fmt"

	"github.com/omnibridge/engine/internal/buffer"
)

// Message is a typed flyweight view over a fixed-width OUCH payload: a
// window into an externally-owned buffer plus the version and message
// type that determine field offsets. wrap_for_reading/wrap_for_writing in
// spec §4.6 terms. WrapForReading and WrapForWriting allocate a new
// Message on every call; this package keeps no pool of them and Message
// has no Reset method.
type Message struct {
	buf        buffer.Buffer
	version    Version
	typ        MessageType
	baseLen    int
	appendages []Appendage
}

// Type returns the message's leading type byte.
func (m *Message) Type() MessageType { return m.typ }

// Version returns the OUCH wire-format generation this flyweight is
// interpreting fields under.
func (m *Message) Version() Version { return m.version }

// BaseLength returns the fixed portion's length, excluding any appendages.
func (m *Message) BaseLength() int { return m.baseLen }

// Appendages returns the parsed 5.0 appendage blocks (nil for 4.2 or a 5.0
// message carrying none).
func (m *Message) Appendages() []Appendage { return m.appendages }

// Bytes returns the full wrapped window (base message plus, for 5.0, the
// appendage count byte and blocks).
func (m *Message) Bytes() []byte { return m.buf.Bytes() }

// WrapForReading interprets buf as a complete OUCH message of typ under
// ver: buf[0] must equal typ, and buf must hold at least the base length
// (plus, for 5.0, the appendage count byte and every declared block).
// Returns the total bytes consumed (base + appendages).
func WrapForReading(buf []byte, ver Version, typ MessageType) (*Message, int, error) {
	base, ok := baseLength(ver, typ)
	if !ok {
		return nil, 0, &ErrUnknownMessageType{Type: typ, Version: ver}
	}
	if len(buf) < base {
		return nil, 0, fmt.Errorf("ouch: buffer too short for %q: have %d need %d", byte(typ), len(buf), base)
	}
	if MessageType(buf[0]) != typ {
		return nil, 0, fmt.Errorf("ouch: type byte mismatch: wrapped as %q, buffer says %q", byte(typ), buf[0])
	}

	m := &Message{version: ver, typ: typ, baseLen: base}
	total := base

	if ver == Version50 {
		countOff := base
		if len(buf) < countOff+1 {
			return nil, 0, fmt.Errorf("ouch: truncated appendage count for %q", byte(typ))
		}
		count := int(buf[countOff])
		off := countOff + 1
		for i := 0; i < count; i++ {
			if off+2 > len(buf) {
				return nil, 0, fmt.Errorf("ouch: truncated appendage header at block %d", i)
			}
			blockType := buf[off]
			blockLen := int(buf[off+1])
			dataStart := off + 2
			if dataStart+blockLen > len(buf) {
				return nil, 0, fmt.Errorf("ouch: truncated appendage block %d data", i)
			}
			m.appendages = append(m.appendages, Appendage{Type: blockType, Data: buf[dataStart : dataStart+blockLen]})
			off = dataStart + blockLen
		}
		total = off
	}

	m.buf = buffer.Wrap(buf[:total])
	return m, total, nil
}

// WrapForWriting prepares buf (which must be at least the base length for
// typ/ver) as a fresh outgoing message, writing the type byte at offset 0.
// Callers then use the typed setters before handing the slice to the
// ring-buffer claim.
func WrapForWriting(buf []byte, ver Version, typ MessageType) (*Message, error) {
	base, ok := baseLength(ver, typ)
	if !ok {
		return nil, &ErrUnknownMessageType{Type: typ, Version: ver}
	}
	if len(buf) < base {
		return nil, fmt.Errorf("ouch: buffer too short for %q: have %d need %d", byte(typ), len(buf), base)
	}
	m := &Message{version: ver, typ: typ, baseLen: base, buf: buffer.Wrap(buf[:base])}
	if err := m.buf.PutU8(0, byte(typ)); err != nil {
		return nil, err
	}
	return m, nil
}

// AppendAppendage serializes one more 5.0 appendage block into dst
// (type, length, bytes...) starting at off, returning the new offset.
// Callers lay out appendages after the base message and write the count
// byte (at m.BaseLength()) themselves once all blocks are appended.
func AppendAppendage(dst []byte, off int, a Appendage) (int, error) {
	if off+2+len(a.Data) > len(dst) {
		return 0, fmt.Errorf("ouch: appendage does not fit in buffer")
	}
	dst[off] = a.Type
	dst[off+1] = byte(len(a.Data))
	copy(dst[off+2:], a.Data)
	return off + 2 + len(a.Data), nil
}
