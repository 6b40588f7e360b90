package fix

import "github.com/omnibridge/engine/internal/buffer"

// maxTagsPerMessage bounds the fixed-capacity tag index table (spec §4.5
// "fixed-capacity tag-index table"). Generous for the admin + order
// messages this codec covers; Parse rejects a message with more tags than
// this with an InvalidFraming protocol error rather than growing the table.
const maxTagsPerMessage = 128

type tagLoc struct {
	tag    int
	off    int
	length int
}

// IncomingMessage is a read-only flyweight over a received FIX message: it
// indexes tag -> (offset, length) within an externally-owned buffer without
// copying any field bytes. One instance is rented per session from a pool
// and reused across parses via Reset.
type IncomingMessage struct {
	raw  buffer.Buffer
	full []byte // the message bytes this instance currently wraps

	locs [maxTagsPerMessage]tagLoc
	n    int

	MsgType       buffer.ASCIISlice
	MsgSeqNum     int64
	SenderCompID  buffer.ASCIISlice
	TargetCompID  buffer.ASCIISlice
	PossDupFlag   bool
	haveMsgSeqNum bool
}

// NewIncomingMessage constructs an empty flyweight. Pooled by the session
// per spec §9 "object pools -> arenas and indices".
func NewIncomingMessage() *IncomingMessage {
	return &IncomingMessage{}
}

// Reset clears the tag index so the flyweight can be reused for the next
// parse.
func (m *IncomingMessage) Reset() {
	m.n = 0
	m.full = nil
	m.MsgType = buffer.ASCIISlice{}
	m.MsgSeqNum = 0
	m.SenderCompID = buffer.ASCIISlice{}
	m.TargetCompID = buffer.ASCIISlice{}
	m.PossDupFlag = false
	m.haveMsgSeqNum = false
}

// Parse walks msg (a complete, checksum-validated FIX message including the
// trailing CheckSum field) exactly once, filling the tag index and caching
// the hot header fields. msg must remain valid for the flyweight's
// lifetime; callers that need to retain fields past the next Reset must
// copy via ASCIISlice.String().
func (m *IncomingMessage) Parse(msg []byte) error {
	m.Reset()
	m.full = msg
	m.raw = buffer.Wrap(msg)

	i := 0
	for i < len(msg) {
		eq := indexByte(msg[i:], '=')
		if eq < 0 {
			return &ProtocolError{Kind: InvalidFraming, Detail: "field missing '='"}
		}
		tagStart := i
		tagEnd := i + eq
		tag := atoiASCII(msg[tagStart:tagEnd])

		valStart := tagEnd + 1
		soh := indexByte(msg[valStart:], SOH)
		if soh < 0 {
			return &ProtocolError{Kind: InvalidFraming, Detail: "field missing SOH terminator"}
		}
		valEnd := valStart + soh

		if m.n >= maxTagsPerMessage {
			return &ProtocolError{Kind: InvalidFraming, Detail: "too many tags for fixed-capacity index"}
		}
		for _, l := range m.locs[:m.n] {
			if l.tag == tag {
				return &ProtocolError{Kind: DuplicateTag, Detail: itoaDetail(tag)}
			}
		}
		m.locs[m.n] = tagLoc{tag: tag, off: valStart, length: valEnd - valStart}
		m.n++

		switch tag {
		case TagMsgType:
			m.MsgType = buffer.ASCIISlice{}
			s, _ := m.raw.GetASCIISlice(valStart, valEnd-valStart)
			m.MsgType = s
		case TagMsgSeqNum:
			m.MsgSeqNum = int64(atoiASCII(msg[valStart:valEnd]))
			m.haveMsgSeqNum = true
		case TagSenderCompID:
			s, _ := m.raw.GetASCIISlice(valStart, valEnd-valStart)
			m.SenderCompID = s
		case TagTargetCompID:
			s, _ := m.raw.GetASCIISlice(valStart, valEnd-valStart)
			m.TargetCompID = s
		case TagPossDupFlag:
			m.PossDupFlag = valEnd > valStart && msg[valStart] == 'Y'
		}

		i = valEnd + 1
	}
	return nil
}

func (m *IncomingMessage) find(tag int) (tagLoc, bool) {
	for _, l := range m.locs[:m.n] {
		if l.tag == tag {
			return l, true
		}
	}
	return tagLoc{}, false
}

// HasField reports whether tag was present in the parsed message.
func (m *IncomingMessage) HasField(tag int) bool {
	_, ok := m.find(tag)
	return ok
}

// GetStr returns the raw ASCII value for tag, or ok=false if absent.
func (m *IncomingMessage) GetStr(tag int) (buffer.ASCIISlice, bool) {
	l, ok := m.find(tag)
	if !ok {
		return buffer.ASCIISlice{}, false
	}
	s, _ := m.raw.GetASCIISlice(l.off, l.length)
	return s, true
}

// GetInt returns tag's value parsed as a decimal integer, or ok=false if
// absent.
func (m *IncomingMessage) GetInt(tag int) (int64, bool) {
	l, ok := m.find(tag)
	if !ok {
		return 0, false
	}
	return int64(atoiASCII(m.full[l.off : l.off+l.length])), true
}

// GetChar returns tag's single-byte value, or ok=false if absent or not
// exactly one byte.
func (m *IncomingMessage) GetChar(tag int) (byte, bool) {
	l, ok := m.find(tag)
	if !ok || l.length != 1 {
		return 0, false
	}
	return m.full[l.off], true
}

// GetBool returns tag's 'Y'/'N' value, or ok=false if absent.
func (m *IncomingMessage) GetBool(tag int) (bool, bool) {
	c, ok := m.GetChar(tag)
	if !ok {
		return false, false
	}
	return c == 'Y', true
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func atoiASCII(b []byte) int {
	neg := false
	i := 0
	if i < len(b) && b[i] == '-' {
		neg = true
		i++
	}
	v := 0
	for ; i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			break
		}
		v = v*10 + int(b[i]-'0')
	}
	if neg {
		v = -v
	}
	return v
}

func itoaDetail(tag int) string {
	buf := [8]byte{}
	i := len(buf)
	if tag == 0 {
		return "0"
	}
	for tag > 0 {
		i--
		buf[i] = byte('0' + tag%10)
		tag /= 10
	}
	return string(buf[i:])
}
