package fix

import (
	"fmt"
	"time"

	"github.com/omnibridge/engine/internal/buffer"
)

// maxBitsetTag bounds the fixed-size duplicate-tag bitset (spec §4.5 "A
// bitset detects duplicate-tag attempts"). Body fields with a tag number at
// or above this are not checked for duplicates at all; in practice
// application tags stay well under this range.
const maxBitsetTag = 2048

// OutgoingMessage is a pre-laid-out, pooled encoder flyweight (spec §4.5
// "Encoder (outgoing)"). Constructed once per pool slot with the session's
// fixed header fields at known offsets; PrepareForSend rewrites the
// variable slots (MsgSeqNum, SendingTime, BodyLength, CheckSum) and returns
// the complete encoded message with no further allocation.
type OutgoingMessage struct {
	buf buffer.Buffer
	cur *buffer.Cursor

	bodyLengthOff   int
	bodyLengthWidth int
	bodyStartOff    int

	msgSeqNumOff   int
	msgSeqNumWidth int

	sendingTimeOff int

	bodyFieldsStart int // cursor position once the fixed header is laid out
	dupSeen         [maxBitsetTag]bool
}

// OutgoingMessageConfig configures the fixed-width placeholder fields. Field
// widths are a per-session tuning knob (spec §4.5): a session expecting
// sequence numbers into the billions configures a wider MsgSeqNumWidth;
// BodyLengthWidth must be wide enough for the largest message the pool's
// buffer can hold.
type OutgoingMessageConfig struct {
	BeginString     string
	MsgType         string
	SenderCompID    string
	TargetCompID    string
	BufferCapacity  int
	BodyLengthWidth int
	MsgSeqNumWidth  int
}

// NewOutgoingMessage lays out the fixed header once; the returned flyweight
// is reused for every send by calling Reset then appending fresh body
// fields.
func NewOutgoingMessage(cfg OutgoingMessageConfig) (*OutgoingMessage, error) {
	if cfg.BufferCapacity <= 0 {
		cfg.BufferCapacity = 512
	}
	m := &OutgoingMessage{
		buf:             buffer.Wrap(make([]byte, cfg.BufferCapacity)),
		bodyLengthWidth: cfg.BodyLengthWidth,
		msgSeqNumWidth:  cfg.MsgSeqNumWidth,
	}
	m.cur = buffer.NewCursor(m.buf)

	if err := m.cur.AppendASCII("8=" + cfg.BeginString); err != nil {
		return nil, err
	}
	if err := m.cur.AppendU8(SOH); err != nil {
		return nil, err
	}

	if err := m.cur.AppendASCII("9="); err != nil {
		return nil, err
	}
	m.bodyLengthOff = m.cur.Position()
	if err := m.cur.AppendDigitsZeroPadded(0, cfg.BodyLengthWidth); err != nil {
		return nil, err
	}
	if err := m.cur.AppendU8(SOH); err != nil {
		return nil, err
	}
	m.bodyStartOff = m.cur.Position()

	if err := m.cur.AppendASCII(fmt.Sprintf("35=%s", cfg.MsgType)); err != nil {
		return nil, err
	}
	if err := m.cur.AppendU8(SOH); err != nil {
		return nil, err
	}
	if err := m.cur.AppendASCII(fmt.Sprintf("49=%s", cfg.SenderCompID)); err != nil {
		return nil, err
	}
	if err := m.cur.AppendU8(SOH); err != nil {
		return nil, err
	}
	if err := m.cur.AppendASCII(fmt.Sprintf("56=%s", cfg.TargetCompID)); err != nil {
		return nil, err
	}
	if err := m.cur.AppendU8(SOH); err != nil {
		return nil, err
	}

	if err := m.cur.AppendASCII("34="); err != nil {
		return nil, err
	}
	m.msgSeqNumOff = m.cur.Position()
	if err := m.cur.AppendDigitsZeroPadded(0, cfg.MsgSeqNumWidth); err != nil {
		return nil, err
	}
	if err := m.cur.AppendU8(SOH); err != nil {
		return nil, err
	}

	if err := m.cur.AppendASCII("52="); err != nil {
		return nil, err
	}
	m.sendingTimeOff = m.cur.Position()
	if err := m.cur.AppendBytes(make([]byte, sendingTimeWidth)); err != nil {
		return nil, err
	}
	if err := m.cur.AppendU8(SOH); err != nil {
		return nil, err
	}

	m.bodyFieldsStart = m.cur.Position()
	return m, nil
}

// Reset rewinds the cursor to just after the fixed header, clearing the
// duplicate-tag bitset, so the pooled message can be reused for the next
// outbound send.
func (m *OutgoingMessage) Reset() {
	m.cur.Seek(m.bodyFieldsStart)
	for i := range m.dupSeen {
		m.dupSeen[i] = false
	}
}

func (m *OutgoingMessage) markSeen(tag int) error {
	if tag >= 0 && tag < maxBitsetTag {
		if m.dupSeen[tag] {
			return &DuplicateTagError{Tag: tag}
		}
		m.dupSeen[tag] = true
	}
	return nil
}

// DuplicateTagError is returned when the application attempts to set the
// same tag twice on one outgoing message (spec §4.5).
type DuplicateTagError struct{ Tag int }

func (e *DuplicateTagError) Error() string {
	return fmt.Sprintf("fix: duplicate tag %d in outgoing message", e.Tag)
}

// SetStr appends tag=value for an ASCII body field.
func (m *OutgoingMessage) SetStr(tag int, value string) error {
	if err := m.markSeen(tag); err != nil {
		return err
	}
	if err := m.cur.AppendInt(int64(tag)); err != nil {
		return err
	}
	if err := m.cur.AppendU8('='); err != nil {
		return err
	}
	if err := m.cur.AppendASCII(value); err != nil {
		return err
	}
	return m.cur.AppendU8(SOH)
}

// SetInt appends tag=value with value rendered as minimal-width decimal.
func (m *OutgoingMessage) SetInt(tag int, value int64) error {
	if err := m.markSeen(tag); err != nil {
		return err
	}
	if err := m.cur.AppendInt(int64(tag)); err != nil {
		return err
	}
	if err := m.cur.AppendU8('='); err != nil {
		return err
	}
	if err := m.cur.AppendInt(value); err != nil {
		return err
	}
	return m.cur.AppendU8(SOH)
}

// SetChar appends tag=value for a single ASCII character field.
func (m *OutgoingMessage) SetChar(tag int, value byte) error {
	if err := m.markSeen(tag); err != nil {
		return err
	}
	if err := m.cur.AppendInt(int64(tag)); err != nil {
		return err
	}
	if err := m.cur.AppendU8('='); err != nil {
		return err
	}
	if err := m.cur.AppendU8(value); err != nil {
		return err
	}
	return m.cur.AppendU8(SOH)
}

// SetBool appends tag=Y or tag=N.
func (m *OutgoingMessage) SetBool(tag int, value bool) error {
	if err := m.markSeen(tag); err != nil {
		return err
	}
	if err := m.cur.AppendInt(int64(tag)); err != nil {
		return err
	}
	if err := m.cur.AppendU8('='); err != nil {
		return err
	}
	return func() error {
		if value {
			if err := m.cur.AppendU8('Y'); err != nil {
				return err
			}
		} else {
			if err := m.cur.AppendU8('N'); err != nil {
				return err
			}
		}
		return m.cur.AppendU8(SOH)
	}()
}

// AppendRaw appends already tag=value-SOH-encoded body bytes verbatim,
// bypassing duplicate-tag tracking. Used to graft a caller-supplied,
// pre-encoded application payload onto the session's pooled header
// (spec §6 "send-application-message(encoded bytes)").
func (m *OutgoingMessage) AppendRaw(raw []byte) error {
	return m.cur.AppendBytes(raw)
}

// SetFloat appends tag=value with value rendered to decimals fixed digits.
func (m *OutgoingMessage) SetFloat(tag int, value float64, decimals int) error {
	if err := m.markSeen(tag); err != nil {
		return err
	}
	if err := m.cur.AppendInt(int64(tag)); err != nil {
		return err
	}
	if err := m.cur.AppendU8('='); err != nil {
		return err
	}
	if err := m.cur.AppendFloat(value, decimals); err != nil {
		return err
	}
	return m.cur.AppendU8(SOH)
}

const sendingTimeWidth = 21 // "YYYYMMDD-HH:MM:SS.sss"

// formatSendingTime renders nowMillis (epoch milliseconds UTC) into dst,
// which must be exactly sendingTimeWidth bytes, field-by-field rather than
// through time.Format's layout scanner, keeping the hot path allocation-free.
func formatSendingTime(dst []byte, nowMillis int64) {
	tm := time.UnixMilli(nowMillis).UTC()
	year, month, day := tm.Date()
	hour, minute, sec := tm.Clock()
	nanos := tm.Nanosecond()
	millis := nanos / 1_000_000

	put4 := func(off, v int) {
		dst[off] = byte('0' + v/1000%10)
		dst[off+1] = byte('0' + v/100%10)
		dst[off+2] = byte('0' + v/10%10)
		dst[off+3] = byte('0' + v%10)
	}
	put2 := func(off, v int) {
		dst[off] = byte('0' + v/10%10)
		dst[off+1] = byte('0' + v%10)
	}

	put4(0, year)
	put2(4, int(month))
	put2(6, day)
	dst[8] = '-'
	put2(9, hour)
	dst[11] = ':'
	put2(12, minute)
	dst[14] = ':'
	put2(15, sec)
	dst[17] = '.'
	dst[18] = byte('0' + millis/100%10)
	dst[19] = byte('0' + millis/10%10)
	dst[20] = byte('0' + millis%10)
}

// PrepareForSend writes seq and the SendingTime derived from nowMillis
// (spec §4.5 steps 1-4), computes BodyLength and CheckSum, and returns the
// complete encoded message. The returned slice aliases the pool slot's
// buffer and is valid until the next Reset/PrepareForSend on this instance.
func (m *OutgoingMessage) PrepareForSend(seq int64, nowMillis int64) ([]byte, error) {
	if digitCount(seq) > m.msgSeqNumWidth {
		return nil, fmt.Errorf("fix: MsgSeqNum %d overflows configured width %d", seq, m.msgSeqNumWidth)
	}
	if err := m.cur.PutDigitsZeroPaddedAt(m.msgSeqNumOff, seq, m.msgSeqNumWidth); err != nil {
		return nil, err
	}

	var tsBuf [sendingTimeWidth]byte
	formatSendingTime(tsBuf[:], nowMillis)
	if err := m.buf.PutSlice(m.sendingTimeOff, tsBuf[:]); err != nil {
		return nil, err
	}

	bodyLength := m.cur.Position() - m.bodyStartOff
	if digitCount(int64(bodyLength)) > m.bodyLengthWidth {
		return nil, fmt.Errorf("fix: BodyLength %d overflows configured width %d", bodyLength, m.bodyLengthWidth)
	}
	if err := m.cur.PutDigitsZeroPaddedAt(m.bodyLengthOff, int64(bodyLength), m.bodyLengthWidth); err != nil {
		return nil, err
	}

	sum := checksum(m.buf.Bytes()[:m.cur.Position()])
	if err := m.cur.AppendASCII("10="); err != nil {
		return nil, err
	}
	if err := m.cur.AppendDigitsZeroPadded(int64(sum), 3); err != nil {
		return nil, err
	}
	if err := m.cur.AppendU8(SOH); err != nil {
		return nil, err
	}

	return m.buf.Bytes()[:m.cur.Position()], nil
}

func digitCount(v int64) int {
	if v == 0 {
		return 1
	}
	n := 0
	for v > 0 {
		n++
		v /= 10
	}
	return n
}
