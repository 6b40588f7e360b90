// Package fix implements the tag=value, SOH-delimited FIX codec (spec §4.5,
// C6): a framing reader over an accumulation buffer, a read-only flyweight
// tag index for incoming messages, and a pre-laid-out encoder pool for
// outgoing messages. Grounded on the header/trailer framing idiom of the
// teacher's internal/protocol/frame.go (fixed header struct,
// Marshal/Unmarshal at known offsets), adapted to the variable-length
// tag=value grammar, plus the read/write flyweight separation spec §9 calls
// for in place of the teacher's conflated FixMessage design.
package fix

import "fmt"

// SOH is the FIX field delimiter, byte 0x01.
const SOH = 0x01

// ProtocolErrorKind tags the ProtocolError variants from spec §7.
type ProtocolErrorKind int

const (
	InvalidFraming ProtocolErrorKind = iota
	BadChecksum
	DuplicateTag
	RequiredTagMissing
	InvalidMsgType
)

func (k ProtocolErrorKind) String() string {
	switch k {
	case InvalidFraming:
		return "InvalidFraming"
	case BadChecksum:
		return "BadChecksum"
	case DuplicateTag:
		return "DuplicateTag"
	case RequiredTagMissing:
		return "RequiredTagMissing"
	case InvalidMsgType:
		return "InvalidMsgType"
	default:
		return "Unknown"
	}
}

// ProtocolError is reported to the peer via Reject; the session continues.
type ProtocolError struct {
	Kind   ProtocolErrorKind
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("fix: protocol error %s: %s", e.Kind, e.Detail)
}

// ErrNeedMoreData signals the framer has a partial message and consumed no
// bytes; the caller should feed more bytes and retry.
var ErrNeedMoreData = fmt.Errorf("fix: need more data")
