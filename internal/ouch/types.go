// Package ouch implements the fixed-width binary OUCH order-entry codec
// (spec §4.6, C7): typed flyweight decode/encode over pre-allocated
// buffers, per-version (4.2 / 5.0) layout tables, and the SoupBinTCP
// transport envelope that carries OUCH payloads on the wire (spec §6).
//
// Grounded on the teacher's internal/protocol/frame.go fixed-offset
// encode/decode discipline (here generalized to per-message-type layout
// tables instead of one fixed header) and on the compile-time fixed-offset
// struct convention in ehrlich-b-go-ublk/internal/uapi (one flat byte
// layout per record type, big-endian fields read/written at constant
// offsets with no intermediate struct allocation).
package ouch

import "fmt"

// Version selects the OUCH wire-format generation in effect for a session.
type Version int

const (
	Version42 Version = iota
	Version50
)

// MessageType is the single leading byte identifying an OUCH payload's
// shape (spec §4.6).
type MessageType byte

// Client -> server order-entry message types (same codes across 4.2/5.0;
// field layouts differ, see layout tables below).
const (
	MsgEnterOrder   MessageType = 'O'
	MsgCancelOrder  MessageType = 'X'
	MsgModifyOrder  MessageType = 'M'
)

// Server -> client order-entry message types.
const (
	MsgOrderAccepted MessageType = 'A'
	MsgOrderExecuted MessageType = 'E'
	MsgOrderCanceled MessageType = 'C'
	MsgOrderRejected MessageType = 'J'
	MsgOrderReplaced MessageType = 'U'
	MsgBrokenTrade   MessageType = 'B'
	MsgSystemEvent   MessageType = 'S'
)

// ErrUnknownMessageType is returned when Framer.Feed, WrapForReading or
// WrapForWriting meets a leading byte with no registered layout for the session's configured version.
type ErrUnknownMessageType struct {
	Type    MessageType
	Version Version
}

func (e *ErrUnknownMessageType) Error() string {
	return fmt.Sprintf("ouch: unknown message type %q for version %v", byte(e.Type), e.Version)
}

// baseLength returns the fixed base-message length (including the leading
// type byte, excluding any 5.0 appendages) for typ under ver, or ok=false
// if typ is not defined for that version.
func baseLength(ver Version, typ MessageType) (int, bool) {
	table := layout42
	if ver == Version50 {
		table = layout50
	}
	n, ok := table[typ]
	return n, ok
}

// layout42 gives the OUCH 4.2 base length per message type (spec §4.6,
// scenario D: EnterOrder is 49 bytes total including the type byte).
var layout42 = map[MessageType]int{
	MsgEnterOrder:    49,
	MsgCancelOrder:   19,
	MsgOrderAccepted: 52,
	MsgOrderExecuted: 32,
	MsgOrderCanceled: 28,
	MsgOrderRejected: 5,
	MsgBrokenTrade:   23,
	MsgSystemEvent:   6,
}

// layout50 gives the OUCH 5.0 base length per message type. 5.0 replaces
// OrderToken (14 ASCII bytes) with UserRefNum (4-byte binary), shrinking
// every message that carries an order identifier, and appends an optional
// appendages trailer (spec §4.6) whose total size is NOT part of this
// base length.
var layout50 = map[MessageType]int{
	MsgEnterOrder:    39,
	MsgCancelOrder:   9,
	MsgOrderAccepted: 42,
	MsgOrderExecuted: 25,
	MsgOrderCanceled: 19,
	MsgOrderRejected: 9,
	MsgBrokenTrade:   17,
	MsgSystemEvent:   6,
}

// Appendage is one typed trailing block in a 5.0 message: (type, length,
// bytes...). Appendage blocks are opaque to the base flyweight; callers
// interested in a specific appendage type scan the slice returned by
// Message.Appendages.
type Appendage struct {
	Type byte
	Data []byte
}
