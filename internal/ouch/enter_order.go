package ouch

// Field offsets for MsgEnterOrder under OUCH 4.2 (spec §8 scenario D: 49
// bytes total including the type byte at offset 0).
const (
	eo42OrderToken     = 1  // 14 ASCII bytes
	eo42Side           = 15 // 1 byte
	eo42Shares         = 16 // u32 BE
	eo42Symbol         = 20 // 8 ASCII bytes
	eo42Price          = 28 // i32 BE, 1/10000 units
	eo42TimeInForce    = 32 // u32 BE
	eo42Firm           = 36 // 4 ASCII bytes
	eo42Display        = 40 // 1 byte
	eo42Capacity       = 41 // 1 byte
	eo42ISO            = 42 // 1 byte (IntermarketSweepFlag)
	eo42MinQuantity    = 43 // u32 BE
	eo42CrossType      = 47 // 1 byte
	eo42CustomerType   = 48 // 1 byte
)

// Field offsets for MsgEnterOrder under OUCH 5.0: OrderToken is replaced by
// a 4-byte UserRefNum (spec §4.6), shrinking every offset after it.
const (
	eo50UserRefNum   = 1  // u32 BE
	eo50Side         = 5
	eo50Shares       = 6
	eo50Symbol       = 10
	eo50Price        = 18
	eo50TimeInForce  = 22
	eo50Firm         = 26
	eo50Display      = 30
	eo50Capacity     = 31
	eo50ISO          = 32
	eo50MinQuantity  = 33
	eo50CrossType    = 37
	eo50CustomerType = 38
)

func (m *Message) mustBeEnterOrder() {
	if m.typ != MsgEnterOrder {
		panic("ouch: field accessor called on non-EnterOrder message")
	}
}

// OrderToken returns the 14-byte client order token (4.2 only).
func (m *Message) OrderToken() (string, error) {
	m.mustBeEnterOrder()
	s, err := m.buf.GetASCIISlice(eo42OrderToken, 14)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}

// SetOrderToken writes the 14-byte client order token, space-padded by the
// caller (4.2 only).
func (m *Message) SetOrderToken(token string) error {
	m.mustBeEnterOrder()
	return m.buf.PutSlice(eo42OrderToken, padASCII(token, 14))
}

// UserRefNum returns the 4-byte order reference number (5.0 only).
func (m *Message) UserRefNum() (uint32, error) {
	m.mustBeEnterOrder()
	return m.buf.GetU32BE(eo50UserRefNum)
}

// SetUserRefNum writes the order reference number (5.0 only).
func (m *Message) SetUserRefNum(ref uint32) error {
	m.mustBeEnterOrder()
	return m.buf.PutU32BE(eo50UserRefNum, ref)
}

func (m *Message) sideOffset() int {
	if m.version == Version50 {
		return eo50Side
	}
	return eo42Side
}

// Side returns the BuySellIndicator byte ('B' or 'S').
func (m *Message) Side() (byte, error) { return m.buf.GetU8(m.sideOffset()) }

// SetSide writes the BuySellIndicator byte.
func (m *Message) SetSide(side byte) error { return m.buf.PutU8(m.sideOffset(), side) }

func (m *Message) sharesOffset() int {
	if m.version == Version50 {
		return eo50Shares
	}
	return eo42Shares
}

// Shares returns the order quantity.
func (m *Message) Shares() (uint32, error) { return m.buf.GetU32BE(m.sharesOffset()) }

// SetShares writes the order quantity.
func (m *Message) SetShares(v uint32) error { return m.buf.PutU32BE(m.sharesOffset(), v) }

func (m *Message) symbolOffset() int {
	if m.version == Version50 {
		return eo50Symbol
	}
	return eo42Symbol
}

// Symbol returns the 8-byte, space-padded instrument symbol.
func (m *Message) Symbol() (string, error) {
	s, err := m.buf.GetASCIISlice(m.symbolOffset(), 8)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}

// SetSymbol writes the 8-byte, space-padded instrument symbol.
func (m *Message) SetSymbol(sym string) error {
	return m.buf.PutSlice(m.symbolOffset(), padASCII(sym, 8))
}

func (m *Message) priceOffset() int {
	if m.version == Version50 {
		return eo50Price
	}
	return eo42Price
}

// Price returns the limit price in 1/10000 units (spec §4.6).
func (m *Message) Price() (int32, error) { return m.buf.GetI32BE(m.priceOffset()) }

// SetPrice writes the limit price in 1/10000 units.
func (m *Message) SetPrice(v int32) error { return m.buf.PutI32BE(m.priceOffset(), v) }

func (m *Message) tifOffset() int {
	if m.version == Version50 {
		return eo50TimeInForce
	}
	return eo42TimeInForce
}

// TimeInForce returns the TIF field.
func (m *Message) TimeInForce() (uint32, error) { return m.buf.GetU32BE(m.tifOffset()) }

// SetTimeInForce writes the TIF field.
func (m *Message) SetTimeInForce(v uint32) error { return m.buf.PutU32BE(m.tifOffset(), v) }

func (m *Message) firmOffset() int {
	if m.version == Version50 {
		return eo50Firm
	}
	return eo42Firm
}

// Firm returns the 4-byte, space-padded firm identifier.
func (m *Message) Firm() (string, error) {
	s, err := m.buf.GetASCIISlice(m.firmOffset(), 4)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}

// SetFirm writes the 4-byte, space-padded firm identifier.
func (m *Message) SetFirm(firm string) error {
	return m.buf.PutSlice(m.firmOffset(), padASCII(firm, 4))
}

func (m *Message) displayOffset() int {
	if m.version == Version50 {
		return eo50Display
	}
	return eo42Display
}

// Display returns the display instruction byte ('Y'/'N' per wire spec).
func (m *Message) Display() (byte, error) { return m.buf.GetU8(m.displayOffset()) }

// SetDisplay writes the display instruction byte.
func (m *Message) SetDisplay(v byte) error { return m.buf.PutU8(m.displayOffset(), v) }

func (m *Message) capacityOffset() int {
	if m.version == Version50 {
		return eo50Capacity
	}
	return eo42Capacity
}

// Capacity returns the order capacity byte.
func (m *Message) Capacity() (byte, error) { return m.buf.GetU8(m.capacityOffset()) }

// SetCapacity writes the order capacity byte.
func (m *Message) SetCapacity(v byte) error { return m.buf.PutU8(m.capacityOffset(), v) }

func (m *Message) isoOffset() int {
	if m.version == Version50 {
		return eo50ISO
	}
	return eo42ISO
}

// IntermarketSweepFlag returns the ISO flag byte.
func (m *Message) IntermarketSweepFlag() (byte, error) { return m.buf.GetU8(m.isoOffset()) }

// SetIntermarketSweepFlag writes the ISO flag byte.
func (m *Message) SetIntermarketSweepFlag(v byte) error { return m.buf.PutU8(m.isoOffset(), v) }

func (m *Message) minQuantityOffset() int {
	if m.version == Version50 {
		return eo50MinQuantity
	}
	return eo42MinQuantity
}

// MinimumQuantity returns the minimum-fill quantity.
func (m *Message) MinimumQuantity() (uint32, error) { return m.buf.GetU32BE(m.minQuantityOffset()) }

// SetMinimumQuantity writes the minimum-fill quantity.
func (m *Message) SetMinimumQuantity(v uint32) error { return m.buf.PutU32BE(m.minQuantityOffset(), v) }

func (m *Message) crossTypeOffset() int {
	if m.version == Version50 {
		return eo50CrossType
	}
	return eo42CrossType
}

// CrossType returns the cross-type byte.
func (m *Message) CrossType() (byte, error) { return m.buf.GetU8(m.crossTypeOffset()) }

// SetCrossType writes the cross-type byte.
func (m *Message) SetCrossType(v byte) error { return m.buf.PutU8(m.crossTypeOffset(), v) }

func (m *Message) customerTypeOffset() int {
	if m.version == Version50 {
		return eo50CustomerType
	}
	return eo42CustomerType
}

// CustomerType returns the customer-type byte.
func (m *Message) CustomerType() (byte, error) { return m.buf.GetU8(m.customerTypeOffset()) }

// SetCustomerType writes the customer-type byte.
func (m *Message) SetCustomerType(v byte) error { return m.buf.PutU8(m.customerTypeOffset(), v) }

// padASCII returns s truncated or space-padded to exactly width bytes.
func padASCII(s string, width int) []byte {
	out := make([]byte, width)
	for i := range out {
		out[i] = ' '
	}
	n := len(s)
	if n > width {
		n = width
	}
	copy(out, s[:n])
	return out
}
