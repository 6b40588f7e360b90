package buffer

// Cursor is a rented streaming overlay over a Buffer: it tracks a write
// position and offers append-style operations, used by the FIX encoder
// where writing is naturally sequential rather than addressed by offset.
// Reset returns the cursor to the start without touching the backing bytes.
type Cursor struct {
	buf Buffer
	pos int
}

// NewCursor wraps buf with a cursor starting at position 0.
func NewCursor(buf Buffer) *Cursor {
	return &Cursor{buf: buf}
}

// Reset rewinds the cursor to 0; the backing buffer's bytes are left as-is
// until overwritten.
func (c *Cursor) Reset() { c.pos = 0 }

// Position returns the current write offset.
func (c *Cursor) Position() int { return c.pos }

// Seek moves the cursor to an absolute offset, for rewriting a placeholder
// field (BodyLength, MsgSeqNum) after the rest of the message is laid out.
func (c *Cursor) Seek(off int) { c.pos = off }

// AppendU8 writes one byte and advances the cursor.
func (c *Cursor) AppendU8(v byte) error {
	if err := c.buf.PutU8(c.pos, v); err != nil {
		return err
	}
	c.pos++
	return nil
}

// AppendASCII writes s verbatim and advances the cursor.
func (c *Cursor) AppendASCII(s string) error {
	if err := c.buf.bounds(c.pos, len(s)); err != nil {
		return err
	}
	for i := 0; i < len(s); i++ {
		c.buf.data[c.pos+i] = s[i]
	}
	c.pos += len(s)
	return nil
}

// AppendBytes writes b verbatim and advances the cursor.
func (c *Cursor) AppendBytes(b []byte) error {
	if err := c.buf.PutSlice(c.pos, b); err != nil {
		return err
	}
	c.pos += len(b)
	return nil
}

// digitsZeroPadded renders value as width ASCII decimal digits, zero-padded,
// without an intermediate string allocation (spec §4.5 "Numeric encoding").
// value must fit in width digits (no leading sign; FIX fields are unsigned
// in the positions this is used for).
func digitsZeroPadded(dst []byte, value int64, width int) {
	for i := width - 1; i >= 0; i-- {
		dst[i] = byte('0' + value%10)
		value /= 10
	}
}

// AppendDigitsZeroPadded writes value as exactly width zero-padded ASCII
// decimal digits at the current position and advances the cursor. Used for
// BodyLength, MsgSeqNum, and CheckSum placeholders that are known-width at
// pool-construction time.
func (c *Cursor) AppendDigitsZeroPadded(value int64, width int) error {
	if err := c.buf.bounds(c.pos, width); err != nil {
		return err
	}
	digitsZeroPadded(c.buf.data[c.pos:c.pos+width], value, width)
	c.pos += width
	return nil
}

// PutDigitsZeroPaddedAt rewrites a width-digit field already laid out at an
// earlier offset (BodyLength, MsgSeqNum are written once the full message
// length is known) without disturbing the cursor.
func (c *Cursor) PutDigitsZeroPaddedAt(off int, value int64, width int) error {
	if err := c.buf.bounds(off, width); err != nil {
		return err
	}
	digitsZeroPadded(c.buf.data[off:off+width], value, width)
	return nil
}

// AppendInt writes value as its minimal-width ASCII decimal representation
// (no padding, optional leading '-'), digit by digit with no format string.
func (c *Cursor) AppendInt(value int64) error {
	neg := value < 0
	if neg {
		value = -value
	}
	var tmp [20]byte
	i := len(tmp)
	if value == 0 {
		i--
		tmp[i] = '0'
	}
	for value > 0 {
		i--
		tmp[i] = byte('0' + value%10)
		value /= 10
	}
	if neg {
		i--
		tmp[i] = '-'
	}
	return c.AppendBytes(tmp[i:])
}

// AppendFloat renders v with exactly decimals digits after the point as
// ASCII, e.g. price fields, without relying on strconv/fmt float formatting.
func (c *Cursor) AppendFloat(v float64, decimals int) error {
	neg := v < 0
	if neg {
		v = -v
	}
	scale := int64(1)
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	scaled := int64(v*float64(scale) + 0.5)
	whole := scaled / scale
	frac := scaled % scale

	if neg {
		if err := c.AppendU8('-'); err != nil {
			return err
		}
	}
	if err := c.AppendInt(whole); err != nil {
		return err
	}
	if decimals == 0 {
		return nil
	}
	if err := c.AppendU8('.'); err != nil {
		return err
	}
	return c.AppendDigitsZeroPadded(frac, decimals)
}

// AppendBool writes 'Y' or 'N'.
func (c *Cursor) AppendBool(v bool) error {
	if v {
		return c.AppendU8('Y')
	}
	return c.AppendU8('N')
}

// Buffer returns the underlying Buffer view (for checksum computation over
// the bytes written so far).
func (c *Cursor) Buffer() Buffer { return c.buf }
