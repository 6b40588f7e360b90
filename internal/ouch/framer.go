package ouch

// Framer extracts complete OUCH order-entry messages from the payload of a
// Sequenced/Unsequenced SoupBin data packet (spec §4.6 "Framing"). Unlike
// fix.Framer it need not accumulate across reads for the common case (one
// SoupBin packet carries exactly one OUCH message), but the accumulation
// buffer is kept anyway so a payload split across TCP reads still frames
// correctly.
type Framer struct {
	version Version
	acc     []byte
}

// NewFramer returns an empty framer for the given protocol version.
func NewFramer(ver Version) *Framer {
	return &Framer{version: ver}
}

// Feed appends data and extracts as many complete messages as are
// available, invoking onMessage with each wrapped flyweight (its wire
// length is len(m.Bytes())). The message's backing bytes are a view into the framer's
// accumulation buffer and are valid only until the next Feed call.
func (f *Framer) Feed(data []byte, onMessage func(m *Message) error) error {
	f.acc = append(f.acc, data...)

	for {
		if len(f.acc) < 1 {
			return nil
		}
		typ := MessageType(f.acc[0])
		base, ok := baseLength(f.version, typ)
		if !ok {
			return &ErrUnknownMessageType{Type: typ, Version: f.version}
		}

		need := base
		if f.version == Version50 {
			if len(f.acc) < base+1 {
				return nil // need the appendage count byte first
			}
			count := int(f.acc[base])
			off := base + 1
			complete := true
			for i := 0; i < count; i++ {
				if off+2 > len(f.acc) {
					complete = false
					break
				}
				blockLen := int(f.acc[off+1])
				off += 2 + blockLen
				if off > len(f.acc) {
					complete = false
					break
				}
			}
			if !complete {
				return nil
			}
			need = off
		}

		if len(f.acc) < need {
			return nil
		}

		m, consumed, err := WrapForReading(f.acc[:need], f.version, typ)
		if err != nil {
			return err
		}
		if cbErr := onMessage(m); cbErr != nil {
			f.acc = append(f.acc[:0], f.acc[consumed:]...)
			return cbErr
		}
		f.acc = append(f.acc[:0], f.acc[consumed:]...)
	}
}
