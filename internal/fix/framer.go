package fix

const (
	beginStringPrefix = "8=FIX"
	trailerLength     = len("10=") + 3 + 1 // "10=" + 3 digits + SOH
)

// Framer accumulates bytes from the TCP peer and repeatedly extracts
// complete, checksum-validated FIX messages (spec §4.5 "Framing (reader)").
// It never recurses: Feed loops explicitly, bounding the search for a new
// BeginString to the accumulation buffer's length (spec §9 third bullet,
// fixing the source's unbounded-recursion framer).
type Framer struct {
	acc []byte

	// OnProtocolError, if set, is invoked for a checksum mismatch before
	// the framer resyncs by advancing one byte. Never called for "need
	// more data" — that is not an error, just an incomplete buffer.
	OnProtocolError func(err error)
}

// NewFramer returns an empty framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends data to the accumulation buffer and extracts as many
// complete messages as are available, invoking onMessage with a view of
// each (including the BeginString through CheckSum trailer). The view is
// valid only until the next call to Feed; callers must fully parse it
// (e.g. via IncomingMessage.Parse) before returning from onMessage. If
// onMessage returns an error, Feed stops and propagates it immediately.
func (f *Framer) Feed(data []byte, onMessage func(msg []byte) error) error {
	f.acc = append(f.acc, data...)

	for {
		start := indexOfPrefix(f.acc, beginStringPrefix)
		if start < 0 {
			// No BeginString anywhere in the buffer. Keep only enough
			// trailing bytes to catch a prefix split across Feed calls.
			keep := len(beginStringPrefix) - 1
			if len(f.acc) > keep {
				f.acc = append(f.acc[:0], f.acc[len(f.acc)-keep:]...)
			}
			return nil
		}
		if start > 0 {
			f.acc = append(f.acc[:0], f.acc[start:]...)
		}

		consumed, msg, err := f.tryExtractOne()
		if err == ErrNeedMoreData {
			return nil
		}
		if pe, ok := err.(*ProtocolError); ok && pe.Kind == BadChecksum {
			if f.OnProtocolError != nil {
				f.OnProtocolError(err)
			}
			// Resync: drop one byte (spec §8 boundary behavior) and retry
			// the outer loop, which will re-scan for the next BeginString.
			f.acc = append(f.acc[:0], f.acc[1:]...)
			continue
		}
		if err != nil {
			return err
		}

		if cbErr := onMessage(msg); cbErr != nil {
			// The message has already been consumed from the accumulation
			// buffer; advance past it before propagating the callback's
			// error so the next Feed starts clean.
			f.acc = append(f.acc[:0], f.acc[consumed:]...)
			return cbErr
		}
		f.acc = append(f.acc[:0], f.acc[consumed:]...)
	}
}

// tryExtractOne attempts to locate and validate exactly one message
// starting at offset 0 of f.acc (which begins with beginStringPrefix).
// Returns the byte count to advance past the message and a view of the
// message (valid until the buffer is next mutated).
func (f *Framer) tryExtractOne() (consumed int, msg []byte, err error) {
	buf := f.acc

	sohAfterBegin := indexByte(buf, SOH)
	if sohAfterBegin < 0 {
		return 0, nil, ErrNeedMoreData
	}
	tag9Start := sohAfterBegin + 1
	if tag9Start+2 > len(buf) || buf[tag9Start] != '9' || buf[tag9Start+1] != '=' {
		return 0, nil, &ProtocolError{Kind: InvalidFraming, Detail: "expected tag 9 after BeginString"}
	}
	valStart := tag9Start + 2
	sohAfterLen := indexByte(buf[valStart:], SOH)
	if sohAfterLen < 0 {
		return 0, nil, ErrNeedMoreData
	}
	bodyLength := atoiASCII(buf[valStart : valStart+sohAfterLen])
	bodyStart := valStart + sohAfterLen + 1

	checksumFieldStart := bodyStart + bodyLength
	need := checksumFieldStart + trailerLength
	if need > len(buf) {
		return 0, nil, ErrNeedMoreData
	}

	if buf[checksumFieldStart] != '1' || buf[checksumFieldStart+1] != '0' || buf[checksumFieldStart+2] != '=' {
		return 0, nil, &ProtocolError{Kind: InvalidFraming, Detail: "malformed CheckSum tag"}
	}
	digitsOff := checksumFieldStart + 3
	if buf[digitsOff+3] != SOH {
		return 0, nil, &ProtocolError{Kind: InvalidFraming, Detail: "CheckSum field not SOH-terminated"}
	}

	sum := checksum(buf[:checksumFieldStart])
	if !checksumDigitsEqual(buf[digitsOff:digitsOff+3], sum) {
		return 0, nil, &ProtocolError{Kind: BadChecksum, Detail: "checksum mismatch"}
	}

	total := digitsOff + 4 // includes trailing SOH
	return total, buf[:total], nil
}

func indexOfPrefix(buf []byte, prefix string) int {
	if len(buf) < len(prefix) {
		return -1
	}
	for i := 0; i <= len(buf)-len(prefix); i++ {
		if string(buf[i:i+len(prefix)]) == prefix {
			return i
		}
	}
	return -1
}
