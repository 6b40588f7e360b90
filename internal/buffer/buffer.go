// Package buffer implements the fixed-capacity byte buffer primitive (spec
// §4.1): an absolute-offset view over a byte slice with no cursor of its
// own, plus a cursor overlay for the streaming encoders.
//
// Grounded on the offset-based Marshal/Unmarshal discipline in
// internal/protocol/frame.go of the teacher repository (FrameHeader reads
// and writes every field at a known byte offset via encoding/binary), here
// generalized into a reusable view type so the FIX and OUCH codecs never
// allocate on the hot path.
package buffer

import "fmt"

// ErrOutOfBounds is returned by any access whose offset+length exceeds the
// buffer's capacity.
type ErrOutOfBounds struct {
	Offset, Length, Capacity int
}

func (e *ErrOutOfBounds) Error() string {
	return fmt.Sprintf("buffer: out of bounds: offset=%d length=%d capacity=%d", e.Offset, e.Length, e.Capacity)
}

// Buffer is a passive, absolute-offset view over a caller-owned byte slice.
// It never reallocates and never tracks a position; every operation takes
// an explicit offset. The backing slice may be stack, heap, or memory-mapped
// memory (see internal/journal).
type Buffer struct {
	data []byte
}

// Wrap returns a Buffer view over data. No copy is made.
func Wrap(data []byte) Buffer {
	return Buffer{data: data}
}

// Capacity returns the number of addressable bytes.
func (b Buffer) Capacity() int { return len(b.data) }

// Bytes returns the full backing slice. Callers must not retain it past the
// buffer's lifetime if the buffer wraps pooled or memory-mapped memory.
func (b Buffer) Bytes() []byte { return b.data }

func (b Buffer) bounds(off, length int) error {
	if off < 0 || length < 0 || off+length > len(b.data) {
		return &ErrOutOfBounds{Offset: off, Length: length, Capacity: len(b.data)}
	}
	return nil
}

// GetU8 reads a single byte at off.
func (b Buffer) GetU8(off int) (byte, error) {
	if err := b.bounds(off, 1); err != nil {
		return 0, err
	}
	return b.data[off], nil
}

// PutU8 writes a single byte at off.
func (b Buffer) PutU8(off int, v byte) error {
	if err := b.bounds(off, 1); err != nil {
		return err
	}
	b.data[off] = v
	return nil
}

// GetU16BE reads a big-endian uint16 at off.
func (b Buffer) GetU16BE(off int) (uint16, error) {
	if err := b.bounds(off, 2); err != nil {
		return 0, err
	}
	return uint16(b.data[off])<<8 | uint16(b.data[off+1]), nil
}

// PutU16BE writes a big-endian uint16 at off.
func (b Buffer) PutU16BE(off int, v uint16) error {
	if err := b.bounds(off, 2); err != nil {
		return err
	}
	b.data[off] = byte(v >> 8)
	b.data[off+1] = byte(v)
	return nil
}

// GetU32BE reads a big-endian uint32 at off.
func (b Buffer) GetU32BE(off int) (uint32, error) {
	if err := b.bounds(off, 4); err != nil {
		return 0, err
	}
	return uint32(b.data[off])<<24 | uint32(b.data[off+1])<<16 | uint32(b.data[off+2])<<8 | uint32(b.data[off+3]), nil
}

// PutU32BE writes a big-endian uint32 at off.
func (b Buffer) PutU32BE(off int, v uint32) error {
	if err := b.bounds(off, 4); err != nil {
		return err
	}
	b.data[off] = byte(v >> 24)
	b.data[off+1] = byte(v >> 16)
	b.data[off+2] = byte(v >> 8)
	b.data[off+3] = byte(v)
	return nil
}

// GetU64BE reads a big-endian uint64 at off.
func (b Buffer) GetU64BE(off int) (uint64, error) {
	if err := b.bounds(off, 8); err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b.data[off+i])
	}
	return v, nil
}

// PutU64BE writes a big-endian uint64 at off.
func (b Buffer) PutU64BE(off int, v uint64) error {
	if err := b.bounds(off, 8); err != nil {
		return err
	}
	for i := 7; i >= 0; i-- {
		b.data[off+i] = byte(v)
		v >>= 8
	}
	return nil
}

// GetI32BE reads a big-endian signed int32 at off (OUCH prices, shares deltas).
func (b Buffer) GetI32BE(off int) (int32, error) {
	v, err := b.GetU32BE(off)
	return int32(v), err
}

// PutI32BE writes a big-endian signed int32 at off.
func (b Buffer) PutI32BE(off int, v int32) error {
	return b.PutU32BE(off, uint32(v))
}

// GetI64BE reads a big-endian signed int64 at off (FIX/OUCH sequence numbers).
func (b Buffer) GetI64BE(off int) (int64, error) {
	v, err := b.GetU64BE(off)
	return int64(v), err
}

// PutI64BE writes a big-endian signed int64 at off.
func (b Buffer) PutI64BE(off int, v int64) error {
	return b.PutU64BE(off, uint64(v))
}

// GetSlice returns a zero-copy view of length bytes starting at off.
func (b Buffer) GetSlice(off, length int) ([]byte, error) {
	if err := b.bounds(off, length); err != nil {
		return nil, err
	}
	return b.data[off : off+length], nil
}

// PutSlice copies src into the buffer starting at off.
func (b Buffer) PutSlice(off int, src []byte) error {
	if err := b.bounds(off, len(src)); err != nil {
		return err
	}
	copy(b.data[off:], src)
	return nil
}

// CopyWithin copies length bytes from src to dst within the same buffer,
// correctly handling overlap (used by the ring buffer when compacting and
// by the journal when shifting a partially-written trailer).
func (b Buffer) CopyWithin(src, dst, length int) error {
	if err := b.bounds(src, length); err != nil {
		return err
	}
	if err := b.bounds(dst, length); err != nil {
		return err
	}
	copy(b.data[dst:dst+length], b.data[src:src+length])
	return nil
}

// Fill writes v to every byte in [off, off+length) — used to zero-pad digit
// placeholders and to pre-touch pages during warmup.
func (b Buffer) Fill(off, length int, v byte) error {
	if err := b.bounds(off, length); err != nil {
		return err
	}
	region := b.data[off : off+length]
	for i := range region {
		region[i] = v
	}
	return nil
}

// Slice returns a new Buffer view over the sub-range [off, off+length),
// still backed by the same memory.
func (b Buffer) Slice(off, length int) (Buffer, error) {
	if err := b.bounds(off, length); err != nil {
		return Buffer{}, err
	}
	return Buffer{data: b.data[off : off+length]}, nil
}

// ASCIISlice is a zero-copy view over an ASCII byte range, the systems-language
// CharSequence-over-ByteBuffer idiom from spec §9: a {ptr, len} view rather
// than an owned string. Conversion to an owned string is explicit.
type ASCIISlice struct {
	b []byte
}

// String materializes an owned copy. Off the hot path only.
func (a ASCIISlice) String() string { return string(a.b) }

// Bytes returns the zero-copy view.
func (a ASCIISlice) Bytes() []byte { return a.b }

// Len returns the number of bytes in the view.
func (a ASCIISlice) Len() int { return len(a.b) }

// Equal compares against a string without allocating.
func (a ASCIISlice) Equal(s string) bool {
	if len(a.b) != len(s) {
		return false
	}
	for i := range a.b {
		if a.b[i] != s[i] {
			return false
		}
	}
	return true
}

// GetASCIISlice returns a zero-copy ASCII view of length bytes at off.
func (b Buffer) GetASCIISlice(off, length int) (ASCIISlice, error) {
	s, err := b.GetSlice(off, length)
	if err != nil {
		return ASCIISlice{}, err
	}
	return ASCIISlice{b: s}, nil
}
