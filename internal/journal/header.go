// Package journal implements the per-stream, memory-mapped, append-only
// log store (spec §4.9, C10): a writer with an exclusive per-stream lock,
// a tailing reader that polls for newly appended entries, and a
// multi-stream merge reader that replays several streams in timestamp
// order. Every sent and received session message is durably recorded
// here before (outbound) or immediately after (inbound) being acted on.
//
// Grounded on golang.org/x/sys/unix.Mmap/Munmap usage in the retrieval
// pack (ehrlich-b-go-ublk/internal/uring/minimal.go: PROT_READ|
// PROT_WRITE, MAP_SHARED, explicit unmap on teardown) and on the
// header-version-tolerance idiom of the teacher's
// internal/config/manager.go (new fields added behind a version gate,
// v1 still readable). Segment integrity checking additionally reaches
// for golang.org/x/crypto/blake2b, already a teacher dependency.
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	magicV2          = "LOGSTORE"
	headerSizeV2      = 144
	headerSizeV1      = 64
	currentVersion    = uint32(2)
	decoderNameOffset = 16
	decoderNameCap    = 128 // bytes 16-143
	entryCountOffset  = 128
	writePosOffsetV2  = 136
	writePosOffsetV1  = 16
)

// ErrJournalCorrupt is returned when an existing file's header fails
// magic/version validation (spec §4.9 "JournalCorrupt").
var ErrJournalCorrupt = errors.New("journal: corrupt header")

// ErrFileFull is returned by Append when the stream has reached its
// configured maximum size (spec §4.9 "FileFull").
var ErrFileFull = errors.New("journal: file full")

// header is the in-memory view of a stream file's fixed 144-byte (v2) or
// 64-byte (v1, read-only) prologue.
type header struct {
	version     uint32
	decoderName string
	entryCount  uint64
	writePos    uint64
	legacy      bool
}

// newHeaderV2 builds a fresh version-2 header for a newly created stream
// file, ready to be serialized at file offset 0.
func newHeaderV2(decoderName string) (header, error) {
	if len(decoderName) > decoderNameCap {
		return header{}, fmt.Errorf("journal: decoder class name %q exceeds %d bytes", decoderName, decoderNameCap)
	}
	return header{
		version:     currentVersion,
		decoderName: decoderName,
		entryCount:  0,
		writePos:    headerSizeV2,
	}, nil
}

// encodeV2 serializes h into dst[:headerSizeV2].
func (h header) encodeV2(dst []byte) {
	copy(dst[0:8], magicV2)
	binary.LittleEndian.PutUint32(dst[8:12], h.version)
	binary.LittleEndian.PutUint32(dst[12:16], uint32(len(h.decoderName)))
	for i := decoderNameOffset; i < decoderNameOffset+decoderNameCap; i++ {
		dst[i] = 0
	}
	copy(dst[decoderNameOffset:decoderNameOffset+decoderNameCap], h.decoderName)
	binary.LittleEndian.PutUint64(dst[entryCountOffset:entryCountOffset+8], h.entryCount)
	binary.LittleEndian.PutUint64(dst[writePosOffsetV2:writePosOffsetV2+8], h.writePos)
}

// decodeHeader reads either header version from the start of buf, which
// must be at least headerSizeV1 bytes.
func decodeHeader(buf []byte) (header, error) {
	if len(buf) < headerSizeV1 {
		return header{}, ErrJournalCorrupt
	}
	if string(buf[0:8]) != magicV2 {
		return header{}, ErrJournalCorrupt
	}
	version := binary.LittleEndian.Uint32(buf[8:12])
	switch version {
	case 2:
		if len(buf) < headerSizeV2 {
			return header{}, ErrJournalCorrupt
		}
		nameLen := binary.LittleEndian.Uint32(buf[12:16])
		if int(nameLen) > decoderNameCap {
			return header{}, ErrJournalCorrupt
		}
		name := string(buf[decoderNameOffset : decoderNameOffset+int(nameLen)])
		entryCount := binary.LittleEndian.Uint64(buf[entryCountOffset : entryCountOffset+8])
		writePos := binary.LittleEndian.Uint64(buf[writePosOffsetV2 : writePosOffsetV2+8])
		return header{version: 2, decoderName: name, entryCount: entryCount, writePos: writePos}, nil
	case 1:
		writePos := binary.LittleEndian.Uint64(buf[writePosOffsetV1 : writePosOffsetV1+8])
		return header{version: 1, writePos: writePos, legacy: true}, nil
	default:
		return header{}, fmt.Errorf("%w: unsupported version %d", ErrJournalCorrupt, version)
	}
}

func (h header) size() int {
	if h.legacy {
		return headerSizeV1
	}
	return headerSizeV2
}

func (h *header) putEntryCount(buf []byte, n uint64) {
	h.entryCount = n
	if !h.legacy {
		binary.LittleEndian.PutUint64(buf[entryCountOffset:entryCountOffset+8], n)
	}
}

func (h *header) putWritePos(buf []byte, pos uint64) {
	h.writePos = pos
	off := writePosOffsetV2
	if h.legacy {
		off = writePosOffsetV1
	}
	binary.LittleEndian.PutUint64(buf[off:off+8], pos)
}
