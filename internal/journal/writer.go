//go:build linux

package journal

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/omnibridge/engine/internal/clock"
)

const defaultMaxFileSize = 256 * 1024 * 1024

// StreamConfig configures one journal stream's backing file (spec §6
// persistence configuration: base_path, max_file_size, sync_on_write).
type StreamConfig struct {
	Path         string
	DecoderName  string
	MaxFileSize  int64
	SyncOnWrite  bool
	ClockSource  clock.Source
}

// Stream is one memory-mapped append-only journal file (spec §4.9). Its
// mutex is the "per-stream exclusive lock" the spec requires for writes;
// readers (Tailer) take it only briefly while they look at the mapped
// bytes and write position, and never hold it while waiting for new data.
type Stream struct {
	cfg StreamConfig

	mu sync.Mutex

	file *os.File
	data []byte // mmap'd region, length == cfg.MaxFileSize
	hdr  header

	closed bool
}

// OpenStream opens (or creates) the stream file at cfg.Path, mmaps it for
// the session's lifetime, and validates or writes its header (spec §4.9
// "Recovery"/header version 2; §4.9 legacy ".fixlog" v1 files are opened
// read-only and never written by this path).
func OpenStream(cfg StreamConfig) (*Stream, error) {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.ClockSource == nil {
		cfg.ClockSource = clock.Default
	}

	existed := true
	if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
		existed = false
	}

	f, err := os.OpenFile(cfg.Path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", cfg.Path, err)
	}

	if !existed {
		if err := f.Truncate(cfg.MaxFileSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("journal: truncate %s: %w", cfg.Path, err)
		}
	} else {
		fi, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		if fi.Size() < cfg.MaxFileSize {
			if err := f.Truncate(cfg.MaxFileSize); err != nil {
				f.Close()
				return nil, err
			}
		} else {
			cfg.MaxFileSize = fi.Size()
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(cfg.MaxFileSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("journal: mmap %s: %w", cfg.Path, err)
	}

	s := &Stream{cfg: cfg, file: f, data: data}

	if !existed {
		hdr, err := newHeaderV2(cfg.DecoderName)
		if err != nil {
			unix.Munmap(data)
			f.Close()
			return nil, err
		}
		hdr.encodeV2(data)
		s.hdr = hdr
	} else {
		hdr, err := decodeHeader(data)
		if err != nil {
			unix.Munmap(data)
			f.Close()
			return nil, err
		}
		s.hdr = hdr
	}

	return s, nil
}

// Append writes one entry at the current write position (spec §4.9
// "Write"). Returns ErrFileFull if the entry would not fit before
// max_file_size.
func (s *Stream) Append(dir Direction, seq uint32, metadata, payload []byte, nowMillis int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("journal: stream closed")
	}
	if s.hdr.legacy {
		return fmt.Errorf("journal: legacy v1 stream is read-only")
	}

	e := Entry{TimestampMillis: nowMillis, SeqNum: seq, Direction: dir, Metadata: metadata, Payload: payload}
	size := 4 + entryBodySize(e)
	if int64(s.hdr.writePos)+int64(size) > int64(len(s.data)) {
		return ErrFileFull
	}

	n, err := encodeEntry(s.data[s.hdr.writePos:], e)
	if err != nil {
		return err
	}
	s.hdr.putWritePos(s.data, s.hdr.writePos+uint64(n))
	s.hdr.putEntryCount(s.data, s.hdr.entryCount+1)

	if s.cfg.SyncOnWrite {
		if err := unix.Msync(s.data, unix.MS_SYNC); err != nil {
			return fmt.Errorf("journal: msync: %w", err)
		}
	}

	return nil
}

// WritePosition returns the current append offset.
func (s *Stream) WritePosition() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hdr.writePos
}

// EntryCount returns the number of entries appended so far.
func (s *Stream) EntryCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hdr.entryCount
}

// Close unmaps and closes the backing file.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := unix.Munmap(s.data); err != nil {
		return err
	}
	return s.file.Close()
}
