//go:build linux

package journal

import (
	"fmt"
	"time"
)

// Position selects where a Tailer starts or repositions (spec §4.9
// "set_position(START|END|offset)").
type Position struct {
	start  bool
	end    bool
	offset uint64
}

// PositionStart repositions at the first entry following the header.
func PositionStart() Position { return Position{start: true} }

// PositionEnd repositions at the stream's current write position (only
// entries appended after this call will be observed).
func PositionEnd() Position { return Position{end: true} }

// PositionOffset repositions at an explicit byte offset (typically one
// previously returned by Tailer.Offset).
func PositionOffset(off uint64) Position { return Position{offset: off} }

// Tailer reads a Stream's entries in append order, optionally blocking
// for new data (spec §4.9 "Reader").
type Tailer struct {
	s   *Stream
	pos uint64
}

// NewTailer returns a Tailer positioned at the stream's header end (i.e.
// PositionStart).
func NewTailer(s *Stream) *Tailer {
	return &Tailer{s: s, pos: uint64(s.hdr.size())}
}

// SetPosition repositions the tailer per p.
func (t *Tailer) SetPosition(p Position) {
	switch {
	case p.start:
		t.pos = uint64(t.s.hdr.size())
	case p.end:
		t.pos = t.s.WritePosition()
	default:
		t.pos = p.offset
	}
}

// Offset returns the tailer's current byte position, suitable for later
// PositionOffset resumption.
func (t *Tailer) Offset() uint64 { return t.pos }

// pollSpinInterval bounds how long Poll sleeps between checks of the
// writer's position; short enough to feel like blocking, long enough not
// to spin the CPU on an idle stream.
const pollSpinInterval = 2 * time.Millisecond

// Poll returns the next entry once available, blocking up to timeout for
// the writer to append one. ok=false means no entry arrived within
// timeout. Grounded on the tailer-polls-a-shared-position idiom rather
// than condition-variable wakeups, since a Tailer and its Stream may
// outlive each other independently (no goroutine is pinned waiting on a
// cond that might never broadcast again).
func (t *Tailer) Poll(timeout time.Duration) (Entry, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		t.s.mu.Lock()
		closed := t.s.closed
		data := t.s.data
		writePos := t.s.hdr.writePos
		t.s.mu.Unlock()

		if closed {
			return Entry{}, false, nil
		}
		if t.pos < writePos {
			e, n, ok, err := decodeEntry(data[t.pos:writePos])
			if err != nil {
				return Entry{}, false, err
			}
			if ok {
				t.pos += uint64(n)
				return e, true, nil
			}
		}
		if time.Now().After(deadline) {
			return Entry{}, false, nil
		}
		time.Sleep(pollSpinInterval)
	}
}

// SeekBySeqNum linearly scans forward from the tailer's current position
// looking for an entry whose SeqNum equals n (spec §4.9: "linear scan
// from current position is acceptable; an optional sparse index is a
// permissible enhancement" — not built here, journals are small per
// session).
func (t *Tailer) SeekBySeqNum(n uint32) (Entry, bool, error) {
	t.s.mu.Lock()
	data := t.s.data
	writePos := t.s.hdr.writePos
	t.s.mu.Unlock()

	pos := t.pos
	for pos < writePos {
		e, adv, ok, err := decodeEntry(data[pos:writePos])
		if err != nil {
			return Entry{}, false, err
		}
		if !ok {
			return Entry{}, false, nil
		}
		pos += uint64(adv)
		if e.SeqNum == n {
			t.pos = pos
			return e, true, nil
		}
	}
	return Entry{}, false, fmt.Errorf("journal: seqnum %d not found", n)
}
