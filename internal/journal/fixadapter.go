//go:build linux

package journal

import (
	"github.com/omnibridge/engine/internal/clock"
	"github.com/omnibridge/engine/internal/fixsession"
)

// FixStreamAdapter wraps a Stream to satisfy fixsession.JournalWriter and
// fixsession.JournalReader without fixsession importing this package
// directly (kept decoupled the same way netio and fixsession are: via a
// small, locally-defined interface on the consumer side).
type FixStreamAdapter struct {
	stream *Stream
	clock  clock.Source
	tailer *Tailer
}

// NewFixStreamAdapter wraps stream for use by a fixsession.Session.
func NewFixStreamAdapter(stream *Stream, clockSrc clock.Source) *FixStreamAdapter {
	if clockSrc == nil {
		clockSrc = clock.Default
	}
	return &FixStreamAdapter{stream: stream, clock: clockSrc, tailer: NewTailer(stream)}
}

// Append implements fixsession.JournalWriter. msgType is persisted as
// entry metadata so a replay reader can distinguish admin from
// application traffic without re-parsing the payload.
func (a *FixStreamAdapter) Append(direction fixsession.Direction, seqNum int64, msgType string, raw []byte) error {
	return a.stream.Append(Direction(direction), uint32(seqNum), []byte(msgType), raw, a.clock.Now().UnixMilli())
}

// FindOutboundBySeq implements fixsession.JournalReader via a full
// rescan from the stream start (journals are small per session; spec
// §4.9 explicitly permits the equivalent linear scan for seek_by_seqnum).
func (a *FixStreamAdapter) FindOutboundBySeq(seqNum int64) ([]byte, bool, error) {
	t := NewTailer(a.stream)
	t.SetPosition(PositionStart())
	for {
		e, ok, err := t.SeekBySeqNum(uint32(seqNum))
		if err != nil {
			return nil, false, nil
		}
		if !ok {
			return nil, false, nil
		}
		if e.Direction == DirectionOutbound {
			return e.Payload, true, nil
		}
	}
}
