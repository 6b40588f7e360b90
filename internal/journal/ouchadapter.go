//go:build linux

package journal

import (
	"github.com/omnibridge/engine/internal/clock"
	"github.com/omnibridge/engine/internal/ouchsession"
)

// OuchStreamAdapter wraps a Stream to satisfy ouchsession.JournalWriter,
// the OUCH-side twin of FixStreamAdapter (spec §1 durability applies
// identically to both protocols; OUCH has no resend-from-journal path so
// only a writer adapter is needed).
type OuchStreamAdapter struct {
	stream *Stream
	clock  clock.Source
}

// NewOuchStreamAdapter wraps stream for use by an ouchsession.Session.
func NewOuchStreamAdapter(stream *Stream, clockSrc clock.Source) *OuchStreamAdapter {
	if clockSrc == nil {
		clockSrc = clock.Default
	}
	return &OuchStreamAdapter{stream: stream, clock: clockSrc}
}

// Append implements ouchsession.JournalWriter. label is the single-byte
// SoupBinTCP packet type rendered as a one-character string, persisted as
// entry metadata.
func (a *OuchStreamAdapter) Append(direction ouchsession.Direction, seqNum int64, label string, raw []byte) error {
	return a.stream.Append(Direction(direction), uint32(seqNum), []byte(label), raw, a.clock.Now().UnixMilli())
}
