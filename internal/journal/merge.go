//go:build linux

package journal

import "time"

// mergeItem pairs a stream name with its tailer and the most recent
// entry peeked from it but not yet consumed.
type mergeItem struct {
	name   string
	tailer *Tailer
	peeked *Entry
}

// MergeReader replays several streams' tailers in ascending timestamp
// order, breaking ties by stream name (spec §4.9 "Multi-stream merge
// reader").
type MergeReader struct {
	items []*mergeItem
}

// NewMergeReader constructs a reader over the given name->tailer set.
func NewMergeReader(tailers map[string]*Tailer) *MergeReader {
	m := &MergeReader{}
	for name, t := range tailers {
		m.items = append(m.items, &mergeItem{name: name, tailer: t})
	}
	return m
}

func (m *MergeReader) fill(timeout time.Duration) error {
	for _, it := range m.items {
		if it.peeked != nil {
			continue
		}
		e, ok, err := it.tailer.Poll(timeout)
		if err != nil {
			return err
		}
		if ok {
			it.peeked = &e
		}
	}
	return nil
}

// Next returns the globally-next entry (smallest timestamp, stream name
// as tiebreaker) across all streams, polling each for up to timeout.
// ok=false when no stream produced an entry within timeout.
func (m *MergeReader) Next(timeout time.Duration) (streamName string, e Entry, ok bool, err error) {
	if err := m.fill(timeout); err != nil {
		return "", Entry{}, false, err
	}

	var best *mergeItem
	for _, it := range m.items {
		if it.peeked == nil {
			continue
		}
		if best == nil {
			best = it
			continue
		}
		if it.peeked.TimestampMillis < best.peeked.TimestampMillis ||
			(it.peeked.TimestampMillis == best.peeked.TimestampMillis && it.name < best.name) {
			best = it
		}
	}
	if best == nil {
		return "", Entry{}, false, nil
	}
	e = *best.peeked
	best.peeked = nil
	return best.name, e, true, nil
}
