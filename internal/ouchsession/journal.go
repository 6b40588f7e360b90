package ouchsession

// Direction distinguishes inbound SoupBinTCP traffic from outbound, for
// journaling purposes (spec §1 "durably journals every message").
type Direction uint8

const (
	DirectionInbound Direction = iota
	DirectionOutbound
)

// JournalWriter is the subset of internal/journal.Stream an OUCH session
// needs to durably record every SoupBinTCP packet it sends or receives,
// mirroring fixsession.JournalWriter (spec §4.9's durability contract
// applies identically to both protocols; OUCH has no resend-from-journal
// recovery path, so there is no corresponding JournalReader here).
type JournalWriter interface {
	Append(direction Direction, seqNum int64, label string, raw []byte) error
}

// nopJournal satisfies JournalWriter for sessions configured without
// persistence.
type nopJournal struct{}

func (nopJournal) Append(Direction, int64, string, []byte) error { return nil }
