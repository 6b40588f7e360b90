package fixsession

// JournalWriter is the subset of internal/journal.Writer a session needs to
// durably record every sent and received application/admin message before
// (outbound) or immediately after (inbound) acting on it (spec §4.9's
// durability contract, consumed here as an interface so fixsession never
// imports journal directly).
type JournalWriter interface {
	Append(direction Direction, seqNum int64, msgType string, raw []byte) error
}

// JournalReader is the subset of internal/journal.Reader a session needs to
// replay outbound messages for ResendRequest handling (spec §4.7 "Resend
// processing").
type JournalReader interface {
	FindOutboundBySeq(seqNum int64) (raw []byte, found bool, err error)
}

// nopJournal satisfies both interfaces for sessions configured without
// persistence (tests, or a deliberately non-durable session).
type nopJournal struct{}

func (nopJournal) Append(Direction, int64, string, []byte) error { return nil }
func (nopJournal) FindOutboundBySeq(int64) ([]byte, bool, error)  { return nil, false, nil }
