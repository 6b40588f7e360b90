//go:build linux

package engine

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/omnibridge/engine/internal/clock"
	"github.com/omnibridge/engine/internal/config"
	"github.com/omnibridge/engine/internal/fix"
	"github.com/omnibridge/engine/internal/fixsession"
	"github.com/omnibridge/engine/internal/journal"
	"github.com/omnibridge/engine/internal/metrics"
	"github.com/omnibridge/engine/internal/netio"
	"github.com/omnibridge/engine/internal/ringbuf"
)

// fixBinding couples a fixsession.Session to the netio channel that
// carries its bytes, implementing netio.Handler so the reactor can feed
// it raw TCP data directly (spec §4.10 "the engine binds, for each
// configured session, one session object ... and one channel").
//
// Grounded on the teacher's cmd/server/main.go pattern of a thin adapter
// struct gluing a transport-level callback to a domain-level handler.
type fixBinding struct {
	sc      config.SessionConfig
	session *fixsession.Session
	framer  *fix.Framer
	metrics *metrics.Metrics

	ch *netio.Channel

	enabled bool
}

func newFixBinding(sc config.SessionConfig, stream *journal.Stream, clockSrc clock.Source, m *metrics.Metrics) (*fixBinding, error) {
	role := fixsession.RoleInitiator
	if strings.EqualFold(sc.Role, "acceptor") {
		role = fixsession.RoleAcceptor
	}

	cfg := fixsession.Config{
		ID: fixsession.SessionID{
			BeginString:  sc.BeginString,
			SenderCompID: sc.SenderCompID,
			TargetCompID: sc.TargetCompID,
		},
		Role:              role,
		HeartbeatInterval: sc.HeartbeatInterval,
		ResetOnLogon:      sc.ResetOnLogon,
	}

	var jw fixsession.JournalWriter
	var jr fixsession.JournalReader
	if stream != nil {
		adapter := journal.NewFixStreamAdapter(stream, clockSrc)
		jw, jr = adapter, adapter
	}

	b := &fixBinding{sc: sc, framer: fix.NewFramer(), metrics: m}
	b.framer.OnProtocolError = func(err error) {
		slog.Warn("fixsession: protocol error, resyncing", "session_id", sc.SessionID, "error", err)
	}

	// Session.New requires a non-nil Transport; the real one (the
	// channel's ring buffer) only exists once the TCP connection is
	// established, so a rejecting placeholder is supplied up front and
	// swapped via SetTransport from onConnected.
	sess, err := fixsession.New(cfg, unboundTransport{}, clockSrc, jw, jr)
	if err != nil {
		return nil, err
	}
	b.session = sess
	return b, nil
}

func (b *fixBinding) SessionID() string { return b.sc.SessionID }
func (b *fixBinding) Protocol() string  { return "FIX" }

func (b *fixBinding) Enable(enabled bool) { b.enabled = enabled }
func (b *fixBinding) Enabled() bool       { return b.enabled }

func (b *fixBinding) ResetSequences()        { b.session.ResetSequences() }
func (b *fixBinding) SetOutgoingSeq(n int64) { b.session.SetOutgoingSeq(n) }
func (b *fixBinding) SetIncomingSeq(n int64) { b.session.SetIncomingSeq(n) }

func (b *fixBinding) Tick(nowMillis int64) {
	if err := b.session.Tick(nowMillis); err != nil {
		slog.Error("fixsession: tick failed", "session_id", b.sc.SessionID, "error", err)
	}
}

func (b *fixBinding) SendTestRequest() error {
	return b.session.SendTestRequest(fmt.Sprintf("%s-manual", b.sc.SessionID))
}

func (b *fixBinding) SendApplication(msgType string, encoded []byte) error {
	return b.session.SendApplicationMessage(msgType, encoded)
}

// Connect opens (or listens for) the TCP connection per sc.Role; the
// session's transport is attached once the reactor reports the channel
// connected, via onConnected.
func (b *fixBinding) Connect(reactor *netio.Reactor) error {
	addr := fmt.Sprintf("%s:%d", b.sc.Host, b.sc.Port)
	if strings.EqualFold(b.sc.Role, "acceptor") {
		return reactor.Listen(addr, b)
	}
	return reactor.Connect(addr, b)
}

func (b *fixBinding) Disconnect() error {
	return b.session.Disconnect()
}

// onConnected is invoked by Engine's reactor-global callback once this
// binding's channel (identified via Channel.Handler()) finishes
// connecting or is accepted.
func (b *fixBinding) onConnected(ch *netio.Channel) {
	b.ch = ch
	b.session.SetTransport(ch.Ring())
	if err := b.session.Connect(); err != nil {
		slog.Error("fixsession: connect transition failed", "session_id", b.sc.SessionID, "error", err)
		return
	}
	if !strings.EqualFold(b.sc.Role, "acceptor") {
		if err := b.session.SendLogon(); err != nil {
			slog.Error("fixsession: send logon failed", "session_id", b.sc.SessionID, "error", err)
		}
	}
}

func (b *fixBinding) onDisconnected(ch *netio.Channel, reason error) {
	_ = b.session.Disconnect()
}

// OnDataReceived implements netio.Handler, feeding raw bytes through the
// FIX framer and each extracted message into the session.
func (b *fixBinding) OnDataReceived(ch *netio.Channel, buf []byte) (int, error) {
	err := b.framer.Feed(buf, func(msg []byte) error {
		if b.metrics != nil {
			b.metrics.RecordReactorIteration(b.sc.SessionID)
		}
		return b.session.ProcessInbound(msg)
	})
	return len(buf), err
}

// unboundTransport satisfies fixsession.Transport before a real channel
// ring buffer is attached on connect; any use before that point is a
// programming error, surfaced immediately rather than silently dropped.
type unboundTransport struct{}

func (unboundTransport) TryClaim(int32, int) (ringbuf.ClaimIndex, error) {
	return ringbuf.ClaimIndex{}, fmt.Errorf("fixsession: send attempted before transport is connected")
}
func (unboundTransport) WriteAt(ringbuf.ClaimIndex) []byte { return nil }
func (unboundTransport) Commit(ringbuf.ClaimIndex)         {}
