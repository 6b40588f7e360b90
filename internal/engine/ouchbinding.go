//go:build linux

package engine

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/omnibridge/engine/internal/clock"
	"github.com/omnibridge/engine/internal/config"
	"github.com/omnibridge/engine/internal/journal"
	"github.com/omnibridge/engine/internal/metrics"
	"github.com/omnibridge/engine/internal/netio"
	"github.com/omnibridge/engine/internal/ouch"
	"github.com/omnibridge/engine/internal/ouchsession"
	"github.com/omnibridge/engine/internal/ringbuf"
)

// ouchBinding is the OUCH/SoupBinTCP twin of fixBinding, wrapping a
// ouchsession.Session in a netio.Handler and wiring its SoupBin framer
// into the session's packet dispatch (spec §4.8, C9).
type ouchBinding struct {
	sc      config.SessionConfig
	session *ouchsession.Session
	framer  *ouch.SoupBinFramer
	metrics *metrics.Metrics

	ch *netio.Channel

	enabled bool
}

func newOuchBinding(sc config.SessionConfig, ver ouch.Version, stream *journal.Stream, clockSrc clock.Source, m *metrics.Metrics) (*ouchBinding, error) {
	cfg := ouchsession.Config{
		Version:           ver,
		Username:          sc.Username,
		Password:          sc.Password,
		RequestedSession:  sc.RequestedSession,
		HeartbeatInterval: sc.HeartbeatInterval,
	}

	var jw ouchsession.JournalWriter
	if stream != nil {
		jw = journal.NewOuchStreamAdapter(stream, clockSrc)
	}

	sess := ouchsession.New(cfg, unboundOuchTransport{}, clockSrc, jw)
	return &ouchBinding{sc: sc, session: sess, framer: ouch.NewSoupBinFramer(), metrics: m}, nil
}

func (b *ouchBinding) SessionID() string { return b.sc.SessionID }
func (b *ouchBinding) Protocol() string  { return "OUCH" }

func (b *ouchBinding) Enable(enabled bool) { b.enabled = enabled }
func (b *ouchBinding) Enabled() bool       { return b.enabled }

func (b *ouchBinding) ResetSequences()        { b.session.ResetSequences() }
func (b *ouchBinding) SetOutgoingSeq(n int64) { b.session.SetOutgoingSeq(n) }
func (b *ouchBinding) SetIncomingSeq(n int64) { b.session.SetIncomingSeq(n) }

func (b *ouchBinding) Tick(nowMillis int64) {
	if err := b.session.Tick(nowMillis); err != nil {
		slog.Error("ouchsession: tick failed", "session_id", b.sc.SessionID, "error", err)
	}
}

// SendTestRequest has no SoupBinTCP equivalent to a FIX TestRequest; a
// manual client heartbeat is the closest analogous liveness probe.
func (b *ouchBinding) SendTestRequest() error {
	return b.session.SendHeartbeat()
}

// SendApplication transmits encoded as a complete, already-built OUCH
// order-entry message (spec §6 "send-application-message(encoded
// bytes)"); msgType is unused since OUCH messages are self-describing via
// their first byte.
func (b *ouchBinding) SendApplication(msgType string, encoded []byte) error {
	return b.session.SendOrder(encoded)
}

func (b *ouchBinding) Connect(reactor *netio.Reactor) error {
	addr := fmt.Sprintf("%s:%d", b.sc.Host, b.sc.Port)
	if strings.EqualFold(b.sc.Role, "acceptor") {
		return reactor.Listen(addr, b)
	}
	return reactor.Connect(addr, b)
}

func (b *ouchBinding) Disconnect() error {
	return b.session.Disconnect()
}

func (b *ouchBinding) onConnected(ch *netio.Channel) {
	b.ch = ch
	b.session.SetTransport(ch.Ring())
	if err := b.session.Connect(); err != nil {
		slog.Error("ouchsession: connect transition failed", "session_id", b.sc.SessionID, "error", err)
		return
	}
	if err := b.session.SendLoginRequest(); err != nil {
		slog.Error("ouchsession: send login request failed", "session_id", b.sc.SessionID, "error", err)
	}
}

func (b *ouchBinding) onDisconnected(ch *netio.Channel, reason error) {
	_ = b.session.Disconnect()
}

// OnDataReceived implements netio.Handler, feeding raw bytes through the
// SoupBinTCP framer and each extracted packet into the session.
func (b *ouchBinding) OnDataReceived(ch *netio.Channel, buf []byte) (int, error) {
	err := b.framer.Feed(buf, func(typ ouch.PacketType, payload []byte) error {
		if b.metrics != nil {
			b.metrics.RecordReactorIteration(b.sc.SessionID)
		}
		return b.session.HandlePacket(typ, payload)
	})
	return len(buf), err
}

// unboundOuchTransport satisfies ouchsession.Transport before a real
// channel ring buffer is attached on connect.
type unboundOuchTransport struct{}

func (unboundOuchTransport) TryClaim(int32, int) (ringbuf.ClaimIndex, error) {
	return ringbuf.ClaimIndex{}, fmt.Errorf("ouchsession: send attempted before transport is connected")
}
func (unboundOuchTransport) WriteAt(ringbuf.ClaimIndex) []byte { return nil }
func (unboundOuchTransport) Commit(ringbuf.ClaimIndex)         {}
