//go:build linux

// Package engine implements the component lifecycle and session binding
// described in spec §4.10 (C11): a small initialize/start/stop
// lifecycle with an explicit component state
// machine, and the Engine type that binds, per configured session, one
// session object, its codec pool, a channel (created on connect), and a
// journal stream.
//
// Grounded on the teacher's internal/protocol/session.go State-enum/
// guarded-transition idiom (absorbed into component.go's lifecycle type)
// and the teacher's cmd/server/main.go explicit construct-and-wire
// startup style (Engine.New mirrors main()'s "1. Initialize
// Microservices" numbered-step wiring).
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/omnibridge/engine/internal/clock"
	"github.com/omnibridge/engine/internal/config"
	"github.com/omnibridge/engine/internal/fixsession"
	"github.com/omnibridge/engine/internal/ha"
	"github.com/omnibridge/engine/internal/journal"
	"github.com/omnibridge/engine/internal/metrics"
	"github.com/omnibridge/engine/internal/netio"
	"github.com/omnibridge/engine/internal/ouch"
	"github.com/omnibridge/engine/internal/ouchsession"
	"github.com/omnibridge/engine/internal/sessionstore"
)

// Engine owns every configured session, the shared reactor, the journal
// store, and (optionally) the HA arbiter and durable session store (spec
// §4.10 "The engine binds, for each configured session, one session
// object, its codec pool, one channel, and the corresponding journal
// stream").
type Engine struct {
	lifecycle

	cfgMgr *config.Manager
	clock  clock.Source

	reactor  *netio.Reactor
	store    *journal.Store
	arbiter  *ha.Arbiter
	dbStore  *sessionstore.Store
	metrics  *metrics.Metrics

	mu       sync.RWMutex
	bindings map[string]binding // sessionID -> binding
}

// binding is the common surface Engine needs from either a fixBinding or
// an ouchBinding, letting the session-API layer (internal/sessionapi)
// operate uniformly over both protocols (spec §9 "tagged variants" over
// a closed set, applied here to the two session kinds).
type binding interface {
	SessionID() string
	Protocol() string
	Enable(enabled bool)
	Enabled() bool
	Connect(reactor *netio.Reactor) error
	Disconnect() error
	ResetSequences()
	SetOutgoingSeq(n int64)
	SetIncomingSeq(n int64)
	SendApplication(msgType string, encoded []byte) error
	SendTestRequest() error
	Tick(nowMillis int64)
}

// New constructs an Engine in StateUninitialized from cfgMgr. The
// reactor, journal store, and (if configured) the HA arbiter and
// Postgres-backed session store are created here but sessions are not
// constructed until Initialize.
func New(cfgMgr *config.Manager, cfg *config.Config) (*Engine, error) {
	netCfg := netio.ReactorConfig{Channel: netio.ChannelConfig{}}
	if len(cfg.Networks) > 0 {
		n := cfg.Networks[0]
		netCfg = netio.ReactorConfig{
			Name:            n.Name,
			CPUAffinity:     n.CPUAffinity,
			BusySpinMode:    n.BusySpinMode,
			SelectTimeoutMs: n.SelectTimeoutMs,
			Channel: netio.ChannelConfig{
				ReadBufferSize:  n.ReadBufferSize,
				WriteBufferSize: n.WriteBufferSize,
				RingCapacity:    n.RingBufferCap,
			},
		}
	}

	e := &Engine{
		lifecycle: newLifecycle("engine"),
		cfgMgr:    cfgMgr,
		clock:     clock.Default,
		bindings:  make(map[string]binding),
		metrics:   metrics.New(),
	}

	reactor, err := netio.NewReactor(netCfg, netio.Callbacks{
		OnConnected:     e.onConnected,
		OnDisconnected:  e.onDisconnected,
		OnConnectFailed: e.onConnectFailed,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: construct reactor: %w", err)
	}
	e.reactor = reactor

	if cfg.Persistence.StoreType != "none" {
		store, err := journal.NewStore(journal.StoreConfig{
			BasePath:    cfg.Persistence.BasePath,
			MaxFileSize: cfg.Persistence.MaxFileSize,
			SyncOnWrite: cfg.Persistence.SyncOnWrite,
			ClockSource: e.clock,
		})
		if err != nil {
			return nil, fmt.Errorf("engine: construct journal store: %w", err)
		}
		e.store = store
	}

	if cfg.HA.Enabled {
		arb, err := ha.NewArbiter(cfg.HA.RedisAddr, cfg.HA.LeaseSeconds)
		if err != nil {
			return nil, fmt.Errorf("engine: construct HA arbiter: %w", err)
		}
		e.arbiter = arb
	}

	if cfg.SessionDB.Enabled {
		db, err := sessionstore.Open(cfg.SessionDB.DSN)
		if err != nil {
			return nil, fmt.Errorf("engine: construct session store: %w", err)
		}
		e.dbStore = db
	}

	return e, nil
}

// Initialize constructs every session named in cfgMgr's master document
// (spec §3 "Sessions are created at startup from configuration, enter
// state CREATED"), recovering each session's durable enable flag from the
// session store when present; stored sequence numbers are not applied.
func (e *Engine) Initialize() error {
	if err := e.transition(StateInitialized); err != nil {
		return err
	}

	for _, sc := range e.cfgMgr.Sessions() {
		b, err := e.buildBinding(sc)
		if err != nil {
			return fmt.Errorf("engine: build session %s: %w", sc.SessionID, err)
		}
		if e.dbStore != nil {
			if rec, ok, err := e.dbStore.Get(context.Background(), sc.SessionID); err == nil && ok {
				b.Enable(rec.Enabled)
			}
		} else {
			b.Enable(sc.Enabled)
		}
		e.mu.Lock()
		e.bindings[sc.SessionID] = b
		e.mu.Unlock()
		slog.Info("engine: session initialized", "session_id", sc.SessionID, "protocol", sc.Protocol)
	}
	return nil
}

// StartActive runs the reactor loop on its own goroutine and, if HA is
// configured, acquires the active lease for every session identity
// before connecting enabled sessions (spec §4.10 "Active").
func (e *Engine) StartActive() error {
	if err := e.transition(StateActive); err != nil {
		return err
	}
	go e.reactor.Run()
	go e.heartbeatLoop()

	e.mu.RLock()
	defer e.mu.RUnlock()
	for id, b := range e.bindings {
		if !b.Enabled() {
			continue
		}
		if e.arbiter != nil {
			lease, ok, err := e.arbiter.TryAcquire(context.Background(), id)
			if err != nil || !ok {
				slog.Warn("engine: did not acquire HA lease, staying standby", "session_id", id, "error", err)
				continue
			}
			_ = lease
		}
		if err := b.Connect(e.reactor); err != nil {
			slog.Error("engine: connect failed", "session_id", id, "error", err)
		}
	}
	return nil
}

// StartStandby brings the reactor up without connecting any session,
// used by a passive HA replica awaiting a lease (spec §4.10 "Standby").
func (e *Engine) StartStandby() error {
	if err := e.transition(StateStandby); err != nil {
		return err
	}
	go e.reactor.Run()
	return nil
}

// Stop disconnects every session, stops the reactor, and releases the
// journal store, HA arbiter, and session store (spec §4.10 "Stopped",
// "any -> Stopped").
func (e *Engine) Stop() error {
	if err := e.transition(StateStopped); err != nil {
		return err
	}
	e.mu.RLock()
	for _, b := range e.bindings {
		_ = b.Disconnect()
	}
	e.mu.RUnlock()

	e.reactor.Stop()
	<-e.reactor.Done()

	if e.store != nil {
		_ = e.store.CloseAll()
	}
	if e.arbiter != nil {
		_ = e.arbiter.Close()
	}
	if e.dbStore != nil {
		_ = e.dbStore.Close()
	}
	return nil
}

// heartbeatLoop drives every bound session's periodic Tick (spec §4.7
// "Heartbeat production", §4.8 analogue), following the teacher's
// reactor-task-queue idea but simplified to a ticker goroutine that
// submits work onto the reactor via Execute so session state mutation
// still happens on the single reactor goroutine.
func (e *Engine) heartbeatLoop() {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for range t.C {
		if e.State() == StateStopped {
			return
		}
		now := e.clock.Now().UnixMilli()
		e.mu.RLock()
		snapshot := make([]binding, 0, len(e.bindings))
		for _, b := range e.bindings {
			snapshot = append(snapshot, b)
		}
		e.mu.RUnlock()
		for _, b := range snapshot {
			b := b
			e.reactor.Execute(func() { b.Tick(now) })
		}
	}
}

func (e *Engine) onConnected(ch *netio.Channel) {
	if d, ok := ch.Handler().(interface{ onConnected(*netio.Channel) }); ok {
		d.onConnected(ch)
	}
}

func (e *Engine) onDisconnected(ch *netio.Channel, reason error) {
	if d, ok := ch.Handler().(interface{ onDisconnected(*netio.Channel, error) }); ok {
		d.onDisconnected(ch, reason)
	}
}

func (e *Engine) onConnectFailed(remote string, reason error) {
	slog.Error("engine: connect failed", "remote", remote, "error", reason)
}

// buildBinding constructs the protocol-appropriate binding for sc without
// connecting it (spec §3 "CREATED").
func (e *Engine) buildBinding(sc config.SessionConfig) (binding, error) {
	var journalStream *journal.Stream
	if e.store != nil {
		var err error
		journalStream, err = e.store.Stream(journal.SanitizeStreamName(sc.SessionID))
		if err != nil {
			return nil, err
		}
	}

	switch sc.Protocol {
	case "", "FIX":
		return newFixBinding(sc, journalStream, e.clock, e.metrics)
	case "OUCH":
		ver := ouch.Version42
		if sc.OuchVersion == "5.0" {
			ver = ouch.Version50
		}
		return newOuchBinding(sc, ver, journalStream, e.clock, e.metrics)
	default:
		return nil, fmt.Errorf("engine: unknown protocol %q for session %s", sc.Protocol, sc.SessionID)
	}
}

// Session looks up a bound session by ID.
func (e *Engine) Session(sessionID string) (binding, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.bindings[sessionID]
	return b, ok
}

// CreateSession dynamically constructs and registers a new session
// outside the initial configuration load (spec §6 "Create session"),
// persisting its initial record when a session store is configured.
func (e *Engine) CreateSession(sc config.SessionConfig) error {
	b, err := e.buildBinding(sc)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.bindings[sc.SessionID] = b
	e.mu.Unlock()

	if e.dbStore != nil {
		if err := e.dbStore.Upsert(context.Background(), sessionstore.Record{
			SessionID: sc.SessionID,
			Protocol:  b.Protocol(),
			Enabled:   sc.Enabled,
		}); err != nil {
			slog.Error("engine: persist new session record failed", "session_id", sc.SessionID, "error", err)
		}
	}
	return nil
}

// Enable toggles a session's enabled flag (spec §6 "Enable/disable a
// session"), persisting the change when a session store is configured so
// it survives a restart.
func (e *Engine) Enable(sessionID string, enabled bool) error {
	b, ok := e.Session(sessionID)
	if !ok {
		return fmt.Errorf("engine: unknown session %s", sessionID)
	}
	b.Enable(enabled)
	if e.dbStore != nil {
		if err := e.dbStore.SetEnabled(context.Background(), sessionID, enabled); err != nil {
			return fmt.Errorf("engine: persist enable flag: %w", err)
		}
	}
	return nil
}

// Connect brings up the named session's transport, honoring the HA
// arbiter lease when configured (spec §4.10 HA "Active"/"Standby").
func (e *Engine) Connect(sessionID string) error {
	b, ok := e.Session(sessionID)
	if !ok {
		return fmt.Errorf("engine: unknown session %s", sessionID)
	}
	if e.arbiter != nil {
		_, acquired, err := e.arbiter.TryAcquire(context.Background(), sessionID)
		if err != nil {
			return fmt.Errorf("engine: acquire HA lease: %w", err)
		}
		if !acquired {
			return fmt.Errorf("engine: session %s is active on another replica", sessionID)
		}
	}
	return b.Connect(e.reactor)
}

// Disconnect tears down the named session's transport.
func (e *Engine) Disconnect(sessionID string) error {
	b, ok := e.Session(sessionID)
	if !ok {
		return fmt.Errorf("engine: unknown session %s", sessionID)
	}
	return b.Disconnect()
}

// ResetSequences resets the named session's sequence numbers to 1 (spec
// §6 "reset-sequences"), persisting the reset when a session store is
// configured.
func (e *Engine) ResetSequences(sessionID string) error {
	b, ok := e.Session(sessionID)
	if !ok {
		return fmt.Errorf("engine: unknown session %s", sessionID)
	}
	b.ResetSequences()
	return e.persistSequences(sessionID, b)
}

// SetOutgoingSeq administratively overrides the named session's next
// outgoing sequence number (spec §6 "set-outgoing-seq").
func (e *Engine) SetOutgoingSeq(sessionID string, next int64) error {
	b, ok := e.Session(sessionID)
	if !ok {
		return fmt.Errorf("engine: unknown session %s", sessionID)
	}
	b.SetOutgoingSeq(next)
	return e.persistSequences(sessionID, b)
}

// SetIncomingSeq administratively overrides the named session's next
// expected incoming sequence number (spec §6 "set-incoming-seq"; a no-op
// for OUCH bindings).
func (e *Engine) SetIncomingSeq(sessionID string, next int64) error {
	b, ok := e.Session(sessionID)
	if !ok {
		return fmt.Errorf("engine: unknown session %s", sessionID)
	}
	b.SetIncomingSeq(next)
	return e.persistSequences(sessionID, b)
}

// SendApplicationMessage transmits an already-encoded application
// message through the named session (spec §6
// "send-application-message(encoded bytes)").
func (e *Engine) SendApplicationMessage(sessionID, msgType string, encoded []byte) error {
	b, ok := e.Session(sessionID)
	if !ok {
		return fmt.Errorf("engine: unknown session %s", sessionID)
	}
	return b.SendApplication(msgType, encoded)
}

// SendTestRequest issues a manual liveness probe on the named session
// (spec §6 "send-test-request").
func (e *Engine) SendTestRequest(sessionID string) error {
	b, ok := e.Session(sessionID)
	if !ok {
		return fmt.Errorf("engine: unknown session %s", sessionID)
	}
	return b.SendTestRequest()
}

// persistSequences best-effort-records the current outbound/inbound
// sequence numbers for sessionID; FIX bindings expose both counters,
// OUCH bindings only the outbound one.
func (e *Engine) persistSequences(sessionID string, b binding) error {
	if e.dbStore == nil {
		return nil
	}
	var out, in int64
	if fs, ok := FixSessionOf(b); ok {
		out, in = fs.OutboundNext(), fs.InboundNextExpected()
	} else if os, ok := OuchSessionOf(b); ok {
		out = os.OutboundNext()
	}
	if err := e.dbStore.SetSequences(context.Background(), sessionID, out, in); err != nil {
		return fmt.Errorf("engine: persist sequences: %w", err)
	}
	return nil
}

// FixSessionOf and OuchSessionOf let internal/sessionapi's message-level
// operations reach the concrete session type when needed (e.g. to
// register a Listener), without Engine needing to expose *fixsession and
// *ouchsession types through the narrow binding interface.
func FixSessionOf(b binding) (*fixsession.Session, bool) {
	fb, ok := b.(*fixBinding)
	if !ok {
		return nil, false
	}
	return fb.session, true
}

func OuchSessionOf(b binding) (*ouchsession.Session, bool) {
	ob, ok := b.(*ouchBinding)
	if !ok {
		return nil, false
	}
	return ob.session, true
}
