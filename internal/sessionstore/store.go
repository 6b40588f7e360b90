// Package sessionstore persists each session's configured identity,
// sequence numbers, and enable flag in Postgres so a previously-enabled
// session auto-resumes after a process restart without an operator
// replaying CLI commands (spec §3 "Lifecycle" + SPEC_FULL.md supplement
// D.5). This is independent of the journal: the journal recovers message
// history and sequence numbers from what was actually sent/received; this
// store recovers the session's last configured/enabled state.
//
// Grounded on the teacher's cmd/server/main.go (blank-imports
// github.com/lib/pq purely for side-effecting driver registration, then
// sql.Open("postgres", dsn)) and internal/reputation/wallet.go's
// *sql.DB-holding-struct-with-context-methods shape.
package sessionstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // postgres driver, registered for sql.Open("postgres", ...)
)

// Record is one session's durable identity and runtime state.
type Record struct {
	SessionID    string
	Protocol     string
	Enabled      bool
	OutboundNext int64
	InboundNext  int64
}

// Store is a Postgres-backed SessionStore. Each row holds a session's ID,
// protocol, enable flag and next outbound/inbound sequence numbers; role,
// endpoint and heartbeat interval are not stored.
type Store struct {
	db *sql.DB
}

// Open connects to dsn and ensures the sessions table exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessionstore: ping: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS omnibridge_sessions (
	session_id    TEXT PRIMARY KEY,
	protocol      TEXT NOT NULL,
	enabled       BOOLEAN NOT NULL DEFAULT false,
	outbound_next BIGINT NOT NULL DEFAULT 1,
	inbound_next  BIGINT NOT NULL DEFAULT 1
)`
	_, err := s.db.ExecContext(ctx, ddl)
	if err != nil {
		return fmt.Errorf("sessionstore: migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Upsert persists r, creating or overwriting the row for r.SessionID.
func (s *Store) Upsert(ctx context.Context, r Record) error {
	const q = `
INSERT INTO omnibridge_sessions (session_id, protocol, enabled, outbound_next, inbound_next)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (session_id) DO UPDATE SET
	protocol = EXCLUDED.protocol,
	enabled = EXCLUDED.enabled,
	outbound_next = EXCLUDED.outbound_next,
	inbound_next = EXCLUDED.inbound_next`
	_, err := s.db.ExecContext(ctx, q, r.SessionID, r.Protocol, r.Enabled, r.OutboundNext, r.InboundNext)
	if err != nil {
		return fmt.Errorf("sessionstore: upsert %s: %w", r.SessionID, err)
	}
	return nil
}

// SetEnabled flips just the enabled flag, used by the session API's
// enable/disable operation (spec §6).
func (s *Store) SetEnabled(ctx context.Context, sessionID string, enabled bool) error {
	const q = `UPDATE omnibridge_sessions SET enabled = $2 WHERE session_id = $1`
	_, err := s.db.ExecContext(ctx, q, sessionID, enabled)
	if err != nil {
		return fmt.Errorf("sessionstore: set enabled %s: %w", sessionID, err)
	}
	return nil
}

// SetSequences persists the session's current sequence-number pair,
// called after every sequence reset or administrative override (spec §6
// set-outgoing-seq/set-incoming-seq/reset-sequences).
func (s *Store) SetSequences(ctx context.Context, sessionID string, outboundNext, inboundNext int64) error {
	const q = `UPDATE omnibridge_sessions SET outbound_next = $2, inbound_next = $3 WHERE session_id = $1`
	_, err := s.db.ExecContext(ctx, q, sessionID, outboundNext, inboundNext)
	if err != nil {
		return fmt.Errorf("sessionstore: set sequences %s: %w", sessionID, err)
	}
	return nil
}

// Get returns the persisted record for sessionID, ok=false if none exists
// yet (a never-before-seen session starts at the defaults in spec §3).
func (s *Store) Get(ctx context.Context, sessionID string) (rec Record, ok bool, err error) {
	const q = `SELECT session_id, protocol, enabled, outbound_next, inbound_next FROM omnibridge_sessions WHERE session_id = $1`
	row := s.db.QueryRowContext(ctx, q, sessionID)
	err = row.Scan(&rec.SessionID, &rec.Protocol, &rec.Enabled, &rec.OutboundNext, &rec.InboundNext)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("sessionstore: get %s: %w", sessionID, err)
	}
	return rec, true, nil
}

// All returns every persisted session record, used at engine startup to
// recover enable flags before sessions are constructed from configuration.
func (s *Store) All(ctx context.Context) ([]Record, error) {
	const q = `SELECT session_id, protocol, enabled, outbound_next, inbound_next FROM omnibridge_sessions`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: all: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.SessionID, &r.Protocol, &r.Enabled, &r.OutboundNext, &r.InboundNext); err != nil {
			return nil, fmt.Errorf("sessionstore: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
