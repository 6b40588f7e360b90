//go:build linux

package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/omnibridge/engine/internal/clock"
)

// StoreConfig configures where stream files live and their default
// sizing (spec §6 persistence configuration options).
type StoreConfig struct {
	BasePath    string
	MaxFileSize int64
	SyncOnWrite bool
	ClockSource clock.Source
}

// Store owns every session's journal stream. Stream opens or creates a
// stream's file the first time that name is requested. Discover lists the
// stream files already in the base directory; Store does not call it
// itself, so existing streams are not opened at startup.
type Store struct {
	cfg StoreConfig

	mu      sync.Mutex
	streams map[string]*Stream
}

// NewStore prepares a Store rooted at cfg.BasePath, creating the
// directory if absent.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.ClockSource == nil {
		cfg.ClockSource = clock.Default
	}
	if err := os.MkdirAll(cfg.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create base path %s: %w", cfg.BasePath, err)
	}
	return &Store{cfg: cfg, streams: make(map[string]*Stream)}, nil
}

// SanitizeStreamName derives a filesystem-safe stream name from a session
// identity string (spec §4.9: "`->` -> `_to_`, invalid chars -> `_`").
func SanitizeStreamName(sessionIdentity string) string {
	s := strings.ReplaceAll(sessionIdentity, "->", "_to_")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Stream returns the stream for name, opening or creating its backing
// file on first call.
func (st *Store) Stream(name string) (*Stream, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.streams[name]; ok {
		return s, nil
	}
	path := filepath.Join(st.cfg.BasePath, name+".log")
	s, err := OpenStream(StreamConfig{
		Path:        path,
		DecoderName: name,
		MaxFileSize: st.cfg.MaxFileSize,
		SyncOnWrite: st.cfg.SyncOnWrite,
		ClockSource: st.cfg.ClockSource,
	})
	if err != nil {
		return nil, err
	}
	st.streams[name] = s
	return s, nil
}

// Discover scans the base path for existing ".log" (v2) and ".fixlog"
// (legacy v1, read-only) stream files without opening them, returning
// their stream names (spec §4.9 "discovered at startup by scanning the
// journal directory").
func (st *Store) Discover() ([]string, error) {
	entries, err := os.ReadDir(st.cfg.BasePath)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".log"):
			names = append(names, strings.TrimSuffix(name, ".log"))
		case strings.HasSuffix(name, ".fixlog"):
			names = append(names, strings.TrimSuffix(name, ".fixlog"))
		}
	}
	return names, nil
}

// CloseAll closes every opened stream.
func (st *Store) CloseAll() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	var firstErr error
	for name, s := range st.streams {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(st.streams, name)
	}
	return firstErr
}
