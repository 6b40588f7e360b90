package config

import (
	"os"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// SessionOverrides holds a map of session_id -> partial SessionConfig
// overrides, loaded from a separate file so operators can retune a live
// session (heartbeat interval, enabled flag, schedule) without touching
// the master document (spec §3 "Lifecycle" + §6 enable/disable as a
// persistent flag).
type SessionOverrides struct {
	Sessions map[string]SessionConfig `yaml:"sessions"`
}

// Manager resolves the effective SessionConfig for a given session ID by
// merging an override on top of the master config, mirroring the
// teacher's tenant-overlay Manager (internal/config/manager.go in the
// teacher repo: a master document plus a second file of keyed overrides,
// merged field-by-field so a zero-valued override field doesn't clobber
// the master's value).
type Manager struct {
	mu       sync.RWMutex
	master   *Config
	overlays map[string]SessionConfig
}

// NewManager loads the master config at masterPath and, if present, the
// overlay document at overridesPath. A missing overrides file is not an
// error — it simply means no session has been retuned yet.
func NewManager(masterPath, overridesPath string) (*Manager, error) {
	_ = godotenv.Load() // populate process env from a .env file if present, before config decode

	master, err := LoadConfig(masterPath)
	if err != nil {
		return nil, err
	}
	master.applyEnvOverrides()
	master.applyDefaults()

	overlays := make(map[string]SessionConfig)
	f, err := os.Open(overridesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manager{master: master, overlays: overlays}, nil
		}
		return nil, err
	}
	defer f.Close()

	var ov SessionOverrides
	if err := yaml.NewDecoder(f).Decode(&ov); err != nil {
		return nil, err
	}
	if ov.Sessions != nil {
		overlays = ov.Sessions
	}

	return &Manager{master: master, overlays: overlays}, nil
}

// Sessions returns every configured session with its overlay (if any)
// merged on top of the master document's entry of the same session_id.
func (m *Manager) Sessions() []SessionConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SessionConfig, len(m.master.Sessions))
	for i, base := range m.master.Sessions {
		out[i] = m.merge(base, m.overlays[base.SessionID])
	}
	return out
}

// Get returns the effective SessionConfig for sessionID, or ok=false if
// no master entry exists for it.
func (m *Manager) Get(sessionID string) (cfg SessionConfig, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, base := range m.master.Sessions {
		if base.SessionID == sessionID {
			return m.merge(base, m.overlays[sessionID]), true
		}
	}
	return SessionConfig{}, false
}

// SetOverride installs or replaces the overlay for sessionID, taking
// effect on the next Get/Sessions call (used by the session API's
// enable/disable and set-outgoing-seq operations to persist an operator
// change without a restart).
func (m *Manager) SetOverride(sessionID string, override SessionConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlays[sessionID] = override
}

// merge overlays non-zero-valued fields of override onto base, leaving
// base's value wherever override's is the zero value — the same
// field-by-field discipline as the teacher's tenant overlay merge.
func (m *Manager) merge(base, override SessionConfig) SessionConfig {
	effective := base
	if override.HeartbeatInterval != 0 {
		effective.HeartbeatInterval = override.HeartbeatInterval
	}
	if override.Schedule != "" {
		effective.Schedule = override.Schedule
	}
	if override.Host != "" {
		effective.Host = override.Host
	}
	if override.Port != 0 {
		effective.Port = override.Port
	}
	// Enabled is a deliberate boolean override (unlike the numeric/string
	// fields above, false is a meaningful override value, not "absent");
	// callers that never called SetOverride for this session get zero
	// overlays.Sessions entries at all, so this only applies once an
	// operator has explicitly set one.
	if _, overridden := m.overlays[base.SessionID]; overridden {
		effective.Enabled = override.Enabled
	}
	return effective
}
