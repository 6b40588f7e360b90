package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDecodesYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, "config.yaml", `
networks:
  - name: primary
    cpu_affinity: 2
persistence:
  store_type: memmap
  base_path: /tmp/journal
sessions:
  - session_id: FIX-A
    protocol: FIX
    role: acceptor
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Networks, 1)
	require.Equal(t, "primary", cfg.Networks[0].Name)
	require.Equal(t, 2, cfg.Networks[0].CPUAffinity)
	require.Equal(t, "memmap", cfg.Persistence.StoreType)
	require.Len(t, cfg.Sessions, 1)
	require.Equal(t, "FIX-A", cfg.Sessions[0].SessionID)
}

func TestApplyDefaultsFillsZeroValuesOnly(t *testing.T) {
	cfg := &Config{
		Networks: []NetworkConfig{{Name: "n1", ReadBufferSize: 4096}},
		Sessions: []SessionConfig{{SessionID: "S1"}},
	}
	cfg.applyDefaults()

	require.Equal(t, 4096, cfg.Networks[0].ReadBufferSize, "explicitly set field must survive defaulting")
	require.Equal(t, 64*1024, cfg.Networks[0].WriteBufferSize)
	require.Equal(t, 1<<20, cfg.Networks[0].RingBufferCap)
	require.Equal(t, 100, cfg.Networks[0].SelectTimeoutMs)
	require.Equal(t, -1, cfg.Networks[0].CPUAffinity)

	require.Equal(t, "memmap", cfg.Persistence.StoreType)
	require.Equal(t, int64(256*1024*1024), cfg.Persistence.MaxFileSize)
	require.Equal(t, 10, cfg.HA.LeaseSeconds)

	require.Equal(t, 30, cfg.Sessions[0].HeartbeatInterval)
	require.Equal(t, "4.2", cfg.Sessions[0].OuchVersion)
}

func TestApplyEnvOverridesTakePrecedence(t *testing.T) {
	t.Setenv("OMNIBRIDGE_NETWORK_NAME", "overridden")
	t.Setenv("OMNIBRIDGE_CPU_AFFINITY", "7")
	t.Setenv("OMNIBRIDGE_BUSY_SPIN", "true")
	t.Setenv("OMNIBRIDGE_JOURNAL_PATH", "/override/path")
	t.Setenv("OMNIBRIDGE_REDIS_ADDR", "redis:6379")

	cfg := &Config{Networks: []NetworkConfig{{Name: "original"}}}
	cfg.applyEnvOverrides()

	require.Equal(t, "overridden", cfg.Networks[0].Name)
	require.Equal(t, 7, cfg.Networks[0].CPUAffinity)
	require.True(t, cfg.Networks[0].BusySpinMode)
	require.Equal(t, "/override/path", cfg.Persistence.BasePath)
	require.Equal(t, "redis:6379", cfg.HA.RedisAddr)
}

func TestManagerMergesOverlayOntoMaster(t *testing.T) {
	dir := t.TempDir()
	masterPath := writeYAML(t, dir, "config.yaml", `
sessions:
  - session_id: FIX-A
    heartbeat_interval: 30
    host: original-host
    enabled: true
`)

	m, err := NewManager(masterPath, filepath.Join(dir, "overrides.yaml"))
	require.NoError(t, err)

	cfg, ok := m.Get("FIX-A")
	require.True(t, ok)
	require.Equal(t, 30, cfg.HeartbeatInterval)
	require.Equal(t, "original-host", cfg.Host)
	require.True(t, cfg.Enabled)

	m.SetOverride("FIX-A", SessionConfig{HeartbeatInterval: 5, Enabled: false})

	cfg, ok = m.Get("FIX-A")
	require.True(t, ok)
	require.Equal(t, 5, cfg.HeartbeatInterval, "overlay's non-zero HeartbeatInterval must win")
	require.Equal(t, "original-host", cfg.Host, "overlay's zero-valued Host must not clobber master")
	require.False(t, cfg.Enabled, "overlay's explicit Enabled=false must win once an override exists")
}

func TestManagerToleratesMissingOverridesFile(t *testing.T) {
	dir := t.TempDir()
	masterPath := writeYAML(t, dir, "config.yaml", `
sessions:
  - session_id: FIX-A
`)

	m, err := NewManager(masterPath, filepath.Join(dir, "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Len(t, m.Sessions(), 1)
}

func TestManagerGetUnknownSessionReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	masterPath := writeYAML(t, dir, "config.yaml", `sessions: []`)

	m, err := NewManager(masterPath, filepath.Join(dir, "overrides.yaml"))
	require.NoError(t, err)

	_, ok := m.Get("NOPE")
	require.False(t, ok)
}
