package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "ctrl+d", cfg.UI.Hotkey)
	assert.Equal(t, time.Second, cfg.Poll.Interval)
	assert.Equal(t, 200, cfg.ListLimit)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFromOverridesAndKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source: http://127.0.0.1:9000
ui:
  hotkey: ctrl+o
poll:
  interval: 2s
list_limit: 0
`), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.Source)
	assert.Equal(t, "ctrl+o", cfg.UI.Hotkey)
	assert.Equal(t, 2*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 16*time.Millisecond, cfg.Poll.Frame)
	assert.Equal(t, 200, cfg.ListLimit)
}

func TestLoadFromRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll:\n  interval: 10ms\n"), 0o644))
	_, err := LoadFrom(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("loader:\n  extensions: [wasm]\n"), 0o644))
	_, err = LoadFrom(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("ui: [\n"), 0o644))
	_, err = LoadFrom(path)
	assert.Error(t, err)
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.BaseURL = "http://localhost:3000"
	cfg.UI.DefaultTab = "routes"
	require.NoError(t, SaveTo(cfg, path))

	got, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestConfigPathHonorsXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	assert.Equal(t, filepath.Join(dir, "devlens", "config.yaml"), ConfigPath())
}
