// Package config handles loading and saving devlens configuration.
//
// The file lives at $XDG_CONFIG_HOME/devlens/config.yaml (falling back to
// ~/.config/devlens/config.yaml). Command-line flags override its values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// UIConfig holds overlay preferences.
type UIConfig struct {
	Hotkey     string `yaml:"hotkey,omitempty"`      // toggles the panel
	DefaultTab string `yaml:"default_tab,omitempty"` // components, store, signals, ...
	StartOpen  bool   `yaml:"start_open,omitempty"`
}

// PollConfig sets the refresh cadence.
type PollConfig struct {
	Interval time.Duration `yaml:"interval,omitempty"` // snapshot + memory poll
	Frame    time.Duration `yaml:"frame,omitempty"`    // FPS sampling
	Timeout  time.Duration `yaml:"timeout,omitempty"`  // per-request bound
}

// LoaderConfig configures bundle fetching.
type LoaderConfig struct {
	Extensions []string `yaml:"extensions,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Source    string       `yaml:"source,omitempty"`   // host URL or snapshot dir
	BaseURL   string       `yaml:"base_url,omitempty"` // used for full navigation
	ListLimit int          `yaml:"list_limit,omitempty"`
	UI        UIConfig     `yaml:"ui,omitempty"`
	Poll      PollConfig   `yaml:"poll,omitempty"`
	Loader    LoaderConfig `yaml:"loader,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Source:    "http://localhost:8080",
		ListLimit: 200,
		UI: UIConfig{
			Hotkey:     "ctrl+d",
			DefaultTab: "components",
			StartOpen:  true,
		},
		Poll: PollConfig{
			Interval: time.Second,
			Frame:    16 * time.Millisecond,
			Timeout:  3 * time.Second,
		},
		Loader: LoaderConfig{
			Extensions: []string{".wasm"},
		},
	}
}

// ConfigDir returns the XDG config directory for devlens.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "devlens")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "devlens")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Source = expandHome(cfg.Source)
	cfg.fillZeroes()
	return cfg, cfg.Validate()
}

// fillZeroes restores defaults for values explicitly set to zero.
func (c *Config) fillZeroes() {
	def := DefaultConfig()
	if c.ListLimit <= 0 {
		c.ListLimit = def.ListLimit
	}
	if c.UI.Hotkey == "" {
		c.UI.Hotkey = def.UI.Hotkey
	}
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = def.Poll.Interval
	}
	if c.Poll.Frame <= 0 {
		c.Poll.Frame = def.Poll.Frame
	}
	if c.Poll.Timeout <= 0 {
		c.Poll.Timeout = def.Poll.Timeout
	}
	if len(c.Loader.Extensions) == 0 {
		c.Loader.Extensions = def.Loader.Extensions
	}
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	for _, ext := range c.Loader.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("loader extension %q must start with a dot", ext)
		}
	}
	if c.Poll.Interval < 100*time.Millisecond {
		return fmt.Errorf("poll interval %v is below 100ms", c.Poll.Interval)
	}
	return nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
