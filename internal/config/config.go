// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/winsync/internal/shape"
)

// Default configuration values.
const (
	DefaultHeartbeatInterval  = time.Second
	DefaultLivenessMultiplier = 4
	DefaultTickInterval       = 100 * time.Millisecond
	DefaultShapeEpsilon       = 0.5
	DefaultFallbackWidth      = 800
	DefaultFallbackHeight     = 600
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "500ms", "1s", "1m30s", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	// Try parsing as integer (milliseconds)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '500ms', '1s', '1m30s' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config represents the winsync configuration.
type Config struct {
	Registry RegistryConfig `toml:"registry"`
	Store    StoreConfig    `toml:"store"`
	Shape    ShapeConfig    `toml:"shape"`
	Notify   NotifyConfig   `toml:"notify"`
	TUI      TUIConfig      `toml:"tui"`
}

// RegistryConfig holds the heartbeat and liveness policy.
type RegistryConfig struct {
	HeartbeatInterval  Duration `toml:"heartbeat_interval"`  // Max time between republications
	LivenessMultiplier int      `toml:"liveness_multiplier"` // Timeout = multiplier * heartbeat
	TickInterval       Duration `toml:"tick_interval"`       // How often Update runs
	ShapeEpsilon       float64  `toml:"shape_epsilon"`       // Ignore shape changes up to this much
}

// LivenessTimeout returns how long an entry may go without a heartbeat.
func (r RegistryConfig) LivenessTimeout() time.Duration {
	return time.Duration(r.LivenessMultiplier) * r.HeartbeatInterval.Duration()
}

// StoreConfig locates the shared registry.
type StoreConfig struct {
	Path string `toml:"path"` // Empty = $XDG_RUNTIME_DIR/winsync/registry.json
}

// ShapeConfig selects how the local shape is sampled.
type ShapeConfig struct {
	Source         string `toml:"source"`          // auto, x11, terminal, static
	FallbackWidth  int    `toml:"fallback_width"`  // Used when nothing can be sampled
	FallbackHeight int    `toml:"fallback_height"` // Used when nothing can be sampled
}

// NotifyConfig controls desktop notifications on membership changes.
type NotifyConfig struct {
	Desktop bool `toml:"desktop"`
}

// TUIConfig holds TUI-specific settings.
type TUIConfig struct {
	ShowHelp         bool   `toml:"show_help"`
	ShowMap          bool   `toml:"show_map"`
	ClipboardCommand string `toml:"clipboard_command"` // Empty = auto-detect
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			HeartbeatInterval:  Duration(DefaultHeartbeatInterval),
			LivenessMultiplier: DefaultLivenessMultiplier,
			TickInterval:       Duration(DefaultTickInterval),
			ShapeEpsilon:       DefaultShapeEpsilon,
		},
		Store: StoreConfig{
			Path: "",
		},
		Shape: ShapeConfig{
			Source:         string(shape.SourceAuto),
			FallbackWidth:  DefaultFallbackWidth,
			FallbackHeight: DefaultFallbackHeight,
		},
		Notify: NotifyConfig{
			Desktop: false,
		},
		TUI: TUIConfig{
			ShowHelp: true,
			ShowMap:  true,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "winsync", "config.toml")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	// Start with defaults
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	r := c.Registry
	if r.HeartbeatInterval.Duration() < 10*time.Millisecond {
		return fmt.Errorf("heartbeat_interval must be at least 10ms, got %s", r.HeartbeatInterval.Duration())
	}
	// Below 3 a single throttled tick would already evict a live surface.
	if r.LivenessMultiplier < 3 || r.LivenessMultiplier > 10 {
		return fmt.Errorf("liveness_multiplier must be between 3 and 10, got %d", r.LivenessMultiplier)
	}
	if r.TickInterval.Duration() <= 0 || r.TickInterval.Duration() > r.HeartbeatInterval.Duration() {
		return fmt.Errorf("tick_interval must be positive and no longer than heartbeat_interval, got %s", r.TickInterval.Duration())
	}
	if r.ShapeEpsilon < 0 {
		return fmt.Errorf("shape_epsilon must not be negative, got %g", r.ShapeEpsilon)
	}

	validSource := false
	for _, s := range shape.ValidSources() {
		if c.Shape.Source == string(s) {
			validSource = true
			break
		}
	}
	if !validSource {
		return fmt.Errorf("invalid shape source %q, must be one of: %v", c.Shape.Source, shape.ValidSources())
	}
	if c.Shape.FallbackWidth <= 0 || c.Shape.FallbackHeight <= 0 {
		return fmt.Errorf("fallback size must be positive, got %dx%d", c.Shape.FallbackWidth, c.Shape.FallbackHeight)
	}

	return nil
}
