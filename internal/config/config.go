// Package config loads the touchlink runtime configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/touchlink/internal/serialmux"
)

// DefaultConfigPath is where cmd/touchlink looks for its config when no
// -config flag is given.
const DefaultConfigPath = "touchlink.json"

// Defaults for fields left out of the config file.
const (
	DefaultListen            = "localhost:7390"
	DefaultSettingsDB        = "touchlink.db"
	DefaultFrameRate         = 90.0
	DefaultKeepAliveInterval = 10 * time.Minute
)

// Config is the root configuration. Every field is optional; the Get*
// methods supply defaults for anything omitted, so partial files are safe.
type Config struct {
	// Tracking service link
	SerialPort        *string `json:"serial_port,omitempty"`
	BaudRate          *int    `json:"baud_rate,omitempty"`
	KeepAliveInterval *string `json:"keep_alive_interval,omitempty"` // duration string like "10m"
	Dev               *bool   `json:"dev,omitempty"`

	// Host loop
	FrameRate      *float64 `json:"frame_rate,omitempty"`
	ResyncInterval *string  `json:"resync_interval,omitempty"` // "" or "0s" disables periodic resync

	// Host services
	Listen     *string           `json:"listen,omitempty"`
	SettingsDB *string           `json:"settings_db,omitempty"`
	Strings    map[string]string `json:"strings,omitempty"`
}

// Empty returns a Config with all fields unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file must have a .json
// extension and be under 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}

	if c.FrameRate != nil {
		if *c.FrameRate <= 0 || *c.FrameRate > 1000 {
			return fmt.Errorf("frame_rate must be in (0, 1000], got %f", *c.FrameRate)
		}
	}

	if c.KeepAliveInterval != nil && *c.KeepAliveInterval != "" {
		d, err := time.ParseDuration(*c.KeepAliveInterval)
		if err != nil {
			return fmt.Errorf("invalid keep_alive_interval '%s': %w", *c.KeepAliveInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("keep_alive_interval must be positive, got %s", d)
		}
	}

	if c.ResyncInterval != nil && *c.ResyncInterval != "" {
		d, err := time.ParseDuration(*c.ResyncInterval)
		if err != nil {
			return fmt.Errorf("invalid resync_interval '%s': %w", *c.ResyncInterval, err)
		}
		if d < 0 {
			return fmt.Errorf("resync_interval must not be negative, got %s", d)
		}
	}

	return nil
}

// GetSerialPort returns the service port path, empty when unset.
func (c *Config) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

// GetBaudRate returns the baud_rate value or the default.
func (c *Config) GetBaudRate() int {
	if c.BaudRate == nil {
		return serialmux.DefaultBaudRate
	}
	return *c.BaudRate
}

// GetKeepAliveInterval parses and returns the KeepAliveInterval as a time.Duration.
func (c *Config) GetKeepAliveInterval() time.Duration {
	if c.KeepAliveInterval == nil || *c.KeepAliveInterval == "" {
		return DefaultKeepAliveInterval
	}
	d, err := time.ParseDuration(*c.KeepAliveInterval)
	if err != nil || d <= 0 {
		return DefaultKeepAliveInterval
	}
	return d
}

// GetDev reports whether the synthetic handler should be used.
func (c *Config) GetDev() bool {
	if c.Dev == nil {
		return false
	}
	return *c.Dev
}

// GetFrameRate returns the frame_rate value or the default.
func (c *Config) GetFrameRate() float64 {
	if c.FrameRate == nil {
		return DefaultFrameRate
	}
	return *c.FrameRate
}

// GetFrameInterval returns the period between host frames.
func (c *Config) GetFrameInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.GetFrameRate())
}

// GetResyncInterval returns the periodic resync interval; zero disables it.
func (c *Config) GetResyncInterval() time.Duration {
	if c.ResyncInterval == nil || *c.ResyncInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.ResyncInterval)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// GetListen returns the admin listen address or the default.
func (c *Config) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return DefaultListen
	}
	return *c.Listen
}

// GetSettingsDB returns the settings database path or the default.
func (c *Config) GetSettingsDB() string {
	if c.SettingsDB == nil || *c.SettingsDB == "" {
		return DefaultSettingsDB
	}
	return *c.SettingsDB
}

// GetStrings returns the localized string overrides. The result is never nil.
func (c *Config) GetStrings() map[string]string {
	out := make(map[string]string, len(c.Strings))
	for k, v := range c.Strings {
		out[k] = v
	}
	return out
}
