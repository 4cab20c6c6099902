package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lu-zhengda/devkill/internal/logging"
)

// Views accepted by default_view.
const (
	ViewAll = "all"
	ViewDev = "dev"
)

// Config holds all devkill configuration.
type Config struct {
	RefreshInterval int      `yaml:"refresh_interval" json:"refresh_interval"` // seconds
	DefaultView     string   `yaml:"default_view" json:"default_view"`         // "all" or "dev"
	Exclude         []string `yaml:"exclude" json:"exclude"`                   // process names to hide
	DevProcesses    []string `yaml:"dev_processes" json:"dev_processes"`       // extra dev server names
	ColorEnabled    bool     `yaml:"color_enabled" json:"color_enabled"`
	LogLevel        string   `yaml:"log_level" json:"log_level"`
	LogFormat       string   `yaml:"log_format" json:"log_format"` // "text" or "json"
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		RefreshInterval: 3,
		DefaultView:     ViewAll,
		Exclude:         []string{},
		DevProcesses:    []string{},
		ColorEnabled:    true,
		LogLevel:        "warn",
		LogFormat:       "text",
	}
}

// Load loads config from the given path. If path is empty, it uses the
// default location (~/.config/devkill/config.yaml). If the file does not
// exist, it returns defaults without creating the file.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
		if path == "" {
			return Default(), nil
		}
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return LoadFrom(path)
}

// LoadFrom loads and parses config from the given path. Missing fields
// keep their default values.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive, got %d", c.RefreshInterval)
	}
	switch c.DefaultView {
	case ViewAll, ViewDev:
	default:
		return fmt.Errorf("default_view must be %q or %q, got %q", ViewAll, ViewDev, c.DefaultView)
	}
	if !logging.ValidLevel(c.LogLevel) {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be \"text\" or \"json\", got %q", c.LogFormat)
	}
	return nil
}

// Interval returns RefreshInterval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Second
}

// IsExcluded reports whether name is listed in Exclude.
func (c *Config) IsExcluded(name string) bool {
	for _, ex := range c.Exclude {
		if ex == name {
			return true
		}
	}
	return false
}

// Save marshals the config to YAML and writes it to the given path,
// creating parent directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "devkill", "config.yaml")
}
