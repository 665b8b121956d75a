// Package config loads and validates arena-replay's TOML configuration
// file, with command-line flags taking precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	// Log file configuration
	Log LogConfig `toml:"log"`

	// Output destinations for assembled replays
	Output OutputConfig `toml:"output"`

	// Application configuration
	App AppConfig `toml:"app"`
}

// LogConfig contains log file tailing settings.
type LogConfig struct {
	FilePath         string `toml:"file_path"`         // Path to MTGA Player.log
	PollInterval     string `toml:"poll_interval"`     // Polling interval (e.g., "2s")
	RotationFallback string `toml:"rotation_fallback"` // Stat-based rotation check interval when fsnotify is unavailable
}

// OutputConfig contains replay sink settings.
type OutputConfig struct {
	Dir     string `toml:"dir"`      // Directory for per-match JSON replay files; empty disables the directory sink
	DBPath  string `toml:"db_path"`  // SQLite database path; empty disables the relational sink
	CardsDB string `toml:"cards_db"` // Path to the binary card reference catalog; empty disables card name enrichment
}

// AppConfig contains general application settings.
type AppConfig struct {
	DebugMode bool `toml:"debug_mode"` // Enable debug logging
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			FilePath:         "",
			PollInterval:     "1s",
			RotationFallback: "5s",
		},
		Output: OutputConfig{
			Dir:     "",
			DBPath:  "",
			CardsDB: "",
		},
		App: AppConfig{
			DebugMode: false,
		},
	}
}

// configPath returns the path to the configuration file.
func configPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".arena-replay")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	return filepath.Join(configDir, "config.toml"), nil
}

// Load loads the configuration from disk. Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}

	return LoadFrom(path)
}

// LoadFrom loads the configuration from an explicit path. Returns the
// default config if the file doesn't exist.
func LoadFrom(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return config, nil
}

// Save saves the configuration to disk.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Log.PollInterval); err != nil {
		return fmt.Errorf("invalid poll interval %q: %w", c.Log.PollInterval, err)
	}

	if _, err := time.ParseDuration(c.Log.RotationFallback); err != nil {
		return fmt.Errorf("invalid rotation fallback interval %q: %w", c.Log.RotationFallback, err)
	}

	if c.Output.Dir == "" && c.Output.DBPath == "" {
		return fmt.Errorf("at least one of output.dir or output.db_path must be set")
	}

	return nil
}

// GetLogPollInterval returns the log poll interval as a duration.
func (c *Config) GetLogPollInterval() (time.Duration, error) {
	return time.ParseDuration(c.Log.PollInterval)
}

// GetRotationFallback returns the rotation fallback interval as a duration.
func (c *Config) GetRotationFallback() (time.Duration, error) {
	return time.ParseDuration(c.Log.RotationFallback)
}
