package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the daemon configuration
type Config struct {
	Listen   string        `yaml:"listen"`    // TCP address of the control listener
	Root     string        `yaml:"root"`      // Served directory; empty serves the whole host
	StartDir string        `yaml:"start_dir"` // Native directory sessions start in
	Volumes  string        `yaml:"volumes"`   // Drive letters below "/": auto, off
	LocalEOL string        `yaml:"local_eol"` // Line ending of stored text: native, lf, crlf
	Passive  PassiveConfig `yaml:"passive"`
	Limits   LimitsConfig  `yaml:"limits"`
	Auth     AuthConfig    `yaml:"auth"`
	Logging  LoggingConfig `yaml:"logging"`
}

// PassiveConfig holds passive mode settings
type PassiveConfig struct {
	MinPort    int    `yaml:"min_port"`
	MaxPort    int    `yaml:"max_port"`
	PublicHost string `yaml:"public_host"` // Address advertised in PASV replies
}

// LimitsConfig holds connection and transfer limits
type LimitsConfig struct {
	MaxConnections  int           `yaml:"max_connections"`  // 0 means unlimited
	IdleTimeout     time.Duration `yaml:"idle_timeout"`     // Control connection idle timeout
	DataTimeout     time.Duration `yaml:"data_timeout"`     // Data connection setup timeout
	Bandwidth       int64         `yaml:"bandwidth"`        // Bytes per second per transfer
	GlobalBandwidth int64         `yaml:"global_bandwidth"` // Bytes per second for all transfers
}

// AuthConfig holds login settings
type AuthConfig struct {
	Anonymous bool              `yaml:"anonymous"` // Admit the anonymous and ftp users
	Users     map[string]string `yaml:"users"`     // User name to bcrypt hash
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level"`        // log level: debug, info, warn, error
	Format      string `yaml:"format"`       // log format: text, json
	Verbose     bool   `yaml:"verbose"`      // Log every command and response
	TransferLog string `yaml:"transfer_log"` // xferlog file path
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Listen:   ":2121",
		Volumes:  "auto",
		LocalEOL: "native",
		Limits: LimitsConfig{
			IdleTimeout: 5 * time.Minute,
			DataTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			Anonymous: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	switch c.Volumes {
	case "auto", "off":
	default:
		return fmt.Errorf("invalid volumes mode: %s", c.Volumes)
	}

	switch c.LocalEOL {
	case "native", "lf", "crlf":
	default:
		return fmt.Errorf("invalid local_eol: %s", c.LocalEOL)
	}

	p := c.Passive
	if p.MinPort != 0 || p.MaxPort != 0 {
		if p.MinPort <= 0 || p.MaxPort < p.MinPort || p.MaxPort > 65535 {
			return fmt.Errorf("invalid passive port range [%d, %d]", p.MinPort, p.MaxPort)
		}
	}

	if c.Limits.MaxConnections < 0 {
		return fmt.Errorf("max_connections cannot be negative")
	}
	if c.Limits.IdleTimeout < 0 {
		return fmt.Errorf("idle_timeout cannot be negative")
	}
	if c.Limits.DataTimeout <= 0 {
		return fmt.Errorf("data_timeout must be positive")
	}
	if c.Limits.Bandwidth < 0 || c.Limits.GlobalBandwidth < 0 {
		return fmt.Errorf("bandwidth limits cannot be negative")
	}

	for name := range c.Auth.Users {
		if name == "" {
			return fmt.Errorf("user name cannot be empty")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// LineEnding returns the configured line ending, or "" for the platform's.
func (c *Config) LineEnding() string {
	switch c.LocalEOL {
	case "lf":
		return "\n"
	case "crlf":
		return "\r\n"
	}
	return ""
}

// LogLevel maps Logging.Level to a slog level.
func (c *Config) LogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
