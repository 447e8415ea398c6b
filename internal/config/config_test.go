package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gonzalop/vftpd/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vftpd.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config validation failed: %v", err)
	}
	if cfg.Listen != ":2121" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if !cfg.Auth.Anonymous {
		t.Error("anonymous login should be enabled by default")
	}
	if cfg.LineEnding() != "" {
		t.Errorf("LineEnding = %q, want platform default", cfg.LineEnding())
	}
	if cfg.LogLevel() != slog.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel())
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
listen: "127.0.0.1:2121"
root: "/srv/ftp"
volumes: "off"
local_eol: "crlf"

passive:
  min_port: 30000
  max_port: 30100
  public_host: "ftp.example.com"

limits:
  max_connections: 50
  idle_timeout: 90s
  data_timeout: 5s
  bandwidth: 1048576

auth:
  anonymous: false
  users:
    alice: "$2a$10$abcdefghijklmnopqrstuuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ12"

logging:
  level: "debug"
  format: "json"
  verbose: true
`)

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Listen != "127.0.0.1:2121" || cfg.Root != "/srv/ftp" || cfg.Volumes != "off" {
		t.Errorf("unexpected top-level values: %+v", cfg)
	}
	if cfg.LineEnding() != "\r\n" {
		t.Errorf("LineEnding = %q", cfg.LineEnding())
	}
	if cfg.Passive.MinPort != 30000 || cfg.Passive.MaxPort != 30100 || cfg.Passive.PublicHost != "ftp.example.com" {
		t.Errorf("Passive = %+v", cfg.Passive)
	}
	if cfg.Limits.IdleTimeout != 90*time.Second || cfg.Limits.DataTimeout != 5*time.Second {
		t.Errorf("Limits = %+v", cfg.Limits)
	}
	if cfg.Limits.MaxConnections != 50 || cfg.Limits.Bandwidth != 1048576 {
		t.Errorf("Limits = %+v", cfg.Limits)
	}
	if cfg.Auth.Anonymous || len(cfg.Auth.Users) != 1 {
		t.Errorf("Auth = %+v", cfg.Auth)
	}
	if cfg.LogLevel() != slog.LevelDebug || cfg.Logging.Format != "json" || !cfg.Logging.Verbose {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	cfg, err := config.LoadConfig(writeConfig(t, "root: /tmp\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Listen != ":2121" || cfg.Limits.DataTimeout != 10*time.Second || !cfg.Auth.Anonymous {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
	if _, err := config.LoadConfig(writeConfig(t, "listen: [unclosed\n")); err == nil {
		t.Error("expected error for malformed YAML")
	}
	if _, err := config.LoadConfig(writeConfig(t, "volumes: maybe\n")); err == nil {
		t.Error("expected validation error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty listen", func(c *config.Config) { c.Listen = "" }},
		{"bad volumes", func(c *config.Config) { c.Volumes = "all" }},
		{"bad eol", func(c *config.Config) { c.LocalEOL = "cr" }},
		{"min port only", func(c *config.Config) { c.Passive.MinPort = 3000 }},
		{"inverted ports", func(c *config.Config) { c.Passive.MinPort, c.Passive.MaxPort = 3000, 2000 }},
		{"port too high", func(c *config.Config) { c.Passive.MinPort, c.Passive.MaxPort = 3000, 70000 }},
		{"negative connections", func(c *config.Config) { c.Limits.MaxConnections = -1 }},
		{"negative idle", func(c *config.Config) { c.Limits.IdleTimeout = -time.Second }},
		{"zero data timeout", func(c *config.Config) { c.Limits.DataTimeout = 0 }},
		{"negative bandwidth", func(c *config.Config) { c.Limits.GlobalBandwidth = -1 }},
		{"empty user", func(c *config.Config) { c.Auth.Users = map[string]string{"": "x"} }},
		{"bad level", func(c *config.Config) { c.Logging.Level = "trace" }},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
