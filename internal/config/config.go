// Package config loads client configuration from an optional YAML file
// and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all docdesk client configuration.
type Config struct {
	// Server
	ServerURL string        `yaml:"server"`
	Timeout   time.Duration `yaml:"timeout"`

	// Local state (session, theme)
	StateDir string `yaml:"state_dir"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// File browser
	RefreshDelay       time.Duration `yaml:"refresh_delay"`
	MaxParallelUploads int           `yaml:"max_parallel_uploads"`
	RetryAttempts      int           `yaml:"retry_attempts"`

	// Metrics listener, empty to disable
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ServerURL:          "http://localhost:8080",
		Timeout:            30 * time.Second,
		StateDir:           DefaultStateDir(),
		LogLevel:           "warn",
		LogFormat:          "console",
		RefreshDelay:       500 * time.Millisecond,
		MaxParallelUploads: 0, // 0 = all at once
		RetryAttempts:      1,
	}
}

// DefaultStateDir returns ~/.config/docdesk.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docdesk"
	}
	return filepath.Join(home, ".config", "docdesk")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultStateDir(), "config.yaml")
}

// Load reads the YAML file at path (missing files are fine), then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.ServerURL = envOr("DOCDESK_SERVER", cfg.ServerURL)
	cfg.Timeout = envDuration("DOCDESK_TIMEOUT", cfg.Timeout)
	cfg.StateDir = envOr("DOCDESK_STATE_DIR", cfg.StateDir)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("LOG_FORMAT", cfg.LogFormat)
	cfg.RefreshDelay = envDuration("DOCDESK_REFRESH_DELAY", cfg.RefreshDelay)
	cfg.MaxParallelUploads = envInt("DOCDESK_MAX_PARALLEL_UPLOADS", cfg.MaxParallelUploads)
	cfg.RetryAttempts = envInt("DOCDESK_RETRY_ATTEMPTS", cfg.RetryAttempts)
	cfg.MetricsAddr = envOr("DOCDESK_METRICS_ADDR", cfg.MetricsAddr)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the client cannot use.
func (c *Config) Validate() error {
	c.ServerURL = strings.TrimSuffix(c.ServerURL, "/")
	if c.ServerURL == "" {
		return fmt.Errorf("server URL is required")
	}
	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return fmt.Errorf("server URL %q must start with http:// or https://", c.ServerURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RefreshDelay < 0 {
		return fmt.Errorf("refresh delay must not be negative")
	}
	if c.MaxParallelUploads < 0 {
		return fmt.Errorf("max parallel uploads must not be negative")
	}
	if c.RetryAttempts < 1 {
		c.RetryAttempts = 1
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
