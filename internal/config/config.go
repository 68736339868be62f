// Package config loads the squad project configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied when fields are absent from the file.
const (
	DefaultReadinessRetries   = 10
	DefaultDispatchTimeoutSec = 600
	DefaultMemoryLimit        = 5
)

// Config is the root configuration for a squad project.
type Config struct {
	Version int `yaml:"version"`

	// ActiveProject is the working directory used for tasks whose own
	// project_path is empty.
	ActiveProject string `yaml:"active_project"`

	// ReadinessRetries bounds the startup health probe loop. Must be a
	// positive integer.
	ReadinessRetries int `yaml:"readiness_retries"`

	// DispatchTimeoutSec bounds a single backend invocation.
	DispatchTimeoutSec int `yaml:"dispatch_timeout_sec"`

	// MemoryLimit is the number of entries kept per agent memory log.
	MemoryLimit int `yaml:"memory_limit"`

	Backend Backend `yaml:"backend"`
}

// Backend describes the execution backend and how to reach it.
// Two interchangeable transports exist: a session-based CLI tool
// spawned per dispatch, or a long-lived HTTP request/response service.
type Backend struct {
	Mode      string   `yaml:"mode"`                  // "cli" or "api"
	Cmd       string   `yaml:"cmd,omitempty"`         // CLI command to spawn
	Args      []string `yaml:"args,omitempty"`        // CLI arguments
	BaseURL   string   `yaml:"base_url,omitempty"`    // API service base URL
	APIKeyEnv string   `yaml:"api_key_env,omitempty"` // env var holding the API key
}

// Load reads and parses the config file at the given path, applying
// documented defaults for absent fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to the given path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Default returns a starter config.
func Default() *Config {
	cfg := &Config{
		Version: 1,
		Backend: Backend{Mode: "cli", Cmd: "claude"},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.ActiveProject == "" {
		c.ActiveProject = "."
	}
	if c.ReadinessRetries == 0 {
		c.ReadinessRetries = DefaultReadinessRetries
	}
	if c.DispatchTimeoutSec == 0 {
		c.DispatchTimeoutSec = DefaultDispatchTimeoutSec
	}
	if c.MemoryLimit == 0 {
		c.MemoryLimit = DefaultMemoryLimit
	}
}

func (c *Config) validate() error {
	if c.ReadinessRetries < 1 {
		return fmt.Errorf("readiness_retries must be a positive integer, got %d", c.ReadinessRetries)
	}
	if c.DispatchTimeoutSec < 1 {
		return fmt.Errorf("dispatch_timeout_sec must be a positive integer, got %d", c.DispatchTimeoutSec)
	}
	if c.MemoryLimit < 1 {
		return fmt.Errorf("memory_limit must be a positive integer, got %d", c.MemoryLimit)
	}
	switch c.Backend.Mode {
	case "cli":
		if c.Backend.Cmd == "" {
			return fmt.Errorf("backend: cmd is required for cli mode")
		}
	case "api":
		if c.Backend.BaseURL == "" {
			return fmt.Errorf("backend: base_url is required for api mode")
		}
	default:
		return fmt.Errorf("backend: mode must be 'cli' or 'api', got %q", c.Backend.Mode)
	}
	return nil
}
