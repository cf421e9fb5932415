// Package config provides configuration management for echelon.
//
// One YAML file configures both binaries: the data service reads the
// server, database, log, summaries and seed sections; the CLI reads the
// client and log sections. A missing file means defaults throughout.
//
// Config file locations (priority order):
//  1. $ECHELON_CONFIG
//  2. ./echelon.yaml
//  3. $XDG_CONFIG_HOME/echelon/config.yaml
//  4. ~/.config/echelon/config.yaml
//  5. /etc/echelon/config.yaml
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"echelon/internal/domain"

	"gopkg.in/yaml.v3"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(15 * time.Second)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if c.Database.Path == "" {
		c.Database.Path = "./echelon.db"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.Summaries.DefaultSourceType == "" {
		c.Summaries.DefaultSourceType = domain.DefaultSourceType
	}

	if c.Client.BaseURL == "" {
		c.Client.BaseURL = "http://localhost:8000"
	}
	if c.Client.Timeout == 0 {
		c.Client.Timeout = Duration(10 * time.Second)
	}
	if c.Client.Parallelism == 0 {
		c.Client.Parallelism = 1
	}
	if c.Client.MaxNodes == 0 {
		c.Client.MaxNodes = 10000
	}

	b := &c.Client.Breaker
	if b.MaxRequests == 0 {
		b.MaxRequests = 1
	}
	if b.Interval == 0 {
		b.Interval = Duration(60 * time.Second)
	}
	if b.Timeout == 0 {
		b.Timeout = Duration(30 * time.Second)
	}
	if b.FailureThreshold == 0 {
		b.FailureThreshold = 0.6
	}
	if b.MinRequests == 0 {
		b.MinRequests = 5
	}
}

// Validate rejects values the binaries cannot run with
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "json", "console":
	default:
		return domain.InvalidInput(fmt.Sprintf("log.format must be json or console, got %q", c.Log.Format))
	}

	if u, err := url.Parse(c.Client.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return domain.InvalidInput(fmt.Sprintf("client.base_url %q is not an absolute URL", c.Client.BaseURL))
	}
	if c.Client.Parallelism < 1 {
		return domain.InvalidInput("client.parallelism must be at least 1")
	}
	if c.Client.MaxNodes < 1 {
		return domain.InvalidInput("client.max_nodes must be at least 1")
	}
	if t := c.Client.Breaker.FailureThreshold; t <= 0 || t > 1 {
		return domain.InvalidInput(fmt.Sprintf("client.breaker.failure_threshold must be in (0, 1], got %v", t))
	}
	return nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	seed := "none"
	if c.Seed.Path != "" {
		seed = c.Seed.Path
		if c.Seed.Watch {
			seed += " (watched)"
		}
	}
	return fmt.Sprintf("Listen: %s, Database: %s, Seed: %s, Cascade invalidation: %v",
		c.Server.Addr, c.Database.Path, seed, c.Summaries.Cascade())
}
