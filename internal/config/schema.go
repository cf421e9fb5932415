package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version   int             `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Summaries SummariesConfig `yaml:"summaries"`
	Seed      SeedConfig      `yaml:"seed"`
	Client    ClientConfig    `yaml:"client"`
}

// ServerConfig configures the data service HTTP listener
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"` // 0 keeps event streams open
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins,omitempty"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig selects the logger
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// SummariesConfig controls bullet point maintenance
type SummariesConfig struct {
	CascadeInvalidation *bool  `yaml:"cascade_invalidation,omitempty"` // nil = true
	DefaultSourceType   string `yaml:"default_source_type"`
}

// Cascade reports whether invalidation reaches derived bullet points
func (s SummariesConfig) Cascade() bool {
	return s.CascadeInvalidation == nil || *s.CascadeInvalidation
}

// SeedConfig points at a seed file imported at startup
type SeedConfig struct {
	Path  string `yaml:"path,omitempty"`
	Watch bool   `yaml:"watch"`
}

// ClientConfig configures the coordinator's connection to the data service
type ClientConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     Duration      `yaml:"timeout"`
	Parallelism int           `yaml:"parallelism"`
	MaxNodes    int           `yaml:"max_nodes"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the client circuit breaker
type BreakerConfig struct {
	MaxRequests      uint32   `yaml:"max_requests"`
	Interval         Duration `yaml:"interval"`
	Timeout          Duration `yaml:"timeout"`
	FailureThreshold float64  `yaml:"failure_threshold"`
	MinRequests      uint32   `yaml:"min_requests"`
}

// Duration is a time.Duration that serializes as a string
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
