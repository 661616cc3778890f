// Package config carries the aggregator's runtime settings. Values are
// resolved in three layers: struct-tag defaults, then an optional YAML
// file, then FITWIRE_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/fitwire/fitwire/internal/gatt"
)

// Duration is a time.Duration that unmarshals from strings like "30s" in
// YAML documents and environment variables.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// Std returns the value as a plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds application configuration.
type Config struct {
	// LogLevel controls logger verbosity: debug, info, warn, or error.
	// The default stays below warnings so log lines do not interleave
	// with the metric report on a terminal.
	LogLevel string `yaml:"log_level" env:"FITWIRE_LOG_LEVEL" default:"warn"`

	// DialTimeout bounds a single connection attempt. The per-address
	// retry loop applies it to every attempt anew.
	DialTimeout Duration `yaml:"dial_timeout" env:"FITWIRE_DIAL_TIMEOUT"`

	// AllowDuplicates asks the transport to deliver repeat advertisements
	// from the same device while scanning.
	AllowDuplicates bool `yaml:"allow_duplicates" env:"FITWIRE_ALLOW_DUPLICATES" default:"false"`

	// StatusAddr is the listen address for the JSON status endpoint.
	// Empty leaves the endpoint disabled.
	StatusAddr string `yaml:"status_addr" env:"FITWIRE_STATUS_ADDR"`

	// RecentMetrics is the capacity of the recent-readings ring served
	// by the status endpoint.
	RecentMetrics uint32 `yaml:"recent_metrics" env:"FITWIRE_RECENT_METRICS" default:"256"`
}

// Load resolves the configuration. The YAML file at path is skipped when
// path is empty; a path that cannot be read is an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	cfg.DialTimeout = Duration(gatt.DefaultDialTimeout)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial timeout must be positive, got %s", c.DialTimeout.Std())
	}
	if c.RecentMetrics == 0 {
		return fmt.Errorf("recent metrics capacity must be positive")
	}
	return nil
}

// NewLogger creates a logger configured per LogLevel.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
