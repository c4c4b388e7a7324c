// Package config handles configuration for the server component: defaults,
// then an optional JSON file, then environment variables, then command-line
// flags. Each layer only overrides what it sets.
package config

import (
	"fmt"
	"time"
)

// Config holds runtime settings for the userledger server.
//
// Fields:
//   - DatabaseDriver: database/sql driver name, "sqlite" or "pgx".
//   - DatabaseDSN: data source for the driver (a file path for sqlite).
//   - SeedOnEmpty: insert the sample users when the table is empty.
//   - MetricsAddr: bind address of the Prometheus endpoint; empty disables it.
//   - LogLevel: debug, info, warn or error.
//   - ShutdownTimeout: grace period for the metrics server on shutdown.
type Config struct {
	DatabaseDriver  string        `env:"USERLEDGER_DB_DRIVER"`
	DatabaseDSN     string        `env:"USERLEDGER_DB_DSN"`
	SeedOnEmpty     bool          `env:"USERLEDGER_SEED_ON_EMPTY"`
	MetricsAddr     string        `env:"USERLEDGER_METRICS_ADDR"`
	LogLevel        string        `env:"USERLEDGER_LOG_LEVEL"`
	ShutdownTimeout time.Duration `env:"USERLEDGER_SHUTDOWN_TIMEOUT"`
}

// LoadDefaults populates Config with development defaults: a local SQLite
// file seeded with sample data.
func (c *Config) LoadDefaults() {
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "userledger.db"
	c.SeedOnEmpty = true
	c.MetricsAddr = ":9090"
	c.LogLevel = "info"
	c.ShutdownTimeout = 5 * time.Second
}

// LoadConfig builds a Config from args (usually os.Args[1:]) and the
// environment.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown timeout must not be negative")
	}
	return nil
}
