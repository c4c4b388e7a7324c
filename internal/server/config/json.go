package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/userledger/internal/flagx"
	"github.com/dmitrijs2005/userledger/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "5s" and integer nanoseconds are accepted.
type JsonConfig struct {
	DatabaseDriver  string         `json:"database_driver"`
	DatabaseDSN     string         `json:"database_dsn"`
	SeedOnEmpty     bool           `json:"seed_on_empty"`
	MetricsAddr     string         `json:"metrics_addr"`
	LogLevel        string         `json:"log_level"`
	ShutdownTimeout timex.Duration `json:"shutdown_timeout"`
}

// parseJson loads the file named by -c or -config, if any. Keys missing from
// the file keep their current values.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{
		DatabaseDriver:  config.DatabaseDriver,
		DatabaseDSN:     config.DatabaseDSN,
		SeedOnEmpty:     config.SeedOnEmpty,
		MetricsAddr:     config.MetricsAddr,
		LogLevel:        config.LogLevel,
		ShutdownTimeout: timex.Duration{Duration: config.ShutdownTimeout},
	}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	config.DatabaseDriver = c.DatabaseDriver
	config.DatabaseDSN = c.DatabaseDSN
	config.SeedOnEmpty = c.SeedOnEmpty
	config.MetricsAddr = c.MetricsAddr
	config.LogLevel = c.LogLevel
	config.ShutdownTimeout = c.ShutdownTimeout.Duration
	return nil
}
