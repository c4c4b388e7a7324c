package config

import (
	"flag"
	"fmt"

	"github.com/dmitrijs2005/userledger/internal/flagx"
)

var knownFlags = []string{"-t", "-d", "-seed", "-m", "-l", "-s"}

// parseFlags applies the server's command-line flags:
//
//	-t string     database driver ("sqlite" or "pgx")
//	-d string     database DSN
//	-seed=bool    seed sample users into an empty table
//	-m string     metrics listen address ("" disables)
//	-l string     log level
//	-s duration   shutdown timeout (e.g. "10s")
//
// Other flags, such as -c, are filtered out first.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("userledger", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDriver, "t", config.DatabaseDriver, "database driver (sqlite|pgx)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.BoolVar(&config.SeedOnEmpty, "seed", config.SeedOnEmpty, "seed sample users into an empty database")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "metrics listen address")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.DurationVar(&config.ShutdownTimeout, "s", config.ShutdownTimeout, "shutdown timeout")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
