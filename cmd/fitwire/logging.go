package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fitwire/fitwire/internal/config"
)

// loadConfig resolves the layered configuration and applies the --log-level
// flag on top; command-line flags outrank even environment variables.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if logLevel, _ := cmd.Flags().GetString("log-level"); logLevel != "" {
		switch logLevel {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = logLevel
		default:
			return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", logLevel)
		}
	}

	return cfg, nil
}

// configureLogger resolves the configuration and builds the logger in one
// step for commands that need both.
func configureLogger(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cfg.NewLogger(), nil
}
