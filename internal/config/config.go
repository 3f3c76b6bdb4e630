// Package config loads respd's server configuration from environment
// variables and an optional .env file.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds every tunable respd needs at startup.
type Config struct {
	// Server basics
	Addr          string `env:"RESPD_ADDR" envDefault:":6379"`
	MetricsAddr   string `env:"RESPD_METRICS_ADDR" envDefault:":6381"`
	Dir           string `env:"RESPD_DIR" envDefault:"."`
	DBFilename    string `env:"RESPD_DBFILENAME" envDefault:"dump.rdb"`
	ReplicaOf     string `env:"RESPD_REPLICAOF" envDefault:""` // "<host> <port>", empty means master

	// Capacity
	MaxConnections int `env:"RESPD_MAX_CONNECTIONS" envDefault:"250"`

	// Replication
	WaitPollInterval  int     `env:"RESPD_WAIT_POLL_MS" envDefault:"5"`
	ReplConnRateLimit float64 `env:"RESPD_REPLCONF_RATE" envDefault:"20"` // GETACK fan-out rate, per second

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from a .env file (if present) and environment
// variables, applying defaults and validating the result. Priority: env
// vars > .env file > struct defaults.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found (using environment variables only)")
		}
	} else if logger != nil {
		logger.Info().Msg("loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("RESPD_ADDR is required")
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("RESPD_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", c.LogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, pretty (got: %s)", c.LogFormat)
	}
	return nil
}

// LogConfig emits the loaded configuration as a structured log line.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("addr", c.Addr).
		Str("metrics_addr", c.MetricsAddr).
		Str("dir", c.Dir).
		Str("dbfilename", c.DBFilename).
		Str("replicaof", c.ReplicaOf).
		Int("max_connections", c.MaxConnections).
		Int("wait_poll_ms", c.WaitPollInterval).
		Float64("replconf_rate", c.ReplConnRateLimit).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("server configuration loaded")
}
