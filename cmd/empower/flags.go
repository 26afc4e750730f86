package main

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	Validate        bool
}

func bindFlags(fs *pflag.FlagSet, cfg *CLIConfig) {
	fs.StringVarP(&cfg.ConfigPath, "config", "c",
		getEnv("EMPOWER_CONFIG", ""),
		"Path to a YAML or JSON configuration file (env: EMPOWER_CONFIG)")
	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("EMPOWER_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: EMPOWER_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("EMPOWER_LOG_FORMAT", "json"),
		"Log format: json, text (env: EMPOWER_LOG_FORMAT)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("EMPOWER_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: EMPOWER_SHUTDOWN_TIMEOUT)")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
