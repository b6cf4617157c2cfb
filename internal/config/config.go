// Package config provides the engine's own operating configuration —
// database DSN, artifact storage path, logging and default run options —
// loaded from the environment. It does not parse user-authored workflow
// definitions; that belongs to the out-of-scope authoring layer.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the engine's operating configuration.
type Config struct {
	Database DatabaseConfig
	Storage  StorageConfig
	Logging  LoggingConfig
	Run      RunConfig
}

// DatabaseConfig configures the SQL-backed DBService. An empty URL means
// "use the no-op DBService".
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// StorageConfig configures the local-disk StorageService. An empty
// BasePath means "use the no-op StorageService".
type StorageConfig struct {
	BasePath string
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// RunConfig holds per-run engine options (spec §6).
type RunConfig struct {
	// IgnoreFailure turns failing siblings from fatal-to-sequence into
	// non-fatal. Default false.
	IgnoreFailure bool

	// DefaultTimeout applies to nodes that don't carry their own
	// executable timeout. Zero means no default.
	DefaultTimeout time.Duration

	// TerminationGrace bounds how long a terminated process group is
	// given to exit before the engine escalates to a forced kill.
	TerminationGrace time.Duration
}

// Load loads configuration from the environment, applying a local .env
// file if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			URL:             getEnv("PFLOW_DATABASE_URL", ""),
			MaxOpenConns:    getEnvAsInt("PFLOW_DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("PFLOW_DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("PFLOW_DB_CONN_MAX_LIFETIME", time.Hour),
		},
		Storage: StorageConfig{
			BasePath: getEnv("PFLOW_STORAGE_PATH", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("PFLOW_LOG_LEVEL", "info"),
			Format: getEnv("PFLOW_LOG_FORMAT", "json"),
		},
		Run: RunConfig{
			IgnoreFailure:    getEnvAsBool("PFLOW_IGNORE_FAILURE", false),
			DefaultTimeout:   getEnvAsDuration("PFLOW_DEFAULT_TIMEOUT", 0),
			TerminationGrace: getEnvAsDuration("PFLOW_TERMINATION_GRACE", 5*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database connection limits must not be negative")
	}
	if c.Run.TerminationGrace < 0 {
		return fmt.Errorf("termination grace must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvAsBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}
