// Package config provides centralized configuration management for the ingester.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Database DatabaseConfig
	Files    FilesConfig
	CSV      CSVConfig
	Ingest   IngestConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// FilesConfig holds the directory layout the ingester operates on.
// All three directories are externally provisioned and must be writable.
type FilesConfig struct {
	// InputDir is scanned (non-recursively) for export files (default: input)
	InputDir string `env:"INPUT_DIR" default:"input"`

	// ArchiveDir is the root of the success archive tree (default: archive)
	ArchiveDir string `env:"ARCHIVE_DIR" default:"archive"`

	// ErrorDir is the root of the failure archive tree (default: error)
	ErrorDir string `env:"ERROR_DIR" default:"error"`
}

// CSVConfig holds CSV parsing settings.
type CSVConfig struct {
	// Separator is the field delimiter used by the upstream export (default: ;)
	Separator string `env:"CSV_SEPARATOR" default:";"`

	// Encoding is the fallback charset used when detection is inconclusive (default: utf-8)
	Encoding string `env:"CSV_ENCODING" default:"utf-8"`
}

// IngestConfig holds settings for a single ingestion pass.
type IngestConfig struct {
	// Timeout is the maximum duration for one full run (default: 10m)
	Timeout time.Duration `env:"INGEST_TIMEOUT" default:"10m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// SeparatorRune returns the configured separator as a rune.
// Validate guarantees the separator is exactly one rune.
func (c *CSVConfig) SeparatorRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Separator)
	return r
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}

	if c.Files.InputDir == "" {
		errs = append(errs, "INPUT_DIR must not be empty")
	}
	if c.Files.ArchiveDir == "" {
		errs = append(errs, "ARCHIVE_DIR must not be empty")
	}
	if c.Files.ErrorDir == "" {
		errs = append(errs, "ERROR_DIR must not be empty")
	}

	if utf8.RuneCountInString(c.CSV.Separator) != 1 {
		errs = append(errs, fmt.Sprintf("CSV_SEPARATOR (%q) must be a single character", c.CSV.Separator))
	}
	if c.CSV.Encoding == "" {
		errs = append(errs, "CSV_ENCODING must not be empty")
	}

	if c.Ingest.Timeout <= 0 {
		errs = append(errs, "INGEST_TIMEOUT must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Files: {Input: %q, Archive: %q, Error: %q}, ",
		c.Files.InputDir, c.Files.ArchiveDir, c.Files.ErrorDir))
	b.WriteString(fmt.Sprintf("CSV: {Separator: %q, Encoding: %q}, ",
		c.CSV.Separator, c.CSV.Encoding))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
