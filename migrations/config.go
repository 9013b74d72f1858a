package migrations

import (
	"fmt"
	"os"
	"strings"
)

// Config holds the migration tool's configuration.
//
// This package deliberately reads its own environment instead of importing
// internal/config, which would create an import cycle through the shared test
// database helpers.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string

	// MigrationTable is the table golang-migrate tracks applied versions in.
	MigrationTable string
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (*Config, error) {
	config := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrationTable: envOrDefault("MIGRATION_TABLE", "schema_migrations"),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL cannot be empty")
	}

	if c.MigrationTable == "" {
		return fmt.Errorf("MIGRATION_TABLE cannot be empty")
	}

	return nil
}

// String renders the configuration with credentials masked, safe for logs.
func (c *Config) String() string {
	return fmt.Sprintf("Config{DatabaseURL: %s, MigrationTable: %s}",
		MaskDatabaseURL(c.DatabaseURL), c.MigrationTable)
}

// MaskDatabaseURL replaces the password of a connection URL with asterisks.
func MaskDatabaseURL(url string) string {
	authStart := strings.Index(url, "//")
	if authStart < 0 {
		return url
	}

	authStart += 2

	authEnd := len(url)
	for i := authStart; i < len(url); i++ {
		if url[i] == '/' || url[i] == '?' || url[i] == '#' {
			authEnd = i
			break
		}
	}

	// Last "@" of the authority section, in case the password contains one.
	atPos := strings.LastIndex(url[authStart:authEnd], "@")
	if atPos < 0 {
		return url
	}

	atPos += authStart

	colonPos := strings.Index(url[authStart:atPos], ":")
	if colonPos < 0 {
		return url
	}

	colonPos += authStart

	if atPos == colonPos+1 {
		return url
	}

	return url[:colonPos+1] + "***" + url[atPos:]
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}
