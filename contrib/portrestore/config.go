package portrestore

import (
	"errors"
	"fmt"

	"github.com/surrealdb/surrealport/internal/backend"
)

// Configuration validation errors
var (
	ErrNoInput  = errors.New("an input dump file is required (-input)")
	ErrNoConfig = errors.New("a schema config file is required (-config)")
)

// Config holds all configuration for a restore operation.
type Config struct {
	// ConfigFile is the YAML schema and blueprint file.
	ConfigFile string

	// Store settings
	Store backend.Options

	// Input dump file path
	Input string

	// RedisURL keeps the binding table in Redis when set.
	RedisURL string
	// BindingsOutput writes the surrogate to real id map as JSON when set.
	BindingsOutput string

	// Skip the checksum comparison against the manifest
	SkipVerify bool
	// Enable verbose logging
	Verbose bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Store: backend.Options{
			Kind:     backend.SurrealDB,
			DSN:      "ws://localhost:8000",
			Username: "root",
			Password: "root",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Input == "" {
		return ErrNoInput
	}
	if c.ConfigFile == "" {
		return ErrNoConfig
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("invalid store settings: %w", err)
	}
	return nil
}
