package portdump

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/surrealdb/surrealport/internal/backend"
)

// Configuration validation errors
var (
	ErrNoConfig = errors.New("a schema config file is required (-config)")
	ErrNoType   = errors.New("a root type is required (-type)")
	ErrNoIDs    = errors.New("at least one root id is required (-id)")
)

// Config holds all configuration for a dump operation.
type Config struct {
	// ConfigFile is the YAML schema and blueprint file.
	ConfigFile string

	// Store settings
	Store backend.Options

	// Type of the root records
	Type string
	// IDs are the real ids of the roots. Integral ids are passed to the store
	// as integers.
	IDs []string

	// Output file path
	// Defaults to <type>-<timestamp>.cbor
	Output string
	// Base directory for dumps (prefixes output path)
	Dir string

	// Order types so referenced types are written first
	DependencyOrder bool
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

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ConfigFile == "" {
		return ErrNoConfig
	}
	if c.Type == "" {
		return ErrNoType
	}
	if len(c.IDs) == 0 {
		return ErrNoIDs
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("invalid store settings: %w", err)
	}
	return nil
}

// GetOutputPath returns the full output path, applying Dir prefix if set.
func (c *Config) GetOutputPath(now time.Time) string {
	out := c.Output
	if out == "" {
		out = fmt.Sprintf("%s-%s.cbor", c.Type, now.UTC().Format("20060102T150405Z"))
	}
	if c.Dir != "" {
		return filepath.Join(c.Dir, out)
	}
	return out
}

// RootIDs converts IDs to the values handed to the store.
func (c *Config) RootIDs() []any {
	ids := make([]any, 0, len(c.IDs))
	for _, id := range c.IDs {
		ids = append(ids, backend.ParseID(id))
	}
	return ids
}
