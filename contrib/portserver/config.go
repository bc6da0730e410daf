package portserver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/surrealdb/surrealport"
	"github.com/surrealdb/surrealport/internal/backend"
	"github.com/surrealdb/surrealport/pkg/bindings/redisbind"
	"github.com/surrealdb/surrealport/pkg/config"
	"github.com/surrealdb/surrealport/pkg/logger"
	slogger "github.com/surrealdb/surrealport/pkg/logger/slog"
)

var ErrNoConfig = errors.New("a schema config file is required (-config)")

// Log formats.
const (
	LogZerolog = "zerolog"
	LogSlog    = "slog"
)

// Config holds the server configuration.
type Config struct {
	// ConfigFile is the YAML schema and blueprint file.
	ConfigFile string

	// Store settings
	Store backend.Options

	// Addr is the listen address.
	Addr string
	// RedisURL keeps binding tables in Redis when set.
	RedisURL string
	// LogFile receives JSON logs instead of the console when set.
	LogFile string
	// LogFormat picks the logging backend: zerolog or slog.
	LogFormat string
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
		Addr:      ":8080",
		LogFormat: LogZerolog,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.ConfigFile == "" {
		return ErrNoConfig
	}
	if c.Addr == "" {
		return fmt.Errorf("listen address is required")
	}
	switch c.LogFormat {
	case "", LogZerolog, LogSlog:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("invalid store settings: %w", err)
	}
	return nil
}

// Do serves until ctx is cancelled.
func Do(ctx context.Context, cfg *Config) error {
	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	schema, err := config.Load(cfg.ConfigFile)
	if err != nil {
		return err
	}

	opts := cfg.Store
	opts.Logger = log
	st, cleanup, err := backend.Open(ctx, schema, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	portOpts := []surrealport.Option{
		surrealport.WithPrefix(schema.Prefix),
		surrealport.WithFactory(schema.Factory(st)),
		surrealport.WithLogger(log),
	}
	if cfg.RedisURL != "" {
		rc, err := redisbind.Connect(redisbind.Options{URL: cfg.RedisURL, TTL: time.Hour})
		if err != nil {
			return err
		}
		defer rc.Close()
		portOpts = append(portOpts, surrealport.WithBindings(rc.Factory(uuid.NewString)))
	}

	return New(surrealport.New(st, schema.Blueprints, portOpts...), log).Run(ctx, cfg.Addr)
}

func newLogger(cfg *Config) (logger.Logger, func(), error) {
	if cfg.LogFormat == LogSlog {
		if cfg.LogFile == "" {
			return slogger.NewJSON(os.Stderr, cfg.Verbose), func() {}, nil
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, err
		}
		return slogger.NewJSON(f, cfg.Verbose), func() { _ = f.Close() }, nil
	}

	build := logger.New().Verbose(cfg.Verbose)
	if cfg.LogFile != "" {
		build = build.FromPath(cfg.LogFile)
	} else {
		build = build.FromBuffer(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	log, err := build.Make()
	if err != nil {
		return nil, nil, err
	}
	return log, func() { _ = log.Close() }, nil
}
