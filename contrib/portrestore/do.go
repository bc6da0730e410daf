package portrestore

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/surrealdb/surrealport"
	"github.com/surrealdb/surrealport/contrib/portdump"
	"github.com/surrealdb/surrealport/internal/backend"
	"github.com/surrealdb/surrealport/pkg/bindings/redisbind"
	"github.com/surrealdb/surrealport/pkg/config"
	"github.com/surrealdb/surrealport/pkg/logger"
)

// Do executes the restore described by cfg. The importer uses the prefix
// recorded in the dump manifest.
func Do(ctx context.Context, cfg *Config) error {
	log, err := logger.New().
		FromBuffer(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Verbose(cfg.Verbose).
		Make()
	if err != nil {
		return err
	}
	defer log.Close()

	manifest, err := portdump.ReadManifest(cfg.Input)
	if err != nil {
		return err
	}
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
		surrealport.WithPrefix(manifest.Prefix),
		surrealport.WithFactory(schema.Factory(st)),
		surrealport.WithLogger(log),
	}
	if cfg.RedisURL != "" {
		rc, err := redisbind.Connect(redisbind.Options{URL: cfg.RedisURL, TTL: 24 * time.Hour})
		if err != nil {
			return err
		}
		defer rc.Close()
		portOpts = append(portOpts, surrealport.WithBindings(rc.Factory(func() string {
			return manifest.ExportID + ":" + uuid.NewString()
		})))
	}

	restorer := New(surrealport.New(st, schema.Blueprints, portOpts...), log)
	restorer.SkipVerify = cfg.SkipVerify

	log.Info("starting restore", "input", cfg.Input, "export_id", manifest.ExportID, "records", manifest.Records, "fragments", manifest.Fragments)
	res, err := restorer.Restore(ctx, cfg.Input)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	stats := restorer.Stats()
	log.Info("restore completed",
		"elapsed", stats.EndTime.Sub(stats.StartTime).String(),
		"fragments", stats.Fragments,
		"created", stats.Created,
		"adopted", stats.Adopted,
		"skipped", stats.Skipped,
		"deferred", stats.Deferred,
		"resolved", stats.Resolved,
	)

	if cfg.BindingsOutput != "" {
		if err := writeBindings(cfg.BindingsOutput, res.Bindings); err != nil {
			return err
		}
	}
	return nil
}

func writeBindings(path string, bindings any) error {
	data, err := json.MarshalIndent(bindings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal bindings: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write bindings: %w", err)
	}
	return nil
}
