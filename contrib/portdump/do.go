package portdump

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/surrealdb/surrealport"
	"github.com/surrealdb/surrealport/internal/backend"
	"github.com/surrealdb/surrealport/pkg/config"
	"github.com/surrealdb/surrealport/pkg/logger"
	"github.com/surrealdb/surrealport/pkg/models"
)

// Do executes the dump described by cfg: it loads the schema file, opens
// the store, exports the roots and writes the dump and its manifest.
func Do(ctx context.Context, cfg *Config) error {
	log, err := logger.New().
		FromBuffer(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Verbose(cfg.Verbose).
		Make()
	if err != nil {
		return err
	}
	defer log.Close()

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
	if cfg.DependencyOrder {
		portOpts = append(portOpts, surrealport.WithDependencyOrder())
	}
	d := New(surrealport.New(st, schema.Blueprints, portOpts...), log)

	outputPath := cfg.GetOutputPath(time.Now())
	log.Info("starting dump", "type", cfg.Type, "roots", len(cfg.IDs), "output", outputPath)

	start := time.Now()
	manifest, err := d.Dump(ctx, outputPath, models.TypeTag(cfg.Type), cfg.RootIDs()...)
	if err != nil {
		return fmt.Errorf("dump failed: %w", err)
	}

	log.Info("dump completed",
		"elapsed", time.Since(start).String(),
		"export_id", manifest.ExportID,
		"records", manifest.Records,
		"fragments", manifest.Fragments,
		"size", formatBytes(manifest.Size),
	)
	for _, t := range manifest.Types {
		log.Debug("dumped type", "type", t, "records", manifest.Counts[t])
	}
	return nil
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
