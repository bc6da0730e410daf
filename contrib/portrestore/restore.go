package portrestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/surrealdb/surrealport"
	"github.com/surrealdb/surrealport/contrib/portdump"
	"github.com/surrealdb/surrealport/pkg/codec"
	"github.com/surrealdb/surrealport/pkg/deserializer"
	"github.com/surrealdb/surrealport/pkg/logger"
)

var (
	ErrChecksumMismatch = errors.New("dump checksum does not match manifest")
	ErrPrefixMismatch   = errors.New("dump prefix does not match importer prefix")
	ErrIncomplete       = errors.New("dump holds fewer fragments than its manifest")
)

// RestoreStats tracks restoration statistics.
type RestoreStats struct {
	Fragments int
	Created   int
	Adopted   int
	Skipped   int
	Deferred  int
	Resolved  int
	Vetoed    int
	StartTime time.Time
	EndTime   time.Time
}

// Restorer imports CBOR dump files.
type Restorer struct {
	port       *surrealport.Port
	log        logger.Logger
	stats      RestoreStats
	SkipVerify bool
}

// New creates a Restorer importing through p.
func New(p *surrealport.Port, log logger.Logger) *Restorer {
	if log == nil {
		log = logger.Nop()
	}
	return &Restorer{port: p, log: log}
}

// Stats returns the statistics of the last Restore.
func (r *Restorer) Stats() RestoreStats {
	return r.stats
}

// Restore checks the dump at path against its manifest and streams it into
// the store.
func (r *Restorer) Restore(ctx context.Context, path string) (*deserializer.Result, error) {
	manifest, err := portdump.ReadManifest(path)
	if err != nil {
		return nil, err
	}
	if manifest.Prefix != r.port.Prefix() {
		return nil, fmt.Errorf("%w: %q, want %q", ErrPrefixMismatch, manifest.Prefix, r.port.Prefix())
	}

	if !r.SkipVerify {
		sum, size, err := portdump.Checksum(path)
		if err != nil {
			return nil, fmt.Errorf("failed to checksum dump: %w", err)
		}
		if sum != manifest.SHA256 || size != manifest.Size {
			return nil, fmt.Errorf("%w: %s", ErrChecksumMismatch, path)
		}
		r.log.Debug("verified dump checksum", "sha256", sum, "size", size)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dump file: %w", err)
	}
	defer f.Close()

	r.stats = RestoreStats{StartTime: time.Now()}
	res, err := r.port.Import(ctx, codec.NewCBORStream(f))
	r.stats.EndTime = time.Now()
	if err != nil {
		return nil, fmt.Errorf("import failed: %w", err)
	}

	r.stats.Fragments = res.Fragments
	r.stats.Created = res.Created
	r.stats.Adopted = res.Adopted
	r.stats.Skipped = res.Skipped
	r.stats.Deferred = res.Stats.Deferred
	r.stats.Resolved = res.Stats.Resolved
	r.stats.Vetoed = res.Stats.Vetoed

	if res.Fragments < manifest.Fragments {
		return res, fmt.Errorf("%w: read %d of %d", ErrIncomplete, res.Fragments, manifest.Fragments)
	}
	r.log.Info("restored dump",
		"export_id", manifest.ExportID,
		"created", res.Created,
		"adopted", res.Adopted,
		"skipped", res.Skipped,
	)
	return res, nil
}
