package portdump

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/surrealdb/surrealport"
	"github.com/surrealdb/surrealport/pkg/codec"
	"github.com/surrealdb/surrealport/pkg/constants"
	"github.com/surrealdb/surrealport/pkg/logger"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/store"
)

// Dumper exports record graphs into CBOR dump files.
type Dumper struct {
	port *surrealport.Port
	log  logger.Logger
	now  func() time.Time

	// ChunkSize caps the records per fragment in the dump.
	ChunkSize int
}

// New creates a Dumper exporting through p.
func New(p *surrealport.Port, log logger.Logger) *Dumper {
	if log == nil {
		log = logger.Nop()
	}
	return &Dumper{port: p, log: log, now: time.Now, ChunkSize: codec.DefaultChunkSize}
}

// Dump exports the records of type t with the given real ids into one graph
// and writes it to path, followed by its manifest.
func (d *Dumper) Dump(ctx context.Context, path string, t models.TypeTag, ids ...any) (*Manifest, error) {
	roots := make([]store.Record, 0, len(ids))
	for _, id := range ids {
		r, err := d.port.Store().Find(ctx, t, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load root %s %v: %w", t, id, err)
		}
		if r == nil {
			return nil, fmt.Errorf("%w: %s %v", surrealport.ErrRecordNotFound, t, id)
		}
		roots = append(roots, r)
	}

	g, err := d.port.Export(ctx, roots...)
	if err != nil {
		return nil, fmt.Errorf("export failed: %w", err)
	}
	d.log.Debug("exported graph", "type", t, "roots", len(roots), "records", g.Len())

	sum, size, fragments, err := writeDump(path, g, d.ChunkSize)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{
		ExportID:  uuid.NewString(),
		Filename:  filepath.Base(path),
		Format:    constants.DumpFormat,
		CreatedAt: d.now().UTC(),
		Size:      size,
		Prefix:    d.port.Prefix(),
		RootType:  string(t),
		RootIDs:   ids,
		Counts:    make(map[string]int),
		Records:   g.Len(),
		Fragments: fragments,
		SHA256:    sum,
	}
	for _, typ := range g.Types() {
		manifest.Types = append(manifest.Types, string(typ))
		manifest.Counts[string(typ)] = len(g.Records(typ))
	}

	if err := WriteManifest(path, manifest); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	return manifest, nil
}

func writeDump(path string, g *models.Graph, chunk int) (string, int64, int, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", 0, 0, fmt.Errorf("failed to create dump directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return "", 0, 0, fmt.Errorf("failed to create dump file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	cw := &countingWriter{w: io.MultiWriter(f, h)}
	w := codec.NewCBORWriter(cw, codec.WithChunkSize(chunk))
	if err := w.WriteGraph(g); err != nil {
		return "", 0, 0, fmt.Errorf("failed to write dump: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", 0, 0, fmt.Errorf("failed to sync dump file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), cw.n, w.Written(), nil
}

// Checksum returns the hex SHA-256 and the size of the file at path.
func Checksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
