package portdump

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/surrealdb/surrealport/pkg/constants"
)

// ManifestSuffix is appended to a dump path to name its manifest.
const ManifestSuffix = ".manifest.json"

var ErrManifestNotFound = errors.New("manifest not found")

// Manifest describes one dump file.
type Manifest struct {
	// ExportID identifies the export run.
	ExportID string `json:"export_id"`

	// File information
	Filename  string    `json:"filename"`
	Format    string    `json:"format"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`

	// Graph information
	Prefix    string         `json:"prefix"`
	RootType  string         `json:"root_type"`
	RootIDs   []any          `json:"root_ids"`
	Types     []string       `json:"types"`
	Counts    map[string]int `json:"counts"`
	Records   int            `json:"records"`
	// Fragments is the number of CBOR items after the header. A type may
	// span several fragments.
	Fragments int `json:"fragments"`

	// Checksum for integrity
	SHA256 string `json:"sha256,omitempty"`
}

// Validate validates the manifest fields for consistency and completeness.
func (m *Manifest) Validate() error {
	if m.Format != constants.DumpFormat {
		return fmt.Errorf("unsupported dump format: %q", m.Format)
	}
	if _, err := uuid.Parse(m.ExportID); err != nil {
		return fmt.Errorf("invalid export id %q: %w", m.ExportID, err)
	}
	if m.Filename == "" {
		return fmt.Errorf("manifest missing filename")
	}
	if m.Prefix == "" {
		return fmt.Errorf("manifest missing prefix")
	}
	total := 0
	for _, t := range m.Types {
		n, ok := m.Counts[t]
		if !ok {
			return fmt.Errorf("manifest missing count for type %s", t)
		}
		total += n
	}
	if total != m.Records {
		return fmt.Errorf("manifest counts sum to %d, want %d records", total, m.Records)
	}
	if m.Fragments < len(m.Types) || (m.Records == 0 && m.Fragments != 0) {
		return fmt.Errorf("manifest lists %d fragments for %d types", m.Fragments, len(m.Types))
	}
	return nil
}

// WriteManifest writes a manifest file alongside the dump.
func WriteManifest(dumpPath string, manifest *Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return os.WriteFile(dumpPath+ManifestSuffix, data, 0600)
}

// ReadManifest reads and validates the manifest of a dump.
func ReadManifest(dumpPath string) (*Manifest, error) {
	data, err := os.ReadFile(dumpPath + ManifestSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w for %s", ErrManifestNotFound, dumpPath)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return &manifest, nil
}
