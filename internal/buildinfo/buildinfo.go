// Package buildinfo writes the scanner metadata manifest into a built root.
//
// Vulnerability scanners expect a metadata directory describing what went
// into an image. The manifest records the release, the seed and kept
// package sets, removal counts, and a digest of the kept list so two builds
// can be compared for determinism. The directory must exist in every built
// image, even when a builder stage never populates it.
package buildinfo

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/atgreen/do-better/internal/fsops"
	"github.com/atgreen/do-better/internal/hash"
)

// SchemaVersion is the current manifest schema. Bump on incompatible
// changes to Manifest.
const SchemaVersion = 1

// Dir is the scanner metadata directory, relative to the target root.
const Dir = "root/buildinfo"

// ManifestName is the manifest file name inside Dir.
const ManifestName = "manifest.json"

// Manifest describes one completed rootfs build.
type Manifest struct {
	// Schema is the manifest schema version.
	Schema int `json:"schema"`

	// Release is the OS release identifier the build targeted.
	Release string `json:"release,omitempty"`

	// Seeds is the caller-supplied seed set plus the essential baseline.
	Seeds []string `json:"seeds"`

	// Kept is the final keep set retained in the image.
	Kept []string `json:"kept"`

	// RemovedCount is the number of packages erased by the removal phase.
	RemovedCount int `json:"removedCount"`

	// Digest is a stable digest of Kept, for determinism comparison.
	Digest string `json:"digest"`

	// CreatedAt is when the build finished.
	CreatedAt time.Time `json:"createdAt"`
}

// Writer persists manifests into target roots.
type Writer struct {
	fs     fsops.FS
	hasher hash.Hasher
}

// NewWriter creates a new Writer.
func NewWriter(fs fsops.FS, hasher hash.Hasher) *Writer {
	return &Writer{fs: fs, hasher: hasher}
}

// EnsureDir creates the scanner metadata directory in targetRoot if it does
// not exist. The directory is an invariant of every built image.
func (w *Writer) EnsureDir(targetRoot string) error {
	dir := filepath.Join(targetRoot, Dir)
	if err := w.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create buildinfo directory: %w", err)
	}
	return nil
}

// Write fills in the manifest's schema and digest and persists it into
// targetRoot.
func (w *Writer) Write(targetRoot string, m *Manifest) error {
	if err := w.EnsureDir(targetRoot); err != nil {
		return err
	}

	m.Schema = SchemaVersion
	m.Digest = w.hasher.SumList(m.Kept)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(targetRoot, Dir, ManifestName)
	if err := w.fs.AtomicWrite(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Load reads a manifest back from targetRoot.
func Load(fs fsops.FS, targetRoot string) (*Manifest, error) {
	data, err := fs.ReadFile(filepath.Join(targetRoot, Dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Schema > SchemaVersion {
		return nil, fmt.Errorf("manifest schema %d is newer than supported %d", m.Schema, SchemaVersion)
	}
	return &m, nil
}
