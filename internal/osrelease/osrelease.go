// Package osrelease detects the host operating system release.
//
// The release version feeds the package database's --releasever option,
// which is required when the target root is still empty and carries no
// release information of its own.
package osrelease

import (
	"fmt"
	"strings"

	"github.com/atgreen/do-better/internal/fsops"
)

// DefaultPath is the standard os-release location.
const DefaultPath = "/etc/os-release"

// Info describes a detected OS release.
type Info struct {
	// ID is the distribution identifier (e.g. "fedora").
	ID string

	// VersionID is the release version (e.g. "40").
	VersionID string

	// PrettyName is the human readable release name.
	PrettyName string
}

// Detector provides an abstraction for OS release detection.
type Detector interface {
	// Detect returns the host release information.
	Detect() (*Info, error)
}

// FileDetector implements Detector by parsing an os-release file.
type FileDetector struct {
	fs   fsops.FS
	path string
}

// NewFileDetector creates a FileDetector reading from path, or from
// DefaultPath if path is empty.
func NewFileDetector(fs fsops.FS, path string) *FileDetector {
	if path == "" {
		path = DefaultPath
	}
	return &FileDetector{fs: fs, path: path}
}

// Detect parses the os-release file into an Info.
func (d *FileDetector) Detect() (*Info, error) {
	data, err := d.fs.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", d.path, err)
	}

	info := &Info{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		value = strings.Trim(value, `"'`)

		switch key {
		case "ID":
			info.ID = value
		case "VERSION_ID":
			info.VersionID = value
		case "PRETTY_NAME":
			info.PrettyName = value
		}
	}

	if info.ID == "" {
		return nil, fmt.Errorf("no ID field in %s", d.path)
	}
	return info, nil
}

// FakeDetector implements Detector with fixed values for testing.
type FakeDetector struct {
	// Info is returned from every Detect call when Err is nil.
	Info Info

	// Err is returned from every Detect call when set.
	Err error
}

// Detect returns the fixed info or error.
func (d *FakeDetector) Detect() (*Info, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	info := d.Info
	return &info, nil
}
