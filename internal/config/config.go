// Package config manages do-better configuration and filesystem paths.
//
// Configuration covers the target root location and the package set policy:
// the essential baseline installed into every image, the disallow list that
// no dependency edge may override, and the protected list that survives the
// removal phase unconditionally. Policy defaults are deployment-specific,
// so every list can be replaced via a JSON settings file or extended from
// the command line.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/atgreen/do-better/internal/fsops"
)

// Paths contains the filesystem paths used by do-better.
type Paths struct {
	// TargetRoot is the directory tree under construction
	// (default: /rootfs)
	TargetRoot string

	// Settings is the path to the optional settings file
	// (default: /etc/do-better/config.json)
	Settings string
}

// DefaultPaths returns the default paths for do-better.
// Paths can be overridden with environment variables:
// - DO_BETTER_ROOT: Override the target root directory
// - DO_BETTER_CONFIG: Override the settings file location
func DefaultPaths() *Paths {
	root := os.Getenv("DO_BETTER_ROOT")
	if root == "" {
		root = "/rootfs"
	}

	settings := os.Getenv("DO_BETTER_CONFIG")
	if settings == "" {
		settings = filepath.Join("/etc", "do-better", "config.json")
	}

	return &Paths{
		TargetRoot: root,
		Settings:   settings,
	}
}

// Settings is the package set policy for a build.
type Settings struct {
	// Baseline is the essential package set installed into every image in
	// addition to the caller-supplied seeds.
	Baseline []string `json:"baseline"`

	// Disallow is the set of package names that must never enter the keep
	// set, regardless of dependency pressure.
	Disallow []string `json:"disallow"`

	// Protected is the set of package names that survive the removal phase
	// even if the closure would have dropped them.
	Protected []string `json:"protected"`

	// MetaPrefixes lists requirement prefixes that identify manager-internal
	// capability tokens. Requirements with these prefixes are never resolved
	// to packages.
	MetaPrefixes []string `json:"metaPrefixes"`

	// LocaleAllowlist lists the locales the finalizer retains.
	LocaleAllowlist []string `json:"localeAllowlist"`

	// AppUser is the non-root application identity registered in the image.
	AppUser string `json:"appUser"`

	// AppUID is the uid (and gid) of the application identity.
	AppUID int `json:"appUid"`
}

// DefaultSettings returns the built-in package set policy.
//
// The protected baseline (C library, shell) is not derived from any rule;
// its correct contents are deployment-specific and the settings file is the
// place to change them.
func DefaultSettings() Settings {
	return Settings{
		Baseline: []string{
			"bash",
			"glibc-minimal-langpack",
			"ncurses-libs",
		},
		Disallow: []string{
			"glibc-all-langpacks",
			"geolite2-city",
			"geolite2-country",
			"sudo",
		},
		Protected: []string{
			"bash",
			"glibc",
		},
		MetaPrefixes:    []string{"rpmlib("},
		LocaleAllowlist: []string{"C", "C.UTF-8"},
		AppUser:         "app",
		AppUID:          1001,
	}
}

// LoadSettings loads settings from path, overlaying the defaults. A missing
// file is not an error: the defaults are returned unchanged.
func LoadSettings(fs fsops.FS, path string) (Settings, error) {
	settings := DefaultSettings()

	exists, err := fs.Exists(path)
	if err != nil {
		return settings, fmt.Errorf("failed to check settings file: %w", err)
	}
	if !exists {
		return settings, nil
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := json.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	return settings, nil
}

// EnsureTargetRoot creates the target root directory if it does not exist.
func (p *Paths) EnsureTargetRoot() error {
	if err := os.MkdirAll(p.TargetRoot, 0755); err != nil {
		return fmt.Errorf("failed to create target root %s: %w", p.TargetRoot, err)
	}
	return nil
}
