// Package repoconf configures package repository access for a target root.
//
// A fresh installroot has no repository definitions, so the first install
// would fail without help: either the package manager is pointed at the
// host's definitions (passthrough), or the definitions and signing keys are
// copied into the target root before the first install.
package repoconf

import (
	"fmt"
	"path/filepath"

	"github.com/atgreen/do-better/internal/fsops"
)

// Provider configures repository access inside a target root.
type Provider interface {
	// Configure prepares targetRoot for package installation.
	Configure(targetRoot string) error

	// RepoDir returns a host directory the package manager should read
	// repository definitions from, or empty to use the manager's default
	// lookup inside the target root.
	RepoDir() string
}

// HostProvider implements Provider using the host's repository
// configuration.
type HostProvider struct {
	fs fsops.FS

	// Passthrough leaves the target root untouched and points the manager
	// at the host definitions instead of copying.
	Passthrough bool

	// RepoSource is the host repository definition directory
	// (default: /etc/yum.repos.d).
	RepoSource string

	// KeySource is the host signing key directory
	// (default: /etc/pki/rpm-gpg).
	KeySource string
}

// NewHostProvider creates a HostProvider with default source directories.
func NewHostProvider(fs fsops.FS, passthrough bool) *HostProvider {
	return &HostProvider{
		fs:          fs,
		Passthrough: passthrough,
		RepoSource:  "/etc/yum.repos.d",
		KeySource:   "/etc/pki/rpm-gpg",
	}
}

// Configure copies repository definitions and signing keys into targetRoot,
// unless passthrough is enabled.
func (p *HostProvider) Configure(targetRoot string) error {
	if p.Passthrough {
		return nil
	}

	copies := []struct{ src, dst string }{
		{p.RepoSource, filepath.Join(targetRoot, "etc", "yum.repos.d")},
		{p.KeySource, filepath.Join(targetRoot, "etc", "pki", "rpm-gpg")},
	}

	for _, c := range copies {
		exists, err := p.fs.Exists(c.src)
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", c.src, err)
		}
		if !exists {
			continue
		}
		if err := p.fs.Copy(c.src, c.dst); err != nil {
			return fmt.Errorf("failed to copy %s into target root: %w", c.src, err)
		}
	}
	return nil
}

// RepoDir returns the host repository directory when passthrough is
// enabled.
func (p *HostProvider) RepoDir() string {
	if p.Passthrough {
		return p.RepoSource
	}
	return ""
}
