// Package pkgdb provides the package database adapter used to populate and
// shrink a target root.
//
// The closure and removal engines only need five capabilities from whatever
// package manager backs the build: install, query declared requirements,
// query providers of a requirement, query installed units, and force-erase.
// The Database interface captures exactly that, so the engines are testable
// against the in-memory FakeDatabase independent of any real package
// ecosystem.
//
// Key components:
//   - Database: the capability interface consumed by the engines
//   - DNFDatabase: DNF/RPM-backed implementation against an installroot
//   - FakeDatabase: deterministic in-memory implementation for tests
package pkgdb

import "context"

// InstallOptions controls an Install call.
type InstallOptions struct {
	// NoWeakDeps suppresses weak/optional dependencies.
	NoWeakDeps bool

	// NoDocs suppresses documentation artifacts.
	NoDocs bool

	// ReleaseVer is the distribution release identifier. Required when the
	// target root has no release information of its own.
	ReleaseVer string

	// RepoDir points the manager at repository definitions outside the
	// target root. Empty means the manager's default lookup.
	RepoDir string
}

// EraseOptions controls an Erase call.
type EraseOptions struct {
	// IgnoreDependencies disables the manager's own dependency safety
	// check. The removal phase has already validated, via the closure, that
	// nothing remaining depends on what is removed.
	IgnoreDependencies bool

	// AllMatches removes every installed variant of a name, not just one.
	AllMatches bool
}

// Database is the capability interface for a package manager operating
// against a target root directory.
type Database interface {
	// Install installs names and their manager-resolved dependencies into
	// root. Fails if any requested name is unresolvable or repository
	// configuration is absent.
	Install(ctx context.Context, root string, names []string, opts InstallOptions) error

	// QueryRequires returns the full declared requirement list of the named
	// installed packages. Requirement strings are raw: they may include
	// version constraints, file paths, and manager-internal capability
	// tokens that callers must filter before resolution.
	QueryRequires(ctx context.Context, root string, names []string) ([]string, error)

	// QueryWhatProvides returns the fully qualified identifiers of packages
	// satisfying a single requirement. "No provider found" is an empty
	// result, not an error.
	QueryWhatProvides(ctx context.Context, root string, requirement string) ([]string, error)

	// QueryInstalled returns all currently installed fully qualified
	// package identifiers.
	QueryInstalled(ctx context.Context, root string) ([]string, error)

	// Erase removes the named packages from root.
	Erase(ctx context.Context, root string, names []string, opts EraseOptions) error
}
