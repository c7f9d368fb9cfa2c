package pkgdb

import (
	"context"
	"fmt"

	"github.com/atgreen/do-better/internal/pkgname"
)

// FakeDatabase implements Database with deterministic in-memory state for
// testing the closure and removal engines.
//
// The fake describes a bounded package universe: Universe maps bare names
// to fully qualified identifiers, Requires declares per-package requirement
// strings, and Providers maps requirement strings to provider identifiers.
// Install resolves through Resolves the way a real manager would pull in
// its own dependency set.
type FakeDatabase struct {
	// Universe maps bare package names to fully qualified identifiers.
	Universe map[string]string

	// Requires maps bare package names to their declared requirements.
	Requires map[string][]string

	// Providers maps a requirement string to provider identifiers.
	Providers map[string][]string

	// Resolves maps a bare name to additional bare names the manager
	// installs alongside it.
	Resolves map[string][]string

	// InstalledIDs is the current installed set (fully qualified).
	InstalledIDs []string

	// InstallCalls and EraseCalls record the arguments of each call.
	InstallCalls [][]string
	EraseCalls   [][]string

	// LastInstallOpts and LastEraseOpts record the options of the most
	// recent Install and Erase calls.
	LastInstallOpts InstallOptions
	LastEraseOpts   EraseOptions

	// Error injection, one per capability.
	InstallErr   error
	RequiresErr  error
	ProvidesErr  error
	InstalledErr error
	EraseErr     error
}

// NewFakeDatabase creates an empty FakeDatabase.
func NewFakeDatabase() *FakeDatabase {
	return &FakeDatabase{
		Universe:  make(map[string]string),
		Requires:  make(map[string][]string),
		Providers: make(map[string][]string),
		Resolves:  make(map[string][]string),
	}
}

// AddPackage registers a package in the universe: its identifier, its
// declared requirements, and a provider entry for its own name.
func (f *FakeDatabase) AddPackage(name, id string, requires ...string) {
	f.Universe[name] = id
	f.Requires[name] = requires
	f.Providers[name] = append(f.Providers[name], id)
}

// Install appends the named packages and their resolved dependencies to the
// installed set.
func (f *FakeDatabase) Install(ctx context.Context, root string, names []string, opts InstallOptions) error {
	f.InstallCalls = append(f.InstallCalls, names)
	f.LastInstallOpts = opts
	if f.InstallErr != nil {
		return f.InstallErr
	}

	for _, name := range names {
		if err := f.installOne(name); err != nil {
			return err
		}
		for _, dep := range f.Resolves[name] {
			if err := f.installOne(dep); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *FakeDatabase) installOne(name string) error {
	id, ok := f.Universe[name]
	if !ok {
		return fmt.Errorf("nothing provides %q", name)
	}
	for _, installed := range f.InstalledIDs {
		if installed == id {
			return nil
		}
	}
	f.InstalledIDs = append(f.InstalledIDs, id)
	return nil
}

// QueryRequires returns the union of declared requirements of names.
func (f *FakeDatabase) QueryRequires(ctx context.Context, root string, names []string) ([]string, error) {
	if f.RequiresErr != nil {
		return nil, f.RequiresErr
	}

	var reqs []string
	for _, name := range names {
		reqs = append(reqs, f.Requires[name]...)
	}
	return reqs, nil
}

// QueryWhatProvides returns the registered providers of requirement.
func (f *FakeDatabase) QueryWhatProvides(ctx context.Context, root string, requirement string) ([]string, error) {
	if f.ProvidesErr != nil {
		return nil, f.ProvidesErr
	}
	return f.Providers[requirement], nil
}

// QueryInstalled returns the current installed set.
func (f *FakeDatabase) QueryInstalled(ctx context.Context, root string) ([]string, error) {
	if f.InstalledErr != nil {
		return nil, f.InstalledErr
	}
	out := make([]string, len(f.InstalledIDs))
	copy(out, f.InstalledIDs)
	return out, nil
}

// Erase removes every installed variant of each named package.
func (f *FakeDatabase) Erase(ctx context.Context, root string, names []string, opts EraseOptions) error {
	f.EraseCalls = append(f.EraseCalls, names)
	f.LastEraseOpts = opts
	if f.EraseErr != nil {
		return f.EraseErr
	}

	remove := make(map[string]bool, len(names))
	for _, name := range names {
		remove[name] = true
	}

	var remaining []string
	for _, id := range f.InstalledIDs {
		if !remove[pkgname.Name(id)] {
			remaining = append(remaining, id)
		}
	}
	f.InstalledIDs = remaining
	return nil
}
