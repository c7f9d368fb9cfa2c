// Package engine provides the core business logic for do-better builds.
//
// The engine package acts as the orchestration layer between CLI commands
// and the underlying collaborators. It coordinates repository configuration,
// seed installation, closure computation, removal, and finalization against
// a single target root.
//
// Key components:
//   - Engine: Main orchestrator that coordinates all operations
//   - Build: The full install → closure → removal → finalize pipeline
//   - Resolve: The dry-run surface that erases nothing
package engine

import (
	"context"

	"github.com/atgreen/do-better/internal/clock"
	"github.com/atgreen/do-better/internal/config"
	"github.com/atgreen/do-better/internal/finalize"
	"github.com/atgreen/do-better/internal/fsops"
	"github.com/atgreen/do-better/internal/osrelease"
	"github.com/atgreen/do-better/internal/pkgdb"
	"github.com/atgreen/do-better/internal/repoconf"
)

// RootfsFinalizer performs the finalization stage. Implemented by
// finalize.Finalizer and faked in tests.
type RootfsFinalizer interface {
	Finalize(ctx context.Context, req *finalize.Request) (*finalize.Result, error)
}

// Engine orchestrates all do-better operations.
// It is the main API surface called by the CLI.
type Engine struct {
	db        pkgdb.Database
	repos     repoconf.Provider
	release   osrelease.Detector
	finalizer RootfsFinalizer
	fs        fsops.FS
	clock     clock.Clock
	settings  config.Settings
}

// New creates a new Engine with the given dependencies.
func New(
	db pkgdb.Database,
	repos repoconf.Provider,
	release osrelease.Detector,
	finalizer RootfsFinalizer,
	fs fsops.FS,
	clk clock.Clock,
	settings config.Settings,
) *Engine {
	return &Engine{
		db:        db,
		repos:     repos,
		release:   release,
		finalizer: finalizer,
		fs:        fs,
		clock:     clk,
		settings:  settings,
	}
}

// Clean removes the target root tree entirely. A failed build is never
// resumed; it is rerun from a clean root.
func (e *Engine) Clean(targetRoot string) error {
	return e.fs.RemoveAll(targetRoot)
}
