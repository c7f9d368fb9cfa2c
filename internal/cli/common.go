package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/atgreen/do-better/internal/buildinfo"
	"github.com/atgreen/do-better/internal/clock"
	"github.com/atgreen/do-better/internal/config"
	"github.com/atgreen/do-better/internal/engine"
	"github.com/atgreen/do-better/internal/finalize"
	"github.com/atgreen/do-better/internal/fsops"
	"github.com/atgreen/do-better/internal/hash"
	"github.com/atgreen/do-better/internal/osrelease"
	"github.com/atgreen/do-better/internal/pkgdb"
	"github.com/atgreen/do-better/internal/repoconf"
	"github.com/atgreen/do-better/internal/setutil"
)

// buildConfig resolves paths and settings for a build-style command,
// applying flag overrides on top of the settings file.
func buildConfig(rootOverride string, protect, disallow []string) (*config.Paths, config.Settings, error) {
	paths := config.DefaultPaths()
	if rootOverride != "" {
		paths.TargetRoot = rootOverride
	}

	settings, err := config.LoadSettings(fsops.NewRealFS(), paths.Settings)
	if err != nil {
		return nil, settings, fmt.Errorf("failed to load settings: %w", err)
	}

	settings.Protected = setutil.Union(settings.Protected, protect)
	settings.Disallow = setutil.Union(settings.Disallow, disallow)
	return paths, settings, nil
}

// newEngine creates a new engine with real implementations of all
// dependencies.
func newEngine(settings config.Settings, repoPassthrough bool) *engine.Engine {
	fs := fsops.NewRealFS()
	finalizer := finalize.New(fs, finalize.NewExecToolchain(), buildinfo.NewWriter(fs, hash.NewSHA256Hasher()))

	return engine.New(
		pkgdb.NewDNFDatabase(),
		repoconf.NewHostProvider(fs, repoPassthrough),
		osrelease.NewFileDetector(fs, ""),
		finalizer,
		fs,
		&clock.RealClock{},
		settings,
	)
}

// outputJSON outputs a value as JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportStage prints the pipeline stage an error originated from, if the
// error carries one.
func reportStage(err error) {
	var stageError *engine.StageError
	if errors.As(err, &stageError) {
		PrintError(fmt.Sprintf("build failed during %s stage", stageError.Stage))
	}
}
