package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/atgreen/do-better/internal/clock"
	"github.com/atgreen/do-better/internal/config"
	"github.com/atgreen/do-better/internal/finalize"
	"github.com/atgreen/do-better/internal/fsops"
	"github.com/atgreen/do-better/internal/osrelease"
	"github.com/atgreen/do-better/internal/pkgdb"
	"github.com/atgreen/do-better/internal/resolver"
	"github.com/atgreen/do-better/internal/setutil"
)

// fakeFinalizer records finalize calls.
type fakeFinalizer struct {
	calls []*finalize.Request
	err   error
}

func (f *fakeFinalizer) Finalize(ctx context.Context, req *finalize.Request) (*finalize.Result, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &finalize.Result{}, nil
}

// fakeRepoProvider records Configure calls.
type fakeRepoProvider struct {
	configured []string
	repoDir    string
	err        error
}

func (p *fakeRepoProvider) Configure(targetRoot string) error {
	p.configured = append(p.configured, targetRoot)
	return p.err
}

func (p *fakeRepoProvider) RepoDir() string {
	return p.repoDir
}

func testSettings() config.Settings {
	return config.Settings{
		Baseline:        []string{"bash"},
		Disallow:        []string{"gamma"},
		Protected:       []string{"glibc"},
		MetaPrefixes:    []string{"rpmlib("},
		LocaleAllowlist: []string{"C", "C.UTF-8"},
		AppUser:         "app",
		AppUID:          1001,
	}
}

// newBuildUniverse creates a database where installing the seeds pulls in
// more than the closure keeps: docs-pkg and gamma arrive as manager-resolved
// dependencies but nothing in the keep set requires them.
func newBuildUniverse() *pkgdb.FakeDatabase {
	db := pkgdb.NewFakeDatabase()
	db.AddPackage("bash", "bash-5.2.26-1.fc40", "glibc")
	db.AddPackage("alpha", "alpha-1.0-1", "beta")
	db.AddPackage("beta", "beta-2.0-1")
	db.AddPackage("glibc", "glibc-2.39-5.fc40")
	db.AddPackage("docs-pkg", "docs-pkg-1.0-1")
	db.AddPackage("gamma", "gamma-3.0-1")
	db.Resolves["alpha"] = []string{"beta", "docs-pkg", "gamma"}
	db.Resolves["bash"] = []string{"glibc"}
	return db
}

func newTestEngine(db pkgdb.Database, fin RootfsFinalizer, settings config.Settings) (*Engine, *fakeRepoProvider) {
	repos := &fakeRepoProvider{}
	eng := New(
		db,
		repos,
		&osrelease.FakeDetector{Info: osrelease.Info{ID: "fedora", VersionID: "40"}},
		fin,
		fsops.NewRealFS(),
		clock.NewFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)),
		settings,
	)
	return eng, repos
}

func TestBuild_FullPipeline(t *testing.T) {
	db := newBuildUniverse()
	fin := &fakeFinalizer{}
	eng, repos := newTestEngine(db, fin, testSettings())

	result, err := eng.Build(context.Background(), &BuildRequest{
		Packages:   []string{"alpha"},
		TargetRoot: "/rootfs",
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	wantKeep := []string{"alpha", "bash", "beta", "glibc"}
	if !reflect.DeepEqual(result.Keep, wantKeep) {
		t.Errorf("Keep = %v, want %v", result.Keep, wantKeep)
	}
	wantRemoved := []string{"docs-pkg", "gamma"}
	if !reflect.DeepEqual(result.Removed, wantRemoved) {
		t.Errorf("Removed = %v, want %v", result.Removed, wantRemoved)
	}
	if result.KeptCount() != 4 || result.RemovedCount() != 2 {
		t.Errorf("counts = %d kept / %d removed", result.KeptCount(), result.RemovedCount())
	}

	// Repository configuration happened against the target root.
	if len(repos.configured) != 1 || repos.configured[0] != "/rootfs" {
		t.Errorf("repo configuration calls = %v", repos.configured)
	}

	// The erase call used the forced options and only the removal set.
	if len(db.EraseCalls) != 1 {
		t.Fatalf("expected 1 erase call, got %d", len(db.EraseCalls))
	}
	if !reflect.DeepEqual(db.EraseCalls[0], wantRemoved) {
		t.Errorf("erase names = %v, want %v", db.EraseCalls[0], wantRemoved)
	}
	if !db.LastEraseOpts.IgnoreDependencies || !db.LastEraseOpts.AllMatches {
		t.Errorf("erase opts = %+v, want dependency checks off and all matches", db.LastEraseOpts)
	}

	// Weak deps and docs were suppressed, release was detected.
	if !db.LastInstallOpts.NoWeakDeps || !db.LastInstallOpts.NoDocs {
		t.Errorf("install opts = %+v", db.LastInstallOpts)
	}
	if db.LastInstallOpts.ReleaseVer != "40" {
		t.Errorf("ReleaseVer = %q, want 40", db.LastInstallOpts.ReleaseVer)
	}

	// Finalization received the manifest of the completed build.
	if len(fin.calls) != 1 {
		t.Fatalf("expected 1 finalize call, got %d", len(fin.calls))
	}
	manifest := fin.calls[0].Manifest
	if manifest == nil || !reflect.DeepEqual(manifest.Kept, wantKeep) {
		t.Errorf("manifest = %+v", manifest)
	}
	if manifest.RemovedCount != 2 {
		t.Errorf("manifest.RemovedCount = %d, want 2", manifest.RemovedCount)
	}
}

func TestBuild_ProtectedSurvivesRemoval(t *testing.T) {
	db := newBuildUniverse()
	// glibc is installed as a manager dependency of bash, but nothing in
	// this universe declares a requirement on it. Only the protected set
	// keeps it.
	db.Requires["bash"] = nil
	fin := &fakeFinalizer{}
	eng, _ := newTestEngine(db, fin, testSettings())

	result, err := eng.Build(context.Background(), &BuildRequest{TargetRoot: "/rootfs"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if setutil.Contains(result.Removed, "glibc") {
		t.Errorf("protected package scheduled for removal: %v", result.Removed)
	}
	if !setutil.Contains(result.Protected, "glibc") {
		t.Errorf("Protected = %v, want glibc", result.Protected)
	}
	for _, call := range db.EraseCalls {
		if setutil.Contains(call, "glibc") {
			t.Errorf("erase was asked to remove a protected package: %v", call)
		}
	}
}

func TestBuild_EmptyRemovalSkipsErase(t *testing.T) {
	db := pkgdb.NewFakeDatabase()
	db.AddPackage("bash", "bash-5.2.26-1.fc40")
	fin := &fakeFinalizer{}

	settings := testSettings()
	settings.Protected = nil
	eng, _ := newTestEngine(db, fin, settings)

	result, err := eng.Build(context.Background(), &BuildRequest{TargetRoot: "/rootfs"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if result.RemovedCount() != 0 {
		t.Errorf("Removed = %v, want empty", result.Removed)
	}
	if len(db.EraseCalls) != 0 {
		t.Errorf("erase must be skipped for an empty removal set, got %v", db.EraseCalls)
	}
}

func TestBuild_DryRunErasesAndFinalizesNothing(t *testing.T) {
	db := newBuildUniverse()
	fin := &fakeFinalizer{}
	eng, _ := newTestEngine(db, fin, testSettings())

	result, err := eng.Build(context.Background(), &BuildRequest{
		Packages:   []string{"alpha"},
		TargetRoot: "/rootfs",
		DryRun:     true,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if !result.DryRun {
		t.Error("result should be marked as dry run")
	}
	if result.RemovedCount() == 0 {
		t.Error("dry run should still report what would be removed")
	}
	if len(db.EraseCalls) != 0 {
		t.Errorf("dry run must not erase, got %v", db.EraseCalls)
	}
	if len(fin.calls) != 0 {
		t.Error("dry run must not finalize")
	}
}

func TestBuild_DisallowedSeedRejected(t *testing.T) {
	db := newBuildUniverse()
	eng, _ := newTestEngine(db, &fakeFinalizer{}, testSettings())

	_, err := eng.Build(context.Background(), &BuildRequest{
		Packages:   []string{"gamma"},
		TargetRoot: "/rootfs",
	})
	if !errors.Is(err, resolver.ErrInvariant) {
		t.Errorf("expected ErrInvariant, got %v", err)
	}
	if len(db.InstallCalls) != 0 {
		t.Error("nothing may touch the target root after a rejected seed set")
	}
}

func TestBuild_InvalidSeedNameRejected(t *testing.T) {
	db := newBuildUniverse()
	eng, _ := newTestEngine(db, &fakeFinalizer{}, testSettings())

	_, err := eng.Build(context.Background(), &BuildRequest{
		Packages:   []string{"bad name"},
		TargetRoot: "/rootfs",
	})
	if err == nil {
		t.Fatal("expected error for invalid package name")
	}
	var stageError *StageError
	if !errors.As(err, &stageError) || stageError.Stage != StageInstall {
		t.Errorf("expected install stage attribution, got %v", err)
	}
}

func TestBuild_StageAttribution(t *testing.T) {
	tests := []struct {
		name      string
		prepare   func(db *pkgdb.FakeDatabase, fin *fakeFinalizer)
		wantStage Stage
		wantIs    error
	}{
		{
			name:      "install failure",
			prepare:   func(db *pkgdb.FakeDatabase, fin *fakeFinalizer) { db.InstallErr = errors.New("no repos") },
			wantStage: StageInstall,
			wantIs:    ErrInstall,
		},
		{
			name:      "closure failure",
			prepare:   func(db *pkgdb.FakeDatabase, fin *fakeFinalizer) { db.RequiresErr = errors.New("db locked") },
			wantStage: StageClosure,
			wantIs:    ErrAdapter,
		},
		{
			name:      "installed query failure",
			prepare:   func(db *pkgdb.FakeDatabase, fin *fakeFinalizer) { db.InstalledErr = errors.New("db locked") },
			wantStage: StageRemoval,
			wantIs:    ErrAdapter,
		},
		{
			name:      "erase failure",
			prepare:   func(db *pkgdb.FakeDatabase, fin *fakeFinalizer) { db.EraseErr = errors.New("db locked") },
			wantStage: StageRemoval,
			wantIs:    ErrAdapter,
		},
		{
			name:      "finalize failure",
			prepare:   func(db *pkgdb.FakeDatabase, fin *fakeFinalizer) { fin.err = errors.New("disk full") },
			wantStage: StageFinalize,
			wantIs:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newBuildUniverse()
			fin := &fakeFinalizer{}
			tt.prepare(db, fin)
			eng, _ := newTestEngine(db, fin, testSettings())

			_, err := eng.Build(context.Background(), &BuildRequest{
				Packages:   []string{"alpha"},
				TargetRoot: "/rootfs",
			})
			if err == nil {
				t.Fatal("expected error")
			}

			var stageError *StageError
			if !errors.As(err, &stageError) {
				t.Fatalf("expected StageError, got %T: %v", err, err)
			}
			if stageError.Stage != tt.wantStage {
				t.Errorf("stage = %s, want %s", stageError.Stage, tt.wantStage)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.wantIs)
			}
		})
	}
}

func TestBuild_RepoConfigurationFailure(t *testing.T) {
	db := newBuildUniverse()
	eng, repos := newTestEngine(db, &fakeFinalizer{}, testSettings())
	repos.err = errors.New("no host repos")

	_, err := eng.Build(context.Background(), &BuildRequest{TargetRoot: "/rootfs"})
	if !errors.Is(err, ErrInstall) {
		t.Errorf("expected ErrInstall, got %v", err)
	}
}

func TestBuild_ExplicitReleaseOverridesDetection(t *testing.T) {
	db := newBuildUniverse()
	eng, _ := newTestEngine(db, &fakeFinalizer{}, testSettings())

	result, err := eng.Build(context.Background(), &BuildRequest{
		TargetRoot: "/rootfs",
		ReleaseVer: "41",
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if result.Release != "41" {
		t.Errorf("Release = %q, want 41", result.Release)
	}
	if db.LastInstallOpts.ReleaseVer != "41" {
		t.Errorf("install ReleaseVer = %q, want 41", db.LastInstallOpts.ReleaseVer)
	}
}

func TestBuild_DetectionFailureIsWarning(t *testing.T) {
	db := newBuildUniverse()
	repos := &fakeRepoProvider{}
	eng := New(
		db,
		repos,
		&osrelease.FakeDetector{Err: errors.New("no os-release")},
		&fakeFinalizer{},
		fsops.NewRealFS(),
		clock.NewFakeClock(time.Unix(0, 0)),
		testSettings(),
	)

	result, err := eng.Build(context.Background(), &BuildRequest{TargetRoot: "/rootfs"})
	if err != nil {
		t.Fatalf("detection failure must not fail the build: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a warning for failed release detection")
	}
}

func TestBuild_Deterministic(t *testing.T) {
	run := func() []string {
		db := newBuildUniverse()
		eng, _ := newTestEngine(db, &fakeFinalizer{}, testSettings())
		result, err := eng.Build(context.Background(), &BuildRequest{
			Packages:   []string{"alpha"},
			TargetRoot: "/rootfs",
		})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		return result.Keep
	}

	if first, second := run(), run(); !reflect.DeepEqual(first, second) {
		t.Errorf("identical seed input produced different keep sets: %v vs %v", first, second)
	}
}

func TestResolve_ErasesNothing(t *testing.T) {
	db := newBuildUniverse()
	fin := &fakeFinalizer{}
	eng, _ := newTestEngine(db, fin, testSettings())

	result, err := eng.Resolve(context.Background(), &BuildRequest{
		Packages:   []string{"alpha"},
		TargetRoot: "/rootfs",
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if !result.DryRun {
		t.Error("resolve results are always dry runs")
	}
	if len(db.EraseCalls) != 0 || len(fin.calls) != 0 {
		t.Error("resolve must not erase or finalize")
	}
	if result.KeptCount() == 0 || result.RemovedCount() == 0 {
		t.Errorf("resolve should report the plan: %d kept, %d removed", result.KeptCount(), result.RemovedCount())
	}
}

func TestClean_RemovesTargetRoot(t *testing.T) {
	eng, _ := newTestEngine(pkgdb.NewFakeDatabase(), &fakeFinalizer{}, testSettings())

	root := t.TempDir() + "/rootfs"
	if err := fsops.NewRealFS().MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}

	if err := eng.Clean(root); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	exists, _ := fsops.NewRealFS().Exists(root)
	if exists {
		t.Error("target root still exists after Clean")
	}
}
