package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/atgreen/do-better/internal/buildinfo"
	"github.com/atgreen/do-better/internal/finalize"
	"github.com/atgreen/do-better/internal/pkgdb"
	"github.com/atgreen/do-better/internal/pkgname"
	"github.com/atgreen/do-better/internal/resolver"
	"github.com/atgreen/do-better/internal/setutil"
)

// Build runs the full pipeline against the target root: install the seeds,
// expand them to their transitive runtime closure, erase everything
// outside the closure, and finalize the tree.
//
// The pipeline is strictly sequential; each stage depends on the prior
// stage's consistent view of the target root. Any failure is fatal to the
// attempt and carries its stage of origin.
func (e *Engine) Build(ctx context.Context, req *BuildRequest) (*BuildResult, error) {
	startedAt := e.clock.Now()

	result, plan, err := e.compute(ctx, req)
	if err != nil {
		return nil, err
	}

	if !req.DryRun {
		if !plan.Empty() {
			err := e.db.Erase(ctx, req.TargetRoot, plan.Erase, pkgdb.EraseOptions{
				IgnoreDependencies: true,
				AllMatches:         true,
			})
			if err != nil {
				return nil, stageErr(StageRemoval, fmt.Errorf("%w: %v", ErrAdapter, err))
			}
		}

		finalizeResult, err := e.finalizer.Finalize(ctx, &finalize.Request{
			Root: req.TargetRoot,
			Manifest: &buildinfo.Manifest{
				Release:      result.Release,
				Seeds:        result.Seeds,
				Kept:         result.Keep,
				RemovedCount: len(result.Removed),
				CreatedAt:    e.clock.Now(),
			},
			StripELF:        req.StripELF,
			LocaleAllowlist: e.settings.LocaleAllowlist,
			AppUser:         e.settings.AppUser,
			AppUID:          e.settings.AppUID,
		})
		if err != nil {
			return nil, stageErr(StageFinalize, err)
		}
		result.Warnings = append(result.Warnings, finalizeResult.Warnings...)
		result.Stripped = finalizeResult.Stripped
	}

	result.DryRun = req.DryRun
	result.StartedAt = startedAt
	result.Duration = e.clock.Now().Sub(startedAt)
	return result, nil
}

// Resolve runs the install and closure stages and plans the removal, but
// erases and finalizes nothing. It is the inspection surface behind the
// resolve command.
func (e *Engine) Resolve(ctx context.Context, req *BuildRequest) (*BuildResult, error) {
	startedAt := e.clock.Now()

	result, _, err := e.compute(ctx, req)
	if err != nil {
		return nil, err
	}

	result.DryRun = true
	result.StartedAt = startedAt
	result.Duration = e.clock.Now().Sub(startedAt)
	return result, nil
}

// compute runs the shared install → closure → plan prefix of the pipeline.
func (e *Engine) compute(ctx context.Context, req *BuildRequest) (*BuildResult, *resolver.RemovalPlan, error) {
	seeds, err := e.seedSet(req.Packages)
	if err != nil {
		return nil, nil, stageErr(StageInstall, err)
	}

	result := &BuildResult{Seeds: seeds}

	result.Release = req.ReleaseVer
	if result.Release == "" {
		info, err := e.release.Detect()
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("OS release not detected, relying on repository defaults: %v", err))
		} else {
			result.Release = info.VersionID
		}
	}

	if err := e.repos.Configure(req.TargetRoot); err != nil {
		return nil, nil, stageErr(StageInstall, fmt.Errorf("%w: repository configuration: %v", ErrInstall, err))
	}

	installOpts := pkgdb.InstallOptions{
		NoWeakDeps: true,
		NoDocs:     true,
		ReleaseVer: result.Release,
		RepoDir:    e.repos.RepoDir(),
	}
	if err := e.db.Install(ctx, req.TargetRoot, seeds, installOpts); err != nil {
		return nil, nil, stageErr(StageInstall, fmt.Errorf("%w: %v", ErrInstall, err))
	}

	closure, err := resolver.Closure(ctx, e.db, req.TargetRoot, seeds, e.settings.Disallow, resolver.Options{
		MetaPrefixes: e.settings.MetaPrefixes,
	})
	if err != nil {
		return nil, nil, stageErr(StageClosure, e.classify(err))
	}
	result.Keep = closure.Keep
	result.Iterations = closure.Iterations
	result.Unsatisfied = closure.Unsatisfied
	for _, requirement := range closure.Unsatisfied {
		result.Warnings = append(result.Warnings, fmt.Sprintf("no provider for %q", requirement))
	}

	installed, err := e.db.QueryInstalled(ctx, req.TargetRoot)
	if err != nil {
		return nil, nil, stageErr(StageRemoval, fmt.Errorf("%w: %v", ErrAdapter, err))
	}

	plan, err := resolver.PlanRemoval(installed, closure.Keep, e.settings.Protected)
	if err != nil {
		return nil, nil, stageErr(StageRemoval, err)
	}
	result.Removed = plan.Erase
	result.Protected = plan.Protected

	return result, plan, nil
}

// seedSet validates the requested packages and merges them with the
// essential baseline. A disallowed seed is a policy contradiction and is
// rejected before anything touches the target root.
func (e *Engine) seedSet(packages []string) ([]string, error) {
	for _, name := range packages {
		if err := pkgname.Validate(name); err != nil {
			return nil, err
		}
	}

	seeds := setutil.Union(e.settings.Baseline, packages)
	if hit := setutil.Intersect(seeds, e.settings.Disallow); len(hit) > 0 {
		return nil, fmt.Errorf("%w: seed packages are disallowed: %v", resolver.ErrInvariant, hit)
	}
	return seeds, nil
}

// classify wraps a closure failure with the adapter sentinel unless it is
// already an invariant violation.
func (e *Engine) classify(err error) error {
	if errors.Is(err, resolver.ErrInvariant) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrAdapter, err)
}
