package engine

import "time"

// BuildRequest represents a request to build a minimal rootfs.
type BuildRequest struct {
	// Packages is the caller-specified seed set, installed in addition to
	// the configured essential baseline.
	Packages []string

	// TargetRoot is the directory tree under construction. The engine is
	// the single writer for the lifetime of one build.
	TargetRoot string

	// ReleaseVer overrides the detected OS release version.
	ReleaseVer string

	// DryRun computes the closure and removal plan but erases and
	// finalizes nothing.
	DryRun bool

	// StripELF enables best-effort debug symbol stripping during
	// finalization.
	StripELF bool
}

// BuildResult contains the result of a build.
type BuildResult struct {
	// Seeds is the installed seed set (baseline plus requested packages).
	Seeds []string

	// Keep is the stabilized keep set.
	Keep []string

	// Removed is the set of package names erased (or, in a dry run, that
	// would be erased).
	Removed []string

	// Protected is the subset of installed names retained only by the
	// protected set.
	Protected []string

	// Unsatisfied lists requirements that had no provider.
	Unsatisfied []string

	// Warnings lists non-fatal issues encountered during the build.
	Warnings []string

	// Release is the OS release the build targeted.
	Release string

	// Iterations is the number of closure fixpoint iterations.
	Iterations int

	// Stripped is the number of ELF files stripped during finalization.
	Stripped int

	// DryRun indicates whether this was a dry run.
	DryRun bool

	// StartedAt is when the build began.
	StartedAt time.Time

	// Duration is the total build time.
	Duration time.Duration
}

// KeptCount returns the number of packages retained.
func (r *BuildResult) KeptCount() int {
	return len(r.Keep)
}

// RemovedCount returns the number of packages removed.
func (r *BuildResult) RemovedCount() int {
	return len(r.Removed)
}
