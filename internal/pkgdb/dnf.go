package pkgdb

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// queryFormat keeps installed and provider identifiers in the
// name-version-release form the normalizer expects. The arch suffix is
// deliberately omitted.
const queryFormat = "%{NAME}-%{VERSION}-%{RELEASE}\n"

// DNFDatabase implements Database using the dnf and rpm command line tools
// against an installroot.
type DNFDatabase struct {
	// run executes a command and returns its combined output. Tests replace
	// it; the default shells out.
	run func(ctx context.Context, name string, args ...string) (string, error)
}

// NewDNFDatabase creates a new DNFDatabase.
func NewDNFDatabase() *DNFDatabase {
	return &DNFDatabase{run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Install installs names and their manager-resolved dependencies into root.
func (d *DNFDatabase) Install(ctx context.Context, root string, names []string, opts InstallOptions) error {
	if len(names) == 0 {
		return nil
	}

	args := []string{"install", "-y", "--installroot", root}
	if opts.NoWeakDeps {
		args = append(args, "--setopt=install_weak_deps=False")
	}
	if opts.NoDocs {
		args = append(args, "--setopt=tsflags=nodocs")
	}
	if opts.ReleaseVer != "" {
		args = append(args, "--releasever", opts.ReleaseVer)
	}
	if opts.RepoDir != "" {
		args = append(args, "--setopt=reposdir="+opts.RepoDir)
	}
	args = append(args, names...)

	if _, err := d.run(ctx, "dnf", args...); err != nil {
		return fmt.Errorf("failed to install packages: %w", err)
	}
	return nil
}

// QueryRequires returns the declared requirements of the named installed
// packages, one raw requirement string per line of rpm output.
func (d *DNFDatabase) QueryRequires(ctx context.Context, root string, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}

	args := append([]string{"--root", root, "-qR"}, names...)
	out, err := d.run(ctx, "rpm", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requirements: %w", err)
	}
	return splitLines(out), nil
}

// QueryWhatProvides returns the identifiers of installed or available
// packages satisfying requirement. An unsatisfied requirement yields an
// empty result: some requirements are met outside package granularity.
func (d *DNFDatabase) QueryWhatProvides(ctx context.Context, root string, requirement string) ([]string, error) {
	args := []string{"--root", root, "-q", "--whatprovides", requirement, "--qf", queryFormat}
	out, err := d.run(ctx, "rpm", args...)
	if err != nil {
		if strings.Contains(out, "no package provides") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query providers of %q: %w", requirement, err)
	}
	return splitLines(out), nil
}

// QueryInstalled returns all installed fully qualified identifiers.
func (d *DNFDatabase) QueryInstalled(ctx context.Context, root string) ([]string, error) {
	out, err := d.run(ctx, "rpm", "--root", root, "-qa", "--qf", queryFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to query installed packages: %w", err)
	}
	return splitLines(out), nil
}

// Erase removes the named packages from root.
func (d *DNFDatabase) Erase(ctx context.Context, root string, names []string, opts EraseOptions) error {
	if len(names) == 0 {
		return nil
	}

	args := []string{"--root", root, "-e"}
	if opts.IgnoreDependencies {
		args = append(args, "--nodeps")
	}
	if opts.AllMatches {
		args = append(args, "--allmatches")
	}
	args = append(args, names...)

	if _, err := d.run(ctx, "rpm", args...); err != nil {
		return fmt.Errorf("failed to erase packages: %w", err)
	}
	return nil
}

func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
