package finalize

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Toolchain abstracts the external binaries the finalizer may invoke. Both
// operations are best-effort: a missing tool or a failed run degrades to a
// warning, never a failed build.
type Toolchain interface {
	// Ldconfig regenerates the dynamic-linker cache for root.
	Ldconfig(ctx context.Context, root string) error

	// Strip removes debug symbols from the ELF file at path.
	Strip(ctx context.Context, path string) error
}

// ExecToolchain implements Toolchain by invoking ldconfig and strip.
type ExecToolchain struct{}

// NewExecToolchain creates a new ExecToolchain.
func NewExecToolchain() *ExecToolchain {
	return &ExecToolchain{}
}

// Ldconfig runs ldconfig -r against root.
func (t *ExecToolchain) Ldconfig(ctx context.Context, root string) error {
	return t.runTool(ctx, "ldconfig", "-r", root)
}

// Strip runs strip on path.
func (t *ExecToolchain) Strip(ctx context.Context, path string) error {
	return t.runTool(ctx, "strip", path)
}

func (t *ExecToolchain) runTool(ctx context.Context, name string, args ...string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s not available: %w", name, err)
	}
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// FakeToolchain implements Toolchain by recording calls for testing.
type FakeToolchain struct {
	// LdconfigRoots records the root of each Ldconfig call.
	LdconfigRoots []string

	// StripPaths records the path of each Strip call.
	StripPaths []string

	// LdconfigErr and StripErr are returned from the respective calls.
	LdconfigErr error
	StripErr    error
}

// Ldconfig records the call.
func (t *FakeToolchain) Ldconfig(ctx context.Context, root string) error {
	t.LdconfigRoots = append(t.LdconfigRoots, root)
	return t.LdconfigErr
}

// Strip records the call.
func (t *FakeToolchain) Strip(ctx context.Context, path string) error {
	t.StripPaths = append(t.StripPaths, path)
	return t.StripErr
}
