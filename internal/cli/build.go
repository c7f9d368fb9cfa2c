package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/atgreen/do-better/internal/engine"
)

var (
	buildRoot        string
	buildRelease     string
	buildDryRun      bool
	buildStrip       bool
	buildProtect     []string
	buildDisallow    []string
	buildPassthrough bool
)

var buildCmd = &cobra.Command{
	Use:   "build [packages...]",
	Short: "Build a minimal rootfs for the given packages",
	Long: `Build installs the requested packages plus the essential baseline into
the target root, computes the transitive runtime dependency closure, erases
every installed package outside the closure, and finalizes the tree.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, settings, err := buildConfig(buildRoot, buildProtect, buildDisallow)
		if err != nil {
			return err
		}
		if err := paths.EnsureTargetRoot(); err != nil {
			return err
		}

		eng := newEngine(settings, buildPassthrough)
		result, err := eng.Build(cmd.Context(), &engine.BuildRequest{
			Packages:   args,
			TargetRoot: paths.TargetRoot,
			ReleaseVer: buildRelease,
			DryRun:     buildDryRun,
			StripELF:   buildStrip,
		})
		if err != nil {
			reportStage(err)
			return err
		}

		if jsonOutput {
			return outputJSON(result)
		}
		renderBuildResult(result, paths.TargetRoot)
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildRoot, "root", "", "Target root directory (default: /rootfs or $DO_BETTER_ROOT)")
	buildCmd.Flags().StringVar(&buildRelease, "release", "", "Override the detected OS release version")
	buildCmd.Flags().BoolVar(&buildDryRun, "dry-run", false, "Compute the closure and removal plan without erasing anything")
	buildCmd.Flags().BoolVar(&buildStrip, "strip", false, "Strip debug symbols from ELF binaries during finalization")
	buildCmd.Flags().StringSliceVar(&buildProtect, "protect", nil, "Additional packages to protect from removal")
	buildCmd.Flags().StringSliceVar(&buildDisallow, "disallow", nil, "Additional packages to exclude from the keep set")
	buildCmd.Flags().BoolVar(&buildPassthrough, "repo-passthrough", false, "Use host repository definitions without copying them into the root")
}

// renderBuildResult prints a build result in the human-readable format.
func renderBuildResult(result *engine.BuildResult, targetRoot string) {
	title := "Build complete"
	if result.DryRun {
		title = "Dry run complete"
	}
	PrintSection(title)

	PrintLabelValue("Target root", targetRoot)
	if result.Release != "" {
		PrintLabelValue("Release", result.Release)
	}
	PrintLabelValue("Seeds", PrintCount(len(result.Seeds), "package", "packages"))
	PrintLabelValue("Kept", PrintCount(result.KeptCount(), "package", "packages"))
	PrintLabelValue("Removed", PrintCount(result.RemovedCount(), "package", "packages"))
	PrintLabelValue("Iterations", fmt.Sprintf("%d", result.Iterations))
	if result.Stripped > 0 {
		PrintLabelValue("Stripped", PrintCount(result.Stripped, "binary", "binaries"))
	}
	PrintLabelValue("Duration", result.Duration.Round(time.Millisecond).String())

	if len(result.Protected) > 0 {
		PrintSection("Protected packages")
		PrintList(result.Protected, 1)
	}

	if len(result.Warnings) > 0 {
		PrintSection("Warnings")
		for _, warning := range result.Warnings {
			PrintWarning(warning)
		}
	}

	fmt.Println()
	if result.DryRun {
		PrintSuccess(fmt.Sprintf("would remove %s", PrintCount(result.RemovedCount(), "package", "packages")))
	} else {
		PrintSuccess(fmt.Sprintf("rootfs ready with %s", PrintCount(result.KeptCount(), "package", "packages")))
	}
}
