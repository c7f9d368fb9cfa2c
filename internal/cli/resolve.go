package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atgreen/do-better/internal/engine"
)

var (
	resolveRoot     string
	resolveRelease  string
	resolveProtect  []string
	resolveDisallow []string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [packages...]",
	Short: "Compute the dependency closure without erasing anything",
	Long: `Resolve installs the requested packages plus the essential baseline into
the target root and computes the transitive runtime dependency closure, then
reports what a build would keep and remove. The target root is left with
everything still installed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, settings, err := buildConfig(resolveRoot, resolveProtect, resolveDisallow)
		if err != nil {
			return err
		}
		if err := paths.EnsureTargetRoot(); err != nil {
			return err
		}

		eng := newEngine(settings, false)
		result, err := eng.Resolve(cmd.Context(), &engine.BuildRequest{
			Packages:   args,
			TargetRoot: paths.TargetRoot,
			ReleaseVer: resolveRelease,
		})
		if err != nil {
			reportStage(err)
			return err
		}

		if jsonOutput {
			return outputJSON(result)
		}
		renderResolveResult(result)
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveRoot, "root", "", "Target root directory (default: /rootfs or $DO_BETTER_ROOT)")
	resolveCmd.Flags().StringVar(&resolveRelease, "release", "", "Override the detected OS release version")
	resolveCmd.Flags().StringSliceVar(&resolveProtect, "protect", nil, "Additional packages to protect from removal")
	resolveCmd.Flags().StringSliceVar(&resolveDisallow, "disallow", nil, "Additional packages to exclude from the keep set")
}

// renderResolveResult prints the keep set and the removal plan.
func renderResolveResult(result *engine.BuildResult) {
	PrintSection(fmt.Sprintf("Keep set (%s, %d iterations)",
		PrintCount(result.KeptCount(), "package", "packages"), result.Iterations))
	if len(result.Keep) == 0 {
		PrintEmptyState("no packages in the keep set")
	} else {
		PrintList(result.Keep, 1)
	}

	PrintSection(fmt.Sprintf("Would remove (%s)",
		PrintCount(result.RemovedCount(), "package", "packages")))
	if len(result.Removed) == 0 {
		PrintEmptyState("nothing to remove")
	} else {
		PrintList(result.Removed, 1)
	}

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
}
