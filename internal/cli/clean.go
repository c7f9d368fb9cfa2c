package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cleanRoot  string
	cleanForce bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the target root tree entirely",
	Long: `Clean removes the target root directory and everything under it. A
failed build is never resumed; it is rerun from a clean root.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, settings, err := buildConfig(cleanRoot, nil, nil)
		if err != nil {
			return err
		}

		if !cleanForce {
			return fmt.Errorf("refusing to remove %s without --force", paths.TargetRoot)
		}

		eng := newEngine(settings, false)
		if err := eng.Clean(paths.TargetRoot); err != nil {
			return fmt.Errorf("failed to clean target root: %w", err)
		}

		PrintSuccess(fmt.Sprintf("removed %s", paths.TargetRoot))
		return nil
	},
}

func init() {
	cleanCmd.Flags().StringVar(&cleanRoot, "root", "", "Target root directory (default: /rootfs or $DO_BETTER_ROOT)")
	cleanCmd.Flags().BoolVar(&cleanForce, "force", false, "Confirm removal of the target root")
}
