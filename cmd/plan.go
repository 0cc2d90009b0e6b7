package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vkdforge.dev/pkg/vkdforge/internal/controller"
)

var planParallelFlag int

const planLongDescription = `Report which mutations would apply to the resolved source, changing nothing.

Each mutation is checked independently: patches with a dry-run apply,
substitutions and injections by scanning for their targets. The tree is
fetched but never modified.`

// planCmd represents the plan command.
var planCmd = newPlanCmd()

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "plan",
		Short:  "Dry-run mutation applicability",
		Long:   planLongDescription,
		PreRun: bindBuildFlags,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mutations, err := loadMutations()
			if err != nil {
				return err
			}

			resolved, err := getResolver().Resolve(cmd.Context(), parseVersionSpec())
			if err != nil {
				return err
			}

			threads := viper.GetInt(planParallelKey)

			entries, err := getPlanner().Plan(cmd.Context(), resolved.Tree, mutations, threads)
			if err != nil {
				return err
			}

			ui := controller.NewUI(cmd, controller.IsTTY(os.Stdout))

			return ui.DisplayPlan(cmd.Context(), entries)
		},
	}

	configureVersionFlags(cmd)
	configureBuildFlags(cmd)
	configurePlanFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func configurePlanFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&planParallelFlag, parallelFlagName, "p", viper.GetInt(planParallelKey), "number of parallel workers for the applicability scan")
	bindFlagToConfig(cmd.Flags().Lookup(parallelFlagName), planParallelKey)
}
