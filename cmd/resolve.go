package cmd

import (
	"github.com/spf13/cobra"
)

const resolveLongDescription = `Resolve a version request to concrete source facts without building.

Prints the ref, commit, version string and which mirror served the fetch.
The working tree is left in the configured workdir for inspection.`

// resolveCmd represents the resolve command.
var resolveCmd = newResolveCmd()

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Pin a source version without building",
		Long:  resolveLongDescription,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolved, err := getResolver().Resolve(cmd.Context(), parseVersionSpec())
			if err != nil {
				return err
			}

			cmd.Printf("ref\t%s\n", resolved.Ref)
			cmd.Printf("commit\t%s\n", resolved.Commit)
			cmd.Printf("version\t%s\n", resolved.Version)
			cmd.Printf("mirror\t%s\n", resolved.Mirror)
			cmd.Printf("tree\t%s\n", resolved.Tree)

			return nil
		},
	}

	configureVersionFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
