// Package cmd provides the root command and CLI setup for vkdforge.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"vkdforge.dev/pkg/vkdforge/internal/adapter"
	"vkdforge.dev/pkg/vkdforge/internal/controller"
	"vkdforge.dev/pkg/vkdforge/internal/domain"
	m "vkdforge.dev/pkg/vkdforge/internal/model"
	"vkdforge.dev/pkg/vkdforge/pkg/retry"
)

var gitAdapter adapter.GitAdapter
var fsAdapter adapter.SourceFSAdapter
var buildRunner adapter.BuildRunner
var archiveWriter adapter.ArchiveWriter
var sigVerifier adapter.SignatureVerifier

// pipeline, sourceResolver and mutationPlanner are constructed per invocation
// so they pick up the parsed configuration; tests preset them with mocks.
var pipeline domain.Pipeline
var sourceResolver domain.Resolver
var mutationPlanner domain.Planner

// outputDirFlag is a root-level flag naming where artifacts land.
var outputDirFlag string

// verboseFlag raises the log level to debug.
var verboseFlag bool

// Version spec flags, shared by the commands that acquire source.
var branchFlag string
var refFlag string
var localFlag string
var mainFlag bool

func init() {
	configureRootFlags(rootCmd)

	gitAdapter = adapter.NewLocalGitAdapter()
	fsAdapter = adapter.NewLocalSourceFSAdapter()
	buildRunner = adapter.NewLocalBuildRunner()
	archiveWriter = adapter.NewLocalArchiveWriter()
	sigVerifier = adapter.NewGPGVerifier()
}

const rootLongDescription = `Vkdforge builds patched Direct3D 12 driver binaries from upstream source.

It pins a source version (latest release, branch, explicit commit or a local
tree), layers file patches, capability substitutions and a GPU identity
injection on top, runs the external build and packages the result as a
checksummed tarball with a metadata manifest.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vkdforge",
		Short: "Patched D3D12 driver build pipeline",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger("", verboseFlag || viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&outputDirFlag, outputFlagName, "o",
			viper.GetString(outputFlagName),
			"output directory for packaged artifacts",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputFlagName)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", viper.GetBool(logVerboseKey), "log at debug level")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)
}

// configureVersionFlags adds the mutually exclusive source selection flags.
// Without any of them the latest upstream release is built.
func configureVersionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&branchFlag, branchFlagName, "b", "", "build the tip of an upstream branch")
	cmd.Flags().StringVarP(&refFlag, refFlagName, "r", "", "build an exact commit, tag or ref")
	cmd.Flags().StringVarP(&localFlag, localFlagName, "l", "", "build a local source tree (no network)")
	cmd.Flags().BoolVar(&mainFlag, mainFlagName, false, "build the tip of the upstream default branch")
	cmd.MarkFlagsMutuallyExclusive(branchFlagName, refFlagName, localFlagName, mainFlagName)
}

// parseVersionSpec maps the source selection flags onto a version spec.
func parseVersionSpec() m.VersionSpec {
	switch {
	case localFlag != "":
		return m.LocalPath(m.Path(localFlag))
	case refFlag != "":
		return m.ExplicitRef(refFlag)
	case branchFlag != "":
		return m.StagingBranch(branchFlag)
	case mainFlag:
		return m.LatestMain()
	default:
		return m.LatestRelease()
	}
}

func resolverConfig() domain.ResolverConfig {
	return domain.ResolverConfig{
		PrimaryURL:    viper.GetString(sourcePrimaryKey),
		MirrorURL:     viper.GetString(sourceMirrorKey),
		WorkDir:       m.Path(viper.GetString(sourceWorkDirKey)),
		TagPattern:    viper.GetString(sourceTagPatternKey),
		RefFallback:   domain.RefFallbackPolicy(viper.GetString(sourceRefFallbackKey)),
		DefaultBranch: viper.GetString(sourceDefaultBranchKey),
		Retry: retry.Policy{
			Attempts: viper.GetInt(retryAttemptsKey),
			Delay:    time.Duration(viper.GetInt64(retryDelayKey)) * time.Second,
		},
	}
}

func getResolver() domain.Resolver {
	if sourceResolver != nil {
		return sourceResolver
	}

	return domain.NewResolver(gitAdapter, fsAdapter, resolverConfig())
}

func getPlanner() domain.Planner {
	if mutationPlanner != nil {
		return mutationPlanner
	}

	return domain.NewPlanner(gitAdapter, fsAdapter)
}

func getPipeline(cmd *cobra.Command) domain.Pipeline {
	if pipeline != nil {
		return pipeline
	}

	ui := controller.NewUI(cmd, controller.IsTTY(os.Stdout))

	return domain.NewPipeline(
		getResolver(),
		domain.NewPatchChain(gitAdapter),
		domain.NewEngine(fsAdapter),
		buildRunner,
		domain.NewPackager(fsAdapter, archiveWriter),
		ui,
	)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
