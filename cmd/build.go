package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vkdforge.dev/pkg/vkdforge/internal/domain"
	m "vkdforge.dev/pkg/vkdforge/internal/model"
	"vkdforge.dev/pkg/vkdforge/internal/profile"
)

var gpuProfileFlag string
var disableFlags []string
var variantFlag string
var patchesDirFlag string

const buildLongDescription = `Build a patched driver binary end to end.

The pipeline resolves the requested source version, applies the variant's
file patches, forces the capability report and GPU identity, invokes the
external build tool and packages the binary with a metadata manifest and a
SHA-256 checksum. Without a source flag the latest upstream release is
built.`

// buildCmd represents the build command.
var buildCmd = newBuildCmd()

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "build",
		Short:  "Build and package a patched driver",
		Long:   buildLongDescription,
		PreRun: bindBuildFlags,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mutations, err := loadMutations()
			if err != nil {
				return err
			}

			_, _, err = getPipeline(cmd).Run(cmd.Context(), domain.RunArgs{
				Spec:         parseVersionSpec(),
				Mutations:    mutations,
				BuildScript:  viper.GetString(buildScriptKey),
				BuildTarget:  viper.GetString(buildTargetKey),
				BuildTimeout: time.Duration(viper.GetInt64(buildTimeoutKey)) * time.Minute,
				BuildOutput:  viper.GetString(buildOutputKey),
				Variant:      viper.GetString(packageVariantKey),
				Suffix:       viper.GetString(packageSuffixKey),
				BinaryName:   viper.GetString(packageBinaryNameKey),
				APIHeader:    viper.GetString(packageAPIHeaderKey),
				OutputDir:    m.Path(viper.GetString(outputFlagName)),
			})

			return renderRunError(cmd, err)
		},
	}

	configureVersionFlags(cmd)
	configureBuildFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func configureBuildFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&gpuProfileFlag, profileFlagName, "g", viper.GetString(gpuProfileKey), "GPU identity profile to report")
	cmd.Flags().StringArrayVarP(&disableFlags, disableFlagName, "d", viper.GetStringSlice(featuresDisableKey), "disable a mutation group (can be repeated)")
	cmd.Flags().StringVar(&variantFlag, variantFlagName, viper.GetString(packageVariantKey), "variant name embedded in the artifact filename")
	cmd.Flags().StringVar(&patchesDirFlag, patchesFlagName, viper.GetString(patchesDirKey), "directory holding the variant's *.patch files")
}

// bindBuildFlags runs in PreRun because build and plan carry the same flag
// set; binding at execution time makes the invoked command's flags win.
func bindBuildFlags(cmd *cobra.Command, _ []string) {
	bindFlagToConfig(cmd.Flags().Lookup(profileFlagName), gpuProfileKey)
	bindFlagToConfig(cmd.Flags().Lookup(disableFlagName), featuresDisableKey)
	bindFlagToConfig(cmd.Flags().Lookup(variantFlagName), packageVariantKey)
	bindFlagToConfig(cmd.Flags().Lookup(patchesFlagName), patchesDirKey)
}

// renderRunError prints the captured build log tail before the error itself
// reaches the operator. The error message alone carries only the exit status;
// the compiler diagnostics that explain it live in the tail.
func renderRunError(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}

	var buildErr *m.BuildToolError
	if errors.As(err, &buildErr) && buildErr.LogTail != "" {
		cmd.PrintErrln(buildErr.LogTail)
	}

	return err
}

// loadMutations assembles the ordered mutation list from the parsed
// configuration: variant patches first, then the capability groups selected
// by the feature toggles, parameterized by the chosen GPU profile.
func loadMutations() ([]m.Mutation, error) {
	var profiles []profile.GPUProfile

	if path := viper.GetString(gpuProfilesFileKey); path != "" {
		loaded, err := profile.LoadProfiles(path)
		if err != nil {
			return nil, err
		}

		profiles = loaded
	}

	gpu, err := profile.Find(profiles, viper.GetString(gpuProfileKey))
	if err != nil {
		return nil, err
	}

	toggles, err := togglesFromDisabled(viper.GetStringSlice(featuresDisableKey))
	if err != nil {
		return nil, err
	}

	patches, err := profile.LoadPatches(viper.GetString(patchesDirKey))
	if err != nil {
		return nil, err
	}

	return profile.BuildMutations(gpu, toggles, patches), nil
}

// togglesFromDisabled starts from everything enabled and switches off the
// named groups. Unknown names are an error so typos surface before any
// network or filesystem work happens.
func togglesFromDisabled(disabled []string) (profile.Toggles, error) {
	toggles := profile.DefaultToggles()

	for _, name := range disabled {
		switch name {
		case "gpu-identity":
			toggles.GPUIdentity = false
		case "shader-model":
			toggles.ShaderModel = false
		case "wave-ops":
			toggles.WaveOps = false
		case "resource-binding":
			toggles.ResourceBinding = false
		case "shader-ops":
			toggles.ShaderOps = false
		case "mesh-shaders":
			toggles.MeshShaders = false
		case "raytracing":
			toggles.RayTracing = false
		case "sampler-feedback":
			toggles.SamplerFeedback = false
		case "textures":
			toggles.Textures = false
		case "triangle-fan":
			toggles.TriangleFan = false
		default:
			return profile.Toggles{}, fmt.Errorf("unknown mutation group %q", name)
		}
	}

	return toggles, nil
}
