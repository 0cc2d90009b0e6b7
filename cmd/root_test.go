package cmd

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vkdforge.dev/pkg/vkdforge/internal/domain"
)

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "vkdforge", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.Equal(t, rootLongDescription, cmd.Long)
}

func TestRootCmd_HelpOutput(t *testing.T) {
	cmd := newRootCmd()
	output := &bytes.Buffer{}
	cmd.SetOut(output)
	cmd.SetErr(&bytes.Buffer{})

	cmd.SetArgs([]string{})
	err := cmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, output.String(), "Usage:")
	assert.Contains(t, output.String(), "patched Direct3D 12 driver")
}

func TestInit(t *testing.T) {
	// Test that init() created all the necessary instances
	assert.NotNil(t, gitAdapter)
	assert.NotNil(t, fsAdapter)
	assert.NotNil(t, buildRunner)
	assert.NotNil(t, archiveWriter)
	assert.NotNil(t, sigVerifier)
}

func TestResolverConfig_Defaults(t *testing.T) {
	cfg := resolverConfig()

	assert.Equal(t, defaultPrimaryURL, cfg.PrimaryURL)
	assert.Equal(t, domain.RefFallbackFail, cfg.RefFallback)
	assert.Equal(t, defaultBranchName, cfg.DefaultBranch)
	assert.Equal(t, defaultRetryAttempts, cfg.Retry.Attempts)
	assert.Equal(t, defaultRetryDelay, cfg.Retry.Delay)
}

func TestGetPipeline_ConstructsWhenUnset(t *testing.T) {
	swapPipeline(t, nil)

	cmd := newRootCmd()
	assert.NotNil(t, getPipeline(cmd))
}

func TestGetPipeline_PrefersInjected(t *testing.T) {
	injected := &mockPipeline{}
	swapPipeline(t, injected)

	cmd := newRootCmd()
	assert.Same(t, domain.Pipeline(injected), getPipeline(cmd))
}

func TestExecute(t *testing.T) {
	// Save original rootCmd
	originalRootCmd := rootCmd

	// Create a mock command that succeeds
	mockCmd := &cobra.Command{
		Use: "test",
		RunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}
	mockCmd.SetOut(&bytes.Buffer{})
	mockCmd.SetErr(&bytes.Buffer{})

	rootCmd = mockCmd

	// Execute should not panic or exit
	Execute()

	// Restore
	rootCmd = originalRootCmd
}

func TestExecute_WithError(t *testing.T) {
	// Save original rootCmd
	originalRootCmd := rootCmd
	defer func() {
		rootCmd = originalRootCmd
	}()

	// Create a mock command that fails
	mockCmd := &cobra.Command{
		Use: "test",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("command failed")
		},
	}
	mockCmd.SetOut(&bytes.Buffer{})
	mockCmd.SetErr(&bytes.Buffer{})

	rootCmd = mockCmd

	// os.Exit(1) cannot be intercepted here, so only the command error path
	// is asserted directly.
	err := rootCmd.Execute()
	require.Error(t, err)
}
