package cmd

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vkdforge.dev/pkg/vkdforge/internal/domain"
	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

func swapResolver(t *testing.T, r domain.Resolver) {
	t.Helper()

	original := sourceResolver
	sourceResolver = r

	t.Cleanup(func() { sourceResolver = original })
}

func TestResolveCmd_PrintsSourceFacts(t *testing.T) {
	resolverMock := &mockResolver{}
	swapResolver(t, resolverMock)

	resolverMock.On("Resolve", mock.Anything, mock.MatchedBy(func(spec m.VersionSpec) bool {
		return spec.Kind == m.KindExplicitRef && spec.Ref == "8ac1ed2"
	})).Return(m.ResolvedSource{
		Ref:     "8ac1ed2",
		Commit:  "8ac1ed2409e8e0e8be6708a7fdd5e83c9a36e0ed",
		Mirror:  m.MirrorPrimary,
		Version: "v2.14.1-5-g8ac1ed2",
		Tree:    m.Path(".vkdforge-work/source"),
	}, nil)

	output := &bytes.Buffer{}
	cmd := newRootCmd()
	cmd.AddCommand(newResolveCmd())
	cmd.SetOut(output)
	cmd.SetErr(&bytes.Buffer{})

	cmd.SetArgs([]string{"resolve", "--ref", "8ac1ed2"})
	err := cmd.Execute()
	require.NoError(t, err)

	assert.Contains(t, output.String(), "8ac1ed2409e8e0e8be6708a7fdd5e83c9a36e0ed")
	assert.Contains(t, output.String(), "v2.14.1-5-g8ac1ed2")
	assert.Contains(t, output.String(), "primary")
	resolverMock.AssertExpectations(t)
}

func TestResolveCmd_DefaultsToLatestRelease(t *testing.T) {
	resolverMock := &mockResolver{}
	swapResolver(t, resolverMock)

	resolverMock.On("Resolve", mock.Anything, mock.MatchedBy(func(spec m.VersionSpec) bool {
		return spec.Kind == m.KindLatestRelease
	})).Return(m.ResolvedSource{Ref: "v2.14.1", Commit: "abc", Version: "v2.14.1"}, nil)

	cmd := newRootCmd()
	cmd.AddCommand(newResolveCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	cmd.SetArgs([]string{"resolve"})
	err := cmd.Execute()
	require.NoError(t, err)

	resolverMock.AssertExpectations(t)
}

func TestResolveCmd_PropagatesAcquisitionError(t *testing.T) {
	resolverMock := &mockResolver{}
	swapResolver(t, resolverMock)

	resolverMock.On("Resolve", mock.Anything, mock.Anything).
		Return(m.ResolvedSource{}, fmt.Errorf("all mirrors unreachable"))

	cmd := newRootCmd()
	cmd.AddCommand(newResolveCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	cmd.SetArgs([]string{"resolve", "--main"})
	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestParseVersionSpec(t *testing.T) {
	tests := []struct {
		name   string
		branch string
		ref    string
		local  string
		main   bool
		want   m.VersionKind
	}{
		{"default is latest release", "", "", "", false, m.KindLatestRelease},
		{"branch", "staging", "", "", false, m.KindStagingBranch},
		{"ref", "", "deadbeef", "", false, m.KindExplicitRef},
		{"local wins over ref", "", "deadbeef", "/tmp/tree", false, m.KindLocalPath},
		{"main", "", "", "", true, m.KindLatestMain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			branchFlag, refFlag, localFlag, mainFlag = tt.branch, tt.ref, tt.local, tt.main
			t.Cleanup(func() { branchFlag, refFlag, localFlag, mainFlag = "", "", "", false })

			assert.Equal(t, tt.want, parseVersionSpec().Kind)
		})
	}
}
