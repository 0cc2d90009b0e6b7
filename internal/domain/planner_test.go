package domain

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vkdforge.dev/pkg/vkdforge/internal/adapter"
	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

func plannerFixture() (*mockGitAdapter, *fakeFS, Planner) {
	git := &mockGitAdapter{}
	fs := newFakeFS()
	fs.files["work/source/src/device.c"] = []byte(capsSource)

	return git, fs, NewPlanner(git, fs)
}

func TestPlanner_EvaluatesWithoutMutating(t *testing.T) {
	git, fs, planner := plannerFixture()

	diff := []byte("diff")

	git.On("Apply", mock.Anything, engineTree, diff, adapter.ApplyOptions{Check: true, Reverse: true}).
		Return(fmt.Errorf("does not reverse"))
	git.On("Apply", mock.Anything, engineTree, diff, adapter.ApplyOptions{Check: true}).
		Return(nil)

	mutations := []m.Mutation{
		m.NewPatch("0001-fix", diff, true),
		m.NewSubstitution("wave-ops", "device.c", "options1.WaveOps", "TRUE", m.ReplaceAll, false),
		m.NewSubstitution("triangle-fan", "device.c", "options15.TriangleFanSupported", "TRUE", m.ReplaceAll, false),
		m.NewInjection("identity", "device.c", "forge: identity", testStrategies(), testBlock, false),
	}

	entries, err := planner.Plan(context.Background(), engineTree, mutations, 2)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	// Entries keep list order regardless of worker scheduling.
	assert.Equal(t, "0001-fix", entries[0].MutationID)
	assert.True(t, entries[0].Applicable)
	assert.Equal(t, "applies cleanly", entries[0].Reason)

	assert.Equal(t, "wave-ops", entries[1].MutationID)
	assert.True(t, entries[1].Applicable)
	assert.Equal(t, "3 occurrence(s)", entries[1].Reason)

	assert.Equal(t, "triangle-fan", entries[2].MutationID)
	assert.False(t, entries[2].Applicable)

	assert.Equal(t, "identity", entries[3].MutationID)
	assert.True(t, entries[3].Applicable)
	assert.Equal(t, "anchor via after-open-brace", entries[3].Reason)

	// The scan never writes.
	assert.Equal(t, capsSource, string(fs.files["work/source/src/device.c"]))
}

func TestPlanner_PatchAlreadyApplied(t *testing.T) {
	git, _, planner := plannerFixture()

	diff := []byte("diff")
	git.On("Apply", mock.Anything, engineTree, diff, adapter.ApplyOptions{Check: true, Reverse: true}).
		Return(nil)

	entries, err := planner.Plan(context.Background(), engineTree, []m.Mutation{m.NewPatch("0001-fix", diff, true)}, 1)
	require.NoError(t, err)

	assert.False(t, entries[0].Applicable)
	assert.Equal(t, "already applied", entries[0].Reason)
}

func TestPlanner_PatchNeedsThreeWay(t *testing.T) {
	git, _, planner := plannerFixture()

	diff := []byte("diff")
	git.On("Apply", mock.Anything, engineTree, diff, mock.Anything).
		Return(fmt.Errorf("hunk failed"))

	entries, err := planner.Plan(context.Background(), engineTree, []m.Mutation{m.NewPatch("0001-fix", diff, true)}, 1)
	require.NoError(t, err)

	assert.True(t, entries[0].Applicable)
	assert.Equal(t, "needs three-way merge", entries[0].Reason)
}

func TestPlanner_InjectionMarkerAlreadyPresent(t *testing.T) {
	git, fs, planner := plannerFixture()
	_ = git

	fs.files["work/source/src/device.c"] = []byte("/* forge: identity */\n" + capsSource)

	mutation := m.NewInjection("identity", "device.c", "forge: identity", testStrategies(), testBlock, false)

	entries, err := planner.Plan(context.Background(), engineTree, []m.Mutation{mutation}, 1)
	require.NoError(t, err)

	assert.False(t, entries[0].Applicable)
	assert.Equal(t, "marker already present", entries[0].Reason)
}

func TestPlanner_ManyWorkersKeepOrder(t *testing.T) {
	_, _, planner := plannerFixture()

	mutations := make([]m.Mutation, 0, 20)
	for i := 0; i < 20; i++ {
		mutations = append(mutations, m.NewSubstitution(
			fmt.Sprintf("sub-%02d", i), "device.c", "options1.WaveOps", "TRUE", m.ReplaceAll, false))
	}

	entries, err := planner.Plan(context.Background(), engineTree, mutations, 8)
	require.NoError(t, err)
	require.Len(t, entries, 20)

	for i, entry := range entries {
		assert.Equal(t, fmt.Sprintf("sub-%02d", i), entry.MutationID)
	}
}
