package domain

import (
	"context"
	"fmt"
	"log/slog"

	"vkdforge.dev/pkg/vkdforge/internal/adapter"
	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

// PatchChain applies an ordered list of file patches with escalating
// strategies. Order is the caller's contract: later patches may depend on the
// textual effect of earlier ones, so reordering is not permitted.
type PatchChain interface {
	// Apply runs every patch mutation in list order and reports outcomes.
	// It returns a PatchError as soon as a required patch fails; the report
	// returned alongside still contains everything applied up to that point.
	Apply(ctx context.Context, tree m.Path, patches []m.Mutation) (*m.MutationReport, error)
}

type patchChain struct {
	git adapter.GitAdapter
}

// NewPatchChain constructs a PatchChain backed by the VCS collaborator.
func NewPatchChain(git adapter.GitAdapter) PatchChain {
	return &patchChain{git: git}
}

func (c *patchChain) Apply(ctx context.Context, tree m.Path, patches []m.Mutation) (*m.MutationReport, error) {
	report := &m.MutationReport{}

	for _, mutation := range patches {
		if mutation.Kind != m.MutationPatch || mutation.Patch == nil {
			return report, fmt.Errorf("mutation %s is not a patch", mutation.ID)
		}

		result := c.applyOne(ctx, tree, mutation)
		report.Add(result)

		if result.Outcome == m.OutcomeFailed && mutation.Required {
			return report, &m.PatchError{MutationID: mutation.ID, Err: fmt.Errorf("%s", result.Detail)}
		}
	}

	return report, nil
}

// applyOne escalates strictly: already-applied check, exact apply, three-way
// merge, then failure. A single patch failure never aborts the chain here;
// the caller decides based on the required flag.
func (c *patchChain) applyOne(ctx context.Context, tree m.Path, mutation m.Mutation) m.MutationResult {
	result := m.MutationResult{
		MutationID: mutation.ID,
		Kind:       m.MutationPatch,
		Required:   mutation.Required,
	}

	diff := mutation.Patch.Diff

	// Reverse dry-run: if the patch un-applies cleanly, its effect is
	// already in the tree.
	if err := c.git.Apply(ctx, tree, diff, adapter.ApplyOptions{Check: true, Reverse: true}); err == nil {
		result.Outcome = m.OutcomeAlreadyApplied
		result.Detail = "reverse dry-run clean"

		slog.Debug("patch already applied", "mutation", mutation.ID)

		return result
	}

	if err := c.git.Apply(ctx, tree, diff, adapter.ApplyOptions{}); err == nil {
		result.Outcome = m.OutcomeApplied

		slog.Info("patch applied", "mutation", mutation.ID)

		return result
	}

	err := c.git.Apply(ctx, tree, diff, adapter.ApplyOptions{ThreeWay: true})
	if err == nil {
		result.Outcome = m.OutcomeApplied
		result.Fuzzy = true
		result.Detail = "three-way merge"

		slog.Info("patch applied via three-way merge", "mutation", mutation.ID)

		return result
	}

	result.Outcome = m.OutcomeFailed
	result.Detail = err.Error()

	if mutation.Required {
		slog.Error("required patch failed", "mutation", mutation.ID, "detail", result.Detail)
	} else {
		slog.Warn("optional patch failed, continuing", "mutation", mutation.ID, "detail", result.Detail)
	}

	return result
}
