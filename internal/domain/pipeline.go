package domain

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"vkdforge.dev/pkg/vkdforge/internal/adapter"
	"vkdforge.dev/pkg/vkdforge/internal/controller"
	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

// RunArgs configures one end-to-end pipeline run. The mutation list is
// constructed once at startup from validated configuration and passed down as
// plain data; nothing in the pipeline consults ambient state.
type RunArgs struct {
	Spec      m.VersionSpec
	Mutations []m.Mutation

	BuildScript  string
	BuildTarget  string
	BuildTimeout time.Duration
	// BuildOutput is the deterministic path, relative to the tree, where
	// the build tool leaves the shared library.
	BuildOutput string

	Variant    string
	Suffix     string
	BinaryName string
	APIHeader  string
	OutputDir  m.Path
}

// Pipeline wires the full sequential run: acquisition, patch chain,
// injection engine, external build, packaging. No stage runs concurrently
// with another; the single working tree is the only shared state.
type Pipeline interface {
	Run(ctx context.Context, args RunArgs) (*m.PackageArtifact, *m.MutationReport, error)
}

type pipeline struct {
	resolver Resolver
	chain    PatchChain
	engine   Engine
	builder  adapter.BuildRunner
	packager Packager
	ui       controller.UI
}

// NewPipeline constructs the pipeline from its collaborators.
func NewPipeline(
	resolver Resolver,
	chain PatchChain,
	engine Engine,
	builder adapter.BuildRunner,
	packager Packager,
	ui controller.UI,
) Pipeline {
	return &pipeline{
		resolver: resolver,
		chain:    chain,
		engine:   engine,
		builder:  builder,
		packager: packager,
		ui:       ui,
	}
}

// Run executes the stages in their fixed, documented order: file patches
// first, then programmatic edits, so injection anchors see patched text.
// The report is displayed even on failure so operators can see how far the
// run got and which features were not applied.
func (p *pipeline) Run(ctx context.Context, args RunArgs) (*m.PackageArtifact, *m.MutationReport, error) {
	report := &m.MutationReport{}

	if err := p.ui.Start(ctx); err != nil {
		return nil, report, err
	}
	defer p.ui.Close(ctx)

	p.ui.StageChanged(ctx, controller.StageResolve, args.Spec.String())

	resolved, err := p.resolver.Resolve(ctx, args.Spec)
	if err != nil {
		return nil, report, err
	}

	p.ui.DisplayResolved(ctx, resolved)

	patches, edits := splitMutations(args.Mutations)

	p.ui.StageChanged(ctx, controller.StagePatch, fmt.Sprintf("%d patch(es)", len(patches)))

	patchReport, err := p.chain.Apply(ctx, resolved.Tree, patches)
	report.Merge(patchReport)

	if err != nil {
		// A required patch failure halts the run before the build tool
		// is ever invoked.
		p.showReport(ctx, report)
		return nil, report, err
	}

	p.ui.StageChanged(ctx, controller.StageInject, fmt.Sprintf("%d edit(s)", len(edits)))

	editReport, err := p.engine.Apply(ctx, resolved.Tree, edits)
	report.Merge(editReport)

	if err != nil {
		p.showReport(ctx, report)
		return nil, report, err
	}

	p.ui.StageChanged(ctx, controller.StageBuild, args.BuildTarget)

	outcome, err := p.builder.Run(ctx, adapter.BuildConfig{
		Script:  args.BuildScript,
		WorkDir: resolved.Tree,
		Target:  args.BuildTarget,
		Timeout: args.BuildTimeout,
	})
	if err != nil {
		p.showReport(ctx, report)
		return nil, report, err
	}

	slog.Info("build finished", "duration", outcome.Duration)

	p.ui.StageChanged(ctx, controller.StagePackage, args.Variant)

	artifact, err := p.packager.Package(ctx, PackageArgs{
		BuildOutput: m.Path(filepath.Join(string(resolved.Tree), args.BuildOutput)),
		Tree:        resolved.Tree,
		APIHeader:   args.APIHeader,
		Resolved:    resolved,
		Variant:     args.Variant,
		Suffix:      args.Suffix,
		BinaryName:  args.BinaryName,
		OutputDir:   args.OutputDir,
		BuildDate:   time.Now(),
	})
	if err != nil {
		p.showReport(ctx, report)
		return nil, report, err
	}

	p.showReport(ctx, report)
	p.ui.DisplayArtifact(ctx, artifact)

	return artifact, report, nil
}

func (p *pipeline) showReport(ctx context.Context, report *m.MutationReport) {
	if err := p.ui.DisplayReport(ctx, report); err != nil {
		slog.Error("failed to display mutation report", "error", err)
	}
}

// splitMutations separates patches from programmatic edits, preserving the
// caller's relative order inside each group.
func splitMutations(mutations []m.Mutation) (patches, edits []m.Mutation) {
	for _, mutation := range mutations {
		if mutation.Kind == m.MutationPatch {
			patches = append(patches, mutation)
			continue
		}

		edits = append(edits, mutation)
	}

	return patches, edits
}
