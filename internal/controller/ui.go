// Package controller provides output adapters for displaying pipeline
// progress and results.
package controller

import (
	"context"
	"os"

	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

// Stage names the pipeline phases surfaced to the operator.
type Stage string

// Pipeline stages, in execution order.
const (
	StageResolve Stage = "resolve"
	StagePatch   Stage = "patch"
	StageInject  Stage = "inject"
	StageBuild   Stage = "build"
	StagePackage Stage = "package"
)

// UI defines how the pipeline reports progress and outcomes. Implementations
// can use different output methods (simple text, TUI).
type UI interface {
	Start(ctx context.Context) error
	Close(ctx context.Context)
	StageChanged(ctx context.Context, stage Stage, detail string)
	DisplayResolved(ctx context.Context, resolved m.ResolvedSource)
	DisplayReport(ctx context.Context, report *m.MutationReport) error
	DisplayPlan(ctx context.Context, entries []m.PlanEntry) error
	DisplayArtifact(ctx context.Context, artifact *m.PackageArtifact)
}

// IsTTY reports whether f is an interactive terminal.
func IsTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeCharDevice != 0
}
