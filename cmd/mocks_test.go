package cmd

import (
	"context"

	"github.com/stretchr/testify/mock"

	"vkdforge.dev/pkg/vkdforge/internal/domain"
	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

type mockPipeline struct {
	mock.Mock
}

func (p *mockPipeline) Run(ctx context.Context, args domain.RunArgs) (*m.PackageArtifact, *m.MutationReport, error) {
	called := p.Called(ctx, args)

	var artifact *m.PackageArtifact
	if v := called.Get(0); v != nil {
		artifact = v.(*m.PackageArtifact)
	}

	var report *m.MutationReport
	if v := called.Get(1); v != nil {
		report = v.(*m.MutationReport)
	}

	return artifact, report, called.Error(2)
}

type mockResolver struct {
	mock.Mock
}

func (r *mockResolver) Resolve(ctx context.Context, spec m.VersionSpec) (m.ResolvedSource, error) {
	called := r.Called(ctx, spec)

	return called.Get(0).(m.ResolvedSource), called.Error(1)
}

type mockPlanner struct {
	mock.Mock
}

func (p *mockPlanner) Plan(ctx context.Context, tree m.Path, mutations []m.Mutation, threads int) ([]m.PlanEntry, error) {
	called := p.Called(ctx, tree, mutations, threads)

	var entries []m.PlanEntry
	if v := called.Get(0); v != nil {
		entries = v.([]m.PlanEntry)
	}

	return entries, called.Error(1)
}
