package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/stretchr/testify/mock"

	"vkdforge.dev/pkg/vkdforge/internal/adapter"
	"vkdforge.dev/pkg/vkdforge/internal/controller"
	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

// fakeFS is an in-memory SourceFSAdapter for engine and planner tests.
type fakeFS struct {
	files map[string][]byte
}

func newFakeFS() *fakeFS {
	return &fakeFS{files: map[string][]byte{}}
}

func (f *fakeFS) ReadFile(path m.Path) ([]byte, error) {
	content, ok := f.files[string(path)]
	if !ok {
		return nil, os.ErrNotExist
	}

	return content, nil
}

func (f *fakeFS) WriteFile(path m.Path, content []byte, _ os.FileMode) error {
	f.files[string(path)] = content
	return nil
}

func (f *fakeFS) HashFile(path m.Path) (string, error) {
	content, err := f.ReadFile(path)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(content)

	return hex.EncodeToString(sum[:]), nil
}

func (f *fakeFS) FileInfo(path m.Path) (os.FileInfo, error) {
	if _, ok := f.files[string(path)]; ok {
		return fakeFileInfo{name: filepath.Base(string(path))}, nil
	}

	// A path holding files underneath it is a directory.
	for key := range f.files {
		if strings.HasPrefix(key, string(path)+"/") {
			return fakeFileInfo{name: filepath.Base(string(path)), dir: true}, nil
		}
	}

	return nil, os.ErrNotExist
}

type fakeFileInfo struct {
	name string
	dir  bool
}

func (i fakeFileInfo) Name() string { return i.name }

func (i fakeFileInfo) Size() int64 { return 0 }

func (i fakeFileInfo) Mode() os.FileMode {
	if i.dir {
		return os.ModeDir
	}

	return 0
}

func (i fakeFileInfo) ModTime() time.Time { return time.Time{} }

func (i fakeFileInfo) IsDir() bool { return i.dir }

func (i fakeFileInfo) Sys() any { return nil }

func (f *fakeFS) FindFiles(root m.Path, name string, excludeDirs []string) ([]m.Path, error) {
	excluded := make(map[string]bool, len(excludeDirs))
	for _, dir := range excludeDirs {
		excluded[dir] = true
	}

	var found []m.Path

	for path := range f.files {
		if !strings.HasPrefix(path, string(root)+"/") {
			continue
		}

		if filepath.Base(path) != name {
			continue
		}

		skip := false

		for _, elem := range strings.Split(filepath.Dir(path), "/") {
			if excluded[elem] {
				skip = true
				break
			}
		}

		if !skip {
			found = append(found, m.Path(path))
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i] < found[j] })

	return found, nil
}

func (f *fakeFS) CopyDir(src, dst m.Path) error {
	for path, content := range f.files {
		if strings.HasPrefix(path, string(src)+"/") {
			f.files[string(dst)+strings.TrimPrefix(path, string(src))] = content
		}
	}

	return nil
}

func (f *fakeFS) CreateTempDir(_ string) (m.Path, error) {
	return "tmp", nil
}

func (f *fakeFS) RemoveAll(path m.Path) error {
	for key := range f.files {
		if key == string(path) || strings.HasPrefix(key, string(path)+"/") {
			delete(f.files, key)
		}
	}

	return nil
}

func (f *fakeFS) JoinPath(elem ...string) m.Path {
	return m.Path(filepath.Join(elem...))
}

type mockGitAdapter struct {
	mock.Mock
}

func (g *mockGitAdapter) FetchShallow(ctx context.Context, url, ref string, dest m.Path) error {
	return g.Called(ctx, url, ref, dest).Error(0)
}

func (g *mockGitAdapter) FetchFull(ctx context.Context, url, ref string, dest m.Path) error {
	return g.Called(ctx, url, ref, dest).Error(0)
}

func (g *mockGitAdapter) RemoteTags(ctx context.Context, url string) ([]string, error) {
	called := g.Called(ctx, url)

	var tags []string
	if v := called.Get(0); v != nil {
		tags = v.([]string)
	}

	return tags, called.Error(1)
}

func (g *mockGitAdapter) RemoteDefaultBranch(ctx context.Context, url string) (string, error) {
	called := g.Called(ctx, url)

	return called.String(0), called.Error(1)
}

func (g *mockGitAdapter) HeadCommit(ctx context.Context, tree m.Path) (string, error) {
	called := g.Called(ctx, tree)

	return called.String(0), called.Error(1)
}

func (g *mockGitAdapter) Describe(ctx context.Context, tree m.Path) (string, error) {
	called := g.Called(ctx, tree)

	return called.String(0), called.Error(1)
}

func (g *mockGitAdapter) Apply(ctx context.Context, tree m.Path, diff []byte, opts adapter.ApplyOptions) error {
	return g.Called(ctx, tree, diff, opts).Error(0)
}

type mockBuildRunner struct {
	mock.Mock
}

func (r *mockBuildRunner) Run(ctx context.Context, cfg adapter.BuildConfig) (adapter.BuildOutcome, error) {
	called := r.Called(ctx, cfg)

	return called.Get(0).(adapter.BuildOutcome), called.Error(1)
}

type mockResolver struct {
	mock.Mock
}

func (r *mockResolver) Resolve(ctx context.Context, spec m.VersionSpec) (m.ResolvedSource, error) {
	called := r.Called(ctx, spec)

	return called.Get(0).(m.ResolvedSource), called.Error(1)
}

type mockPatchChain struct {
	mock.Mock
}

func (c *mockPatchChain) Apply(ctx context.Context, tree m.Path, patches []m.Mutation) (*m.MutationReport, error) {
	called := c.Called(ctx, tree, patches)

	var report *m.MutationReport
	if v := called.Get(0); v != nil {
		report = v.(*m.MutationReport)
	}

	return report, called.Error(1)
}

type mockEngine struct {
	mock.Mock
}

func (e *mockEngine) Apply(ctx context.Context, tree m.Path, mutations []m.Mutation) (*m.MutationReport, error) {
	called := e.Called(ctx, tree, mutations)

	var report *m.MutationReport
	if v := called.Get(0); v != nil {
		report = v.(*m.MutationReport)
	}

	return report, called.Error(1)
}

type mockPackager struct {
	mock.Mock
}

func (p *mockPackager) Package(ctx context.Context, args PackageArgs) (*m.PackageArtifact, error) {
	called := p.Called(ctx, args)

	var artifact *m.PackageArtifact
	if v := called.Get(0); v != nil {
		artifact = v.(*m.PackageArtifact)
	}

	return artifact, called.Error(1)
}

// recordingUI satisfies controller.UI and remembers what the pipeline showed.
type recordingUI struct {
	started  int
	closed   int
	stages   []controller.Stage
	reports  int
	artifact *m.PackageArtifact
}

func (u *recordingUI) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	u.started++

	return nil
}

func (u *recordingUI) Close(context.Context) { u.closed++ }

func (u *recordingUI) StageChanged(_ context.Context, stage controller.Stage, _ string) {
	u.stages = append(u.stages, stage)
}

func (u *recordingUI) DisplayResolved(context.Context, m.ResolvedSource) {}

func (u *recordingUI) DisplayReport(context.Context, *m.MutationReport) error {
	u.reports++
	return nil
}

func (u *recordingUI) DisplayPlan(context.Context, []m.PlanEntry) error { return nil }

func (u *recordingUI) DisplayArtifact(_ context.Context, artifact *m.PackageArtifact) {
	u.artifact = artifact
}
