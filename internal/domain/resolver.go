// Package domain contains the core acquisition and mutation pipeline.
package domain

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"vkdforge.dev/pkg/vkdforge/internal/adapter"
	m "vkdforge.dev/pkg/vkdforge/internal/model"
	"vkdforge.dev/pkg/vkdforge/pkg/retry"
)

// RefFallbackPolicy decides what happens when an explicit ref cannot be
// resolved on any mirror. The downgrade is an explicit configuration choice,
// never inferred from partial failures.
type RefFallbackPolicy string

// Available RefFallbackPolicy values.
const (
	RefFallbackFail          RefFallbackPolicy = "fail"
	RefFallbackDefaultBranch RefFallbackPolicy = "default-branch"
)

// ResolverConfig carries the acquisition endpoints and policies.
type ResolverConfig struct {
	PrimaryURL string
	MirrorURL  string
	// WorkDir is where working trees are materialized.
	WorkDir m.Path
	// TagPattern filters which remote tags count as releases.
	TagPattern string
	// RefFallback applies to explicit refs only.
	RefFallback RefFallbackPolicy
	// DefaultBranch is used when the remote's HEAD cannot be queried.
	DefaultBranch string
	Retry         retry.Policy
}

// defaultTagPattern accepts plain numeric release tags like v2.14.1.
const defaultTagPattern = `^v?\d+(\.\d+)*$`

// Resolver turns a symbolic version request into a concrete working tree plus
// the version facts later stages consume.
type Resolver interface {
	Resolve(ctx context.Context, spec m.VersionSpec) (m.ResolvedSource, error)
}

type resolver struct {
	git adapter.GitAdapter
	fs  adapter.SourceFSAdapter
	cfg ResolverConfig
}

// NewResolver constructs a Resolver backed by the provided VCS and
// filesystem adapters.
func NewResolver(git adapter.GitAdapter, fs adapter.SourceFSAdapter, cfg ResolverConfig) Resolver {
	if cfg.TagPattern == "" {
		cfg.TagPattern = defaultTagPattern
	}

	if cfg.DefaultBranch == "" {
		cfg.DefaultBranch = "master"
	}

	if cfg.RefFallback == "" {
		cfg.RefFallback = RefFallbackFail
	}

	return &resolver{git: git, fs: fs, cfg: cfg}
}

// Resolve produces a ResolvedSource or an AcquisitionError once every
// fallback path is exhausted. The result is never partially populated.
func (r *resolver) Resolve(ctx context.Context, spec m.VersionSpec) (m.ResolvedSource, error) {
	var (
		resolved m.ResolvedSource
		err      error
	)

	switch spec.Kind {
	case m.KindLocalPath:
		resolved, err = r.resolveLocal(ctx, spec)
	case m.KindLatestRelease:
		resolved, err = r.resolveLatestRelease(ctx, spec)
	case m.KindStagingBranch:
		resolved, err = r.resolveRef(ctx, spec, spec.Branch, false)
	case m.KindExplicitRef:
		resolved, err = r.resolveRef(ctx, spec, spec.Ref, true)
	case m.KindLatestMain:
		resolved, err = r.resolveLatestMain(ctx, spec)
	default:
		err = &m.AcquisitionError{Spec: spec, Err: fmt.Errorf("unknown version kind %q", spec.Kind)}
	}

	if err != nil {
		return m.ResolvedSource{}, err
	}

	slog.Info("source resolved",
		"ref", resolved.Ref,
		"commit", resolved.Commit,
		"version", resolved.Version,
		"mirror", resolved.Mirror,
	)

	return resolved, nil
}

// resolveLocal copies the tree and never touches the network.
func (r *resolver) resolveLocal(ctx context.Context, spec m.VersionSpec) (m.ResolvedSource, error) {
	info, err := r.fs.FileInfo(spec.Local)
	if err != nil {
		return m.ResolvedSource{}, &m.AcquisitionError{Spec: spec, Err: fmt.Errorf("local tree %s: %w", spec.Local, err)}
	}

	if !info.IsDir() {
		return m.ResolvedSource{}, &m.AcquisitionError{Spec: spec, Err: fmt.Errorf("local tree %s is not a directory", spec.Local)}
	}

	dest := r.fs.JoinPath(string(r.cfg.WorkDir), "source")
	if err := r.fs.CopyDir(spec.Local, dest); err != nil {
		return m.ResolvedSource{}, &m.AcquisitionError{Spec: spec, Err: err}
	}

	// Version facts are best-effort for local overrides; the tree may not
	// be a repository at all.
	commit := "local"
	if head, err := r.git.HeadCommit(ctx, dest); err == nil {
		commit = head
	}

	version := "local"
	if described, err := r.git.Describe(ctx, dest); err == nil {
		version = described
	}

	return m.ResolvedSource{
		Ref:     string(spec.Local),
		Commit:  commit,
		Mirror:  m.MirrorLocal,
		Version: version,
		Tree:    dest,
	}, nil
}

// resolveLatestRelease queries tags on the primary, then the mirror, selects
// the highest release by numeric ordering and fetches it shallowly.
func (r *resolver) resolveLatestRelease(ctx context.Context, spec m.VersionSpec) (m.ResolvedSource, error) {
	tagRe := regexp.MustCompile(r.cfg.TagPattern)

	url, mirror := r.cfg.PrimaryURL, m.MirrorPrimary

	tags, err := r.remoteTags(ctx, url)
	if err != nil && r.cfg.MirrorURL != "" {
		slog.Warn("primary source unreachable, trying mirror", "primary", url, "error", err)

		url, mirror = r.cfg.MirrorURL, m.MirrorFallback
		tags, err = r.remoteTags(ctx, url)
	}

	if err != nil {
		return m.ResolvedSource{}, &m.AcquisitionError{Spec: spec, Err: err}
	}

	releases := tags[:0]

	for _, tag := range tags {
		if tagRe.MatchString(tag) {
			releases = append(releases, tag)
		}
	}

	if len(releases) == 0 {
		return m.ResolvedSource{}, &m.AcquisitionError{Spec: spec, Err: fmt.Errorf("no tags matching %s on %s", r.cfg.TagPattern, url)}
	}

	sort.Slice(releases, func(i, j int) bool {
		return m.CompareReleaseTags(releases[i], releases[j]) < 0
	})

	tag := releases[len(releases)-1]

	return r.fetchInto(ctx, spec, url, mirror, tag, tag)
}

// resolveRef fetches a branch or explicit ref, falling back to the mirror and
// then, for explicit refs only, escalating to a full-history fetch.
func (r *resolver) resolveRef(ctx context.Context, spec m.VersionSpec, ref string, explicit bool) (m.ResolvedSource, error) {
	dest := r.fs.JoinPath(string(r.cfg.WorkDir), "source")

	type attempt struct {
		url    string
		mirror m.Mirror
		deep   bool
	}

	attempts := []attempt{{r.cfg.PrimaryURL, m.MirrorPrimary, false}}
	if r.cfg.MirrorURL != "" {
		attempts = append(attempts, attempt{r.cfg.MirrorURL, m.MirrorFallback, false})
	}

	// A shallow fetch cannot reach commits behind a branch head; explicit
	// refs get a second pass with full history before giving up.
	if explicit {
		attempts = append(attempts, attempt{r.cfg.PrimaryURL, m.MirrorPrimary, true})
		if r.cfg.MirrorURL != "" {
			attempts = append(attempts, attempt{r.cfg.MirrorURL, m.MirrorFallback, true})
		}
	}

	var lastErr error

	for _, at := range attempts {
		_ = r.fs.RemoveAll(dest)

		fetch := r.git.FetchShallow
		if at.deep {
			fetch = r.git.FetchFull
		}

		err := r.cfg.Retry.Do(ctx, "fetch "+ref, func() error {
			return fetch(ctx, at.url, ref, dest)
		})
		if err != nil {
			lastErr = err
			continue
		}

		return r.describeTree(ctx, ref, at.mirror, dest)
	}

	if explicit && r.cfg.RefFallback == RefFallbackDefaultBranch {
		branch := r.defaultBranch(ctx)
		slog.Warn("ref unresolvable, configured policy falls back to default branch",
			"ref", ref, "branch", branch)

		return r.resolveRef(ctx, spec, branch, false)
	}

	return m.ResolvedSource{}, &m.AcquisitionError{Spec: spec, Err: lastErr}
}

// resolveLatestMain fetches the tip of the remote default branch.
func (r *resolver) resolveLatestMain(ctx context.Context, spec m.VersionSpec) (m.ResolvedSource, error) {
	return r.resolveRef(ctx, spec, r.defaultBranch(ctx), false)
}

func (r *resolver) defaultBranch(ctx context.Context) string {
	branch, err := r.git.RemoteDefaultBranch(ctx, r.cfg.PrimaryURL)
	if err != nil || branch == "" {
		return r.cfg.DefaultBranch
	}

	return branch
}

func (r *resolver) remoteTags(ctx context.Context, url string) ([]string, error) {
	var tags []string

	err := r.cfg.Retry.Do(ctx, "list tags", func() error {
		var err error
		tags, err = r.git.RemoteTags(ctx, url)

		return err
	})

	return tags, err
}

func (r *resolver) fetchInto(ctx context.Context, spec m.VersionSpec, url string, mirror m.Mirror, ref, version string) (m.ResolvedSource, error) {
	dest := r.fs.JoinPath(string(r.cfg.WorkDir), "source")
	_ = r.fs.RemoveAll(dest)

	err := r.cfg.Retry.Do(ctx, "fetch "+ref, func() error {
		return r.git.FetchShallow(ctx, url, ref, dest)
	})
	if err != nil {
		return m.ResolvedSource{}, &m.AcquisitionError{Spec: spec, Err: err}
	}

	commit, err := r.git.HeadCommit(ctx, dest)
	if err != nil {
		return m.ResolvedSource{}, &m.AcquisitionError{Spec: spec, Err: err}
	}

	return m.ResolvedSource{
		Ref:     ref,
		Commit:  commit,
		Mirror:  mirror,
		Version: version,
		Tree:    dest,
	}, nil
}

// describeTree fills version facts from a freshly fetched tree. Facts are
// captured once, here, and never recomputed after mutation.
func (r *resolver) describeTree(ctx context.Context, ref string, mirror m.Mirror, dest m.Path) (m.ResolvedSource, error) {
	commit, err := r.git.HeadCommit(ctx, dest)
	if err != nil {
		return m.ResolvedSource{}, &m.AcquisitionError{Spec: m.ExplicitRef(ref), Err: err}
	}

	version, err := r.git.Describe(ctx, dest)
	if err != nil || version == "" {
		version = shortCommit(commit)
	}

	return m.ResolvedSource{
		Ref:     ref,
		Commit:  commit,
		Mirror:  mirror,
		Version: version,
		Tree:    dest,
	}, nil
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}

	return commit
}
