package adapter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

// ApplyOptions selects which git-apply strategy to run.
type ApplyOptions struct {
	// Check performs a dry run without touching the tree.
	Check bool
	// Reverse tests the patch backwards; a clean reverse-check means the
	// patch is already applied.
	Reverse bool
	// ThreeWay falls back to a three-way merge using blob info from the
	// patch headers.
	ThreeWay bool
}

// GitAdapter is the version-control collaborator. The pipeline depends only
// on these operations, not on any particular VCS implementation.
type GitAdapter interface {
	// FetchShallow materializes exactly one ref at depth 1 into dest.
	FetchShallow(ctx context.Context, url, ref string, dest m.Path) error

	// FetchFull materializes a ref with full history into dest. Used as the
	// escalation when a shallow fetch cannot find an explicit commit.
	FetchFull(ctx context.Context, url, ref string, dest m.Path) error

	// RemoteTags lists tag names on the remote without cloning.
	RemoteTags(ctx context.Context, url string) ([]string, error)

	// RemoteDefaultBranch reports the branch HEAD points at on the remote.
	RemoteDefaultBranch(ctx context.Context, url string) (string, error)

	// HeadCommit returns the full commit id of the tree's HEAD.
	HeadCommit(ctx context.Context, tree m.Path) (string, error)

	// Describe returns a human-readable version for the tree's HEAD
	// (nearest tag plus distance), or an error when no tag is reachable.
	Describe(ctx context.Context, tree m.Path) (string, error)

	// Apply runs the patch against the tree with the selected strategy.
	Apply(ctx context.Context, tree m.Path, diff []byte, opts ApplyOptions) error
}

// LocalGitAdapter shells out to the git binary.
type LocalGitAdapter struct{}

// NewLocalGitAdapter constructs a LocalGitAdapter.
func NewLocalGitAdapter() *LocalGitAdapter {
	return &LocalGitAdapter{}
}

// FetchShallow fetches a single ref at depth 1. init+fetch instead of clone
// so the same path works for branches, tags and raw commit ids.
func (a *LocalGitAdapter) FetchShallow(ctx context.Context, url, ref string, dest m.Path) error {
	return a.fetch(ctx, url, ref, dest, true)
}

// FetchFull fetches a single ref with complete history.
func (a *LocalGitAdapter) FetchFull(ctx context.Context, url, ref string, dest m.Path) error {
	return a.fetch(ctx, url, ref, dest, false)
}

func (a *LocalGitAdapter) fetch(ctx context.Context, url, ref string, dest m.Path, shallow bool) error {
	if err := os.MkdirAll(string(dest), 0o750); err != nil {
		return err
	}

	if _, err := a.run(ctx, dest, "init", "--quiet"); err != nil {
		return err
	}

	fetchArgs := []string{"fetch", "--quiet"}
	if shallow {
		fetchArgs = append(fetchArgs, "--depth", "1")
	}

	fetchArgs = append(fetchArgs, url, ref)

	if _, err := a.run(ctx, dest, fetchArgs...); err != nil {
		return err
	}

	_, err := a.run(ctx, dest, "checkout", "--quiet", "--force", "FETCH_HEAD")

	return err
}

// RemoteTags lists tags via ls-remote, already stripped of refs/tags/ and
// peeled ^{} suffixes.
func (a *LocalGitAdapter) RemoteTags(ctx context.Context, url string) ([]string, error) {
	out, err := a.run(ctx, "", "ls-remote", "--tags", "--refs", url)
	if err != nil {
		return nil, err
	}

	var tags []string

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}

		tags = append(tags, strings.TrimPrefix(fields[1], "refs/tags/"))
	}

	return tags, nil
}

// RemoteDefaultBranch resolves the symbolic HEAD of the remote.
func (a *LocalGitAdapter) RemoteDefaultBranch(ctx context.Context, url string) (string, error) {
	out, err := a.run(ctx, "", "ls-remote", "--symref", url, "HEAD")
	if err != nil {
		return "", err
	}

	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "ref:") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) >= 2 {
			return strings.TrimPrefix(fields[1], "refs/heads/"), nil
		}
	}

	return "", fmt.Errorf("no symref HEAD in ls-remote output for %s", url)
}

// HeadCommit returns the commit id at HEAD.
func (a *LocalGitAdapter) HeadCommit(ctx context.Context, tree m.Path) (string, error) {
	out, err := a.run(ctx, tree, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out), nil
}

// Describe returns `git describe --tags --always` for the tree.
func (a *LocalGitAdapter) Describe(ctx context.Context, tree m.Path) (string, error) {
	out, err := a.run(ctx, tree, "describe", "--tags", "--always")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out), nil
}

// Apply feeds the diff to git apply with the selected strategy flags.
func (a *LocalGitAdapter) Apply(ctx context.Context, tree m.Path, diff []byte, opts ApplyOptions) error {
	args := []string{"apply", "--whitespace=nowarn"}

	if opts.Check {
		args = append(args, "--check")
	}

	if opts.Reverse {
		args = append(args, "--reverse")
	}

	if opts.ThreeWay {
		args = append(args, "--3way")
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = string(tree)
	cmd.Stdin = bytes.NewReader(diff)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	return nil
}

// run executes git with the given working directory and returns stdout.
func (a *LocalGitAdapter) run(ctx context.Context, dir m.Path, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = string(dir)
	}

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}
