// Package model defines the data structures for the driver build pipeline.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Path represents a file system path.
type Path string

// VersionKind tags the variants of a VersionSpec.
type VersionKind string

const (
	// KindLatestRelease selects the highest release tag of the upstream.
	KindLatestRelease VersionKind = "latest-release"
	// KindStagingBranch selects the tip of a named staging branch.
	KindStagingBranch VersionKind = "staging-branch"
	// KindExplicitRef selects an explicit tag or commit.
	KindExplicitRef VersionKind = "explicit-ref"
	// KindLocalPath selects an already checked-out local tree.
	KindLocalPath VersionKind = "local-path"
	// KindLatestMain selects the tip of the upstream default branch.
	KindLatestMain VersionKind = "latest-main"
)

// VersionSpec is a symbolic version request. It is immutable once resolved.
type VersionSpec struct {
	Kind   VersionKind
	Branch string // staging branch name, KindStagingBranch only
	Ref    string // tag or commit, KindExplicitRef only
	Local  Path   // tree location, KindLocalPath only
}

// LatestRelease requests the highest upstream release tag.
func LatestRelease() VersionSpec {
	return VersionSpec{Kind: KindLatestRelease}
}

// StagingBranch requests the tip of the named branch.
func StagingBranch(name string) VersionSpec {
	return VersionSpec{Kind: KindStagingBranch, Branch: name}
}

// ExplicitRef requests an exact tag or commit.
func ExplicitRef(ref string) VersionSpec {
	return VersionSpec{Kind: KindExplicitRef, Ref: ref}
}

// LocalPath requests a local tree, bypassing the network entirely.
func LocalPath(path Path) VersionSpec {
	return VersionSpec{Kind: KindLocalPath, Local: path}
}

// LatestMain requests the tip of the upstream default branch.
func LatestMain() VersionSpec {
	return VersionSpec{Kind: KindLatestMain}
}

func (s VersionSpec) String() string {
	switch s.Kind {
	case KindStagingBranch:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Branch)
	case KindExplicitRef:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Ref)
	case KindLocalPath:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Local)
	default:
		return string(s.Kind)
	}
}

// Mirror identifies which source served the acquisition.
type Mirror string

// Available Mirror values.
const (
	MirrorPrimary  Mirror = "primary"
	MirrorFallback Mirror = "fallback"
	MirrorLocal    Mirror = "local"
)

// ResolvedSource is the concrete, version-pinned result of resolving a
// VersionSpec. It is created once per run and read-only thereafter; the
// packager consumes its facts verbatim.
type ResolvedSource struct {
	Ref     string
	Commit  string
	Mirror  Mirror
	Version string
	Tree    Path // working tree produced by the acquisition
}

// CompareReleaseTags orders two release tags numerically, field by field, so
// that "v1.10" sorts above "v1.9". Returns -1, 0 or 1.
func CompareReleaseTags(a, b string) int {
	fieldsA := splitReleaseTag(a)
	fieldsB := splitReleaseTag(b)

	for i := 0; i < len(fieldsA) || i < len(fieldsB); i++ {
		var na, nb int
		if i < len(fieldsA) {
			na = fieldsA[i]
		}

		if i < len(fieldsB) {
			nb = fieldsB[i]
		}

		if na != nb {
			if na < nb {
				return -1
			}

			return 1
		}
	}

	return 0
}

func splitReleaseTag(tag string) []int {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "v")

	parts := strings.FieldsFunc(tag, func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	})

	fields := make([]int, 0, len(parts))

	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			// Trailing non-numeric fields (rc1, beta) sort below releases.
			fields = append(fields, -1)
			continue
		}

		fields = append(fields, n)
	}

	return fields
}

// SanitizeVersion strips everything but digits and separators from a version
// string so it can be embedded in an artifact filename.
func SanitizeVersion(version string) string {
	var b strings.Builder

	for _, r := range strings.TrimPrefix(version, "v") {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		}
	}

	return strings.Trim(b.String(), ".-_")
}
