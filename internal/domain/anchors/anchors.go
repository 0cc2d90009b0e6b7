// Package anchors provides the location strategies used by the structural
// injection engine. Each strategy is a pure function over source text: it
// either yields an insertion offset plus captured identifiers, or reports a
// miss. Strategies never return errors; the ordered cascade built from them
// is the error-handling mechanism.
package anchors

import (
	"bytes"
	"regexp"

	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

// NewDeclaration matches a function or record declaration with a type-aware
// pattern and anchors inside its body, right after the opening brace. Named
// capture groups in the pattern become the anchor captures.
func NewDeclaration(name, pattern string) m.AnchorStrategy {
	re := regexp.MustCompile(pattern)

	return m.AnchorStrategy{
		Name: name,
		Locate: func(src []byte) (m.Anchor, bool) {
			loc := re.FindSubmatchIndex(src)
			if loc == nil {
				return m.Anchor{}, false
			}

			offset, ok := afterOpeningBrace(src, loc[1])
			if !ok {
				return m.Anchor{}, false
			}

			return m.Anchor{
				Offset:   offset,
				Captures: captureGroups(re, src, loc),
			}, true
		},
	}
}

// NewSibling anchors after the last occurrence of a recognizable sibling
// statement in the same functional area, inferring identifiers from that
// statement's named capture groups.
func NewSibling(name, pattern string) m.AnchorStrategy {
	re := regexp.MustCompile(pattern)

	return m.AnchorStrategy{
		Name: name,
		Locate: func(src []byte) (m.Anchor, bool) {
			locs := re.FindAllSubmatchIndex(src, -1)
			if len(locs) == 0 {
				return m.Anchor{}, false
			}

			loc := locs[len(locs)-1]

			return m.Anchor{
				Offset:   afterLine(src, loc[1]),
				Captures: captureGroups(re, src, loc),
			}, true
		},
	}
}

// NewFileMarker is the terminal fallback: it matches a known-stable literal
// elsewhere in the file, proving the file is the intended one even though the
// real anchor is gone. The engine never injects at this anchor; a terminal
// match is reported as a skipped outcome.
func NewFileMarker(name, literal string) m.AnchorStrategy {
	needle := []byte(literal)

	return m.AnchorStrategy{
		Name:     name,
		Terminal: true,
		Locate: func(src []byte) (m.Anchor, bool) {
			idx := bytes.Index(src, needle)
			if idx < 0 {
				return m.Anchor{}, false
			}

			return m.Anchor{Offset: idx}, true
		},
	}
}

// afterOpeningBrace finds the first '{' at or after from and returns the
// offset just past its line.
func afterOpeningBrace(src []byte, from int) (int, bool) {
	idx := bytes.IndexByte(src[from:], '{')
	if idx < 0 {
		return 0, false
	}

	return afterLine(src, from+idx+1), true
}

// afterLine returns the offset just past the newline following from, or
// len(src) when the text ends first.
func afterLine(src []byte, from int) int {
	idx := bytes.IndexByte(src[from:], '\n')
	if idx < 0 {
		return len(src)
	}

	return from + idx + 1
}

// captureGroups extracts named submatches into the anchor capture set.
func captureGroups(re *regexp.Regexp, src []byte, loc []int) map[string]string {
	captures := make(map[string]string)

	for i, groupName := range re.SubexpNames() {
		if groupName == "" || 2*i+1 >= len(loc) {
			continue
		}

		start, end := loc[2*i], loc[2*i+1]
		if start < 0 || end < 0 {
			continue
		}

		captures[groupName] = string(src[start:end])
	}

	return captures
}
