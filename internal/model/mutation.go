package model

// MutationKind represents the category of mutation.
type MutationKind string

const (
	// MutationPatch represents a unified-diff file patch.
	MutationPatch MutationKind = "patch"
	// MutationSubstitution represents a pattern-based flag rewrite.
	MutationSubstitution MutationKind = "substitution"
	// MutationInjection represents structural code injection at an anchor.
	MutationInjection MutationKind = "injection"
)

// Multiplicity controls how many occurrences a substitution rewrites.
type Multiplicity string

// Available Multiplicity values.
const (
	ReplaceOne Multiplicity = "one"
	ReplaceAll Multiplicity = "all"
)

// Anchor is a located position in source text plus the identifiers captured
// around it, used as an insertion point for generated code.
type Anchor struct {
	Offset   int
	Captures map[string]string
}

// AnchorStrategy is a pure locator over source text. Strategies never fail
// with an error; a miss is simply ok=false, so an ordered cascade of
// strategies is the whole error-handling mechanism.
type AnchorStrategy struct {
	Name string
	// Terminal marks a reporting-only strategy: a match proves the file is
	// the right one but injection at the intended location is impossible,
	// so the engine records skipped instead of injecting elsewhere.
	Terminal bool
	Locate   func(src []byte) (Anchor, bool)
}

// BlockTemplate renders a generated code block from captured identifiers.
// It is a typed function rather than free-form concatenation so the contract
// is testable independent of anchor location.
type BlockTemplate func(captures map[string]string) (string, error)

// FilePatch is a unified-diff change applied relative to the tree root.
type FilePatch struct {
	Diff []byte
}

// TextSubstitution rewrites `<lvalue> = <anything>;` to `<lvalue> = <value>;`
// in every file matching Glob. A missing pattern is not an error; the
// substitution simply does not apply to that upstream version.
type TextSubstitution struct {
	Glob         string
	LValue       string
	Value        string
	Multiplicity Multiplicity
}

// StructuralInjection inserts a rendered block at the first anchor located by
// the strategy cascade. The rendered block must contain Marker so repeated
// runs short-circuit.
type StructuralInjection struct {
	Glob       string
	Strategies []AnchorStrategy
	Block      BlockTemplate
}

// Mutation is one named, idempotent unit of source-tree change. Exactly one
// of Patch, Substitution or Injection is set, matching Kind.
type Mutation struct {
	ID       string
	Kind     MutationKind
	Required bool
	// Marker is the per-mutation sentinel recorded in the mutated text; its
	// presence means "already applied".
	Marker string

	Patch        *FilePatch
	Substitution *TextSubstitution
	Injection    *StructuralInjection
}

// NewPatch builds a patch mutation.
func NewPatch(id string, diff []byte, required bool) Mutation {
	return Mutation{
		ID:       id,
		Kind:     MutationPatch,
		Required: required,
		Patch:    &FilePatch{Diff: diff},
	}
}

// NewSubstitution builds a substitution mutation. Substitutions are
// self-marking: the rewritten assignment is its own applied signature.
func NewSubstitution(id, glob, lvalue, value string, multiplicity Multiplicity, required bool) Mutation {
	return Mutation{
		ID:       id,
		Kind:     MutationSubstitution,
		Required: required,
		Substitution: &TextSubstitution{
			Glob:         glob,
			LValue:       lvalue,
			Value:        value,
			Multiplicity: multiplicity,
		},
	}
}

// NewInjection builds a structural injection mutation.
func NewInjection(id, glob, marker string, strategies []AnchorStrategy, block BlockTemplate, required bool) Mutation {
	return Mutation{
		ID:       id,
		Kind:     MutationInjection,
		Required: required,
		Marker:   marker,
		Injection: &StructuralInjection{
			Glob:       glob,
			Strategies: strategies,
			Block:      block,
		},
	}
}
