package model

// Outcome classifies the result of applying one mutation.
type Outcome string

// Available Outcome values.
const (
	// OutcomeApplied indicates the mutation changed the tree.
	OutcomeApplied Outcome = "applied"
	// OutcomeAlreadyApplied indicates the mutation's marker or post-state
	// was already present and nothing was changed.
	OutcomeAlreadyApplied Outcome = "already_applied"
	// OutcomeSkipped indicates the mutation does not apply to this upstream
	// version (pattern absent, no anchor matched). Not an error.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed indicates every strategy for the mutation failed.
	OutcomeFailed Outcome = "failed"
)

// MutationResult records the outcome of a single mutation.
type MutationResult struct {
	MutationID string
	Kind       MutationKind
	Required   bool
	Outcome    Outcome
	// Detail carries human-readable context: which file, how many
	// occurrences, which strategies were tried.
	Detail string
	// Strategy names the anchor strategy that matched, injections only.
	Strategy string
	// Fuzzy flags a patch that needed the three-way fallback.
	Fuzzy bool
}

// MutationReport aggregates the outcomes of one pipeline run. It is the only
// artifact later stages consult to decide whether to continue.
type MutationReport struct {
	Results []MutationResult
}

// Add appends a result.
func (r *MutationReport) Add(result MutationResult) {
	r.Results = append(r.Results, result)
}

// Merge appends all results of another report.
func (r *MutationReport) Merge(other *MutationReport) {
	if other == nil {
		return
	}

	r.Results = append(r.Results, other.Results...)
}

// Counts tallies results per outcome.
func (r *MutationReport) Counts() map[Outcome]int {
	counts := make(map[Outcome]int, 4)
	for _, result := range r.Results {
		counts[result.Outcome]++
	}

	return counts
}

// RequiredFailure returns the first failed required mutation, if any.
func (r *MutationReport) RequiredFailure() (MutationResult, bool) {
	for _, result := range r.Results {
		if result.Outcome == OutcomeFailed && result.Required {
			return result, true
		}
	}

	return MutationResult{}, false
}

// PlanEntry describes whether one mutation would apply to a tree. Produced by
// the dry-run planner, consumed by the UI.
type PlanEntry struct {
	MutationID string
	Kind       MutationKind
	Applicable bool
	Reason     string
}
