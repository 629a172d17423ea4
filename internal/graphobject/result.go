package graphobject

// StepResult is the outcome of running (or not running) one Step, as
// described in spec.md §3.
type StepResult struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	DeclaredTypes    []string   `json:"declaredTypes"`
	PartialTypes     []string   `json:"partialTypes"`
	EncounteredTypes []string   `json:"encounteredTypes"`
	DependsOn        []string   `json:"dependsOn,omitempty"`
	Status           StepStatus `json:"status"`
}

// PartialDatasetMetadata is the union, across all step results, of:
// declaredTypes of FAILED steps, declaredTypes of
// PARTIAL_SUCCESS_DUE_TO_DEPENDENCY_FAILURE steps, and partialTypes of any
// step regardless of status.
type PartialDatasetMetadata struct {
	Types []string `json:"types"`
}

// ComputePartialDatasets implements the union definition of spec.md §3 /
// §4.5. Ordering preserves the order results are supplied in (per-step
// encounter order), deduplicated; it carries no semantic meaning per the
// spec, only determinism.
func ComputePartialDatasets(results []StepResult) PartialDatasetMetadata {
	seen := make(map[string]bool)
	var types []string
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}

	for _, r := range results {
		for _, t := range r.PartialTypes {
			add(t)
		}
		if r.Status == StatusFailure || r.Status == StatusPartialSuccessDueToDependencyFailure {
			for _, t := range r.DeclaredTypes {
				add(t)
			}
		}
	}

	return PartialDatasetMetadata{Types: types}
}
