package persistence

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/j1-labs/j1-integration-runtime/internal/graphobject"
)

// Summary is the shape written to summary.json on finalization (spec.md
// §3, §4.2).
type Summary struct {
	IntegrationStepResults []graphobject.StepResult `json:"integrationStepResults"`
	Metadata               SummaryMetadata           `json:"metadata"`
}

// SummaryMetadata wraps PartialDatasetMetadata under the "metadata" key the
// wire shape requires.
type SummaryMetadata struct {
	PartialDatasets graphobject.PartialDatasetMetadata `json:"partialDatasets"`
}

// WriteSummary serializes summary as JSON to root/summary.json.
func WriteSummary(root string, summary Summary) error {
	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: marshaling summary: %w", err)
	}
	if err := os.WriteFile(summaryPath(root), payload, 0o644); err != nil {
		return fmt.Errorf("persistence: writing summary: %w", err)
	}
	return nil
}

// ReadSummary reads and parses root/summary.json.
func ReadSummary(root string) (Summary, error) {
	raw, err := os.ReadFile(summaryPath(root))
	if err != nil {
		return Summary{}, fmt.Errorf("persistence: reading summary: %w", err)
	}
	var summary Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return Summary{}, fmt.Errorf("persistence: decoding summary: %w", err)
	}
	return summary, nil
}
