// Package execconfig implements the optional per-step execution overlay of
// SPEC_FULL.md §4.7: a single execution.hcl file next to an integration,
// decoded the way the teacher's internal/model.Grid decodes a grid file
// (hclparse.Parser + gohcl.DecodeBody), yielding per-step tuning the
// embedder can fold into getStepStartStates/InvocationConfig.
package execconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// FileName is the conventional name Load looks for within a directory.
const FileName = "execution.hcl"

// StepExecutionOverride is the decoded per-step overlay. Disabled merges
// into, but never overrides, an explicit getStepStartStates entry; an
// absent execution.hcl is not an error.
type StepExecutionOverride struct {
	Disabled    bool
	BatchSize   int
	Concurrency int
}

type hclExecutionFile struct {
	Steps []*hclStepBlock `hcl:"step,block"`
}

type hclStepBlock struct {
	ID          string `hcl:"id,label"`
	Disabled    *bool  `hcl:"disabled,optional"`
	BatchSize   *int   `hcl:"batch_size,optional"`
	Concurrency *int   `hcl:"concurrency,optional"`
}

// Load reads dir/execution.hcl, if present, and decodes it into a map keyed
// by step ID. A missing file returns an empty, non-nil map and no error.
func Load(dir string) (map[string]StepExecutionOverride, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]StepExecutionOverride{}, nil
	}

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("execconfig: parsing %s: %w", path, diagsError(diags))
	}

	var parsed hclExecutionFile
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("execconfig: decoding %s: %w", path, diagsError(diags))
	}

	overrides := make(map[string]StepExecutionOverride, len(parsed.Steps))
	for _, step := range parsed.Steps {
		override := StepExecutionOverride{}
		if step.Disabled != nil {
			override.Disabled = *step.Disabled
		}
		if step.BatchSize != nil {
			override.BatchSize = *step.BatchSize
		}
		if step.Concurrency != nil {
			override.Concurrency = *step.Concurrency
		}
		overrides[step.ID] = override
	}
	return overrides, nil
}

func diagsError(diags hcl.Diagnostics) error {
	return errors.New(diags.Error())
}
