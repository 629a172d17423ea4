package scheduler

import (
	"context"
	"fmt"
	"os"

	"github.com/j1-labs/j1-integration-runtime/internal/execconfig"
	"github.com/j1-labs/j1-integration-runtime/internal/graphobject"
	"github.com/j1-labs/j1-integration-runtime/internal/objectstore"
	"github.com/j1-labs/j1-integration-runtime/internal/persistence"
	"github.com/j1-labs/j1-integration-runtime/internal/runlog"
)

// Scheduler owns one run of an InvocationConfig: validation, staging
// directory lifecycle, step execution, and summary finalization.
type Scheduler struct {
	cfg    InvocationConfig
	logger *runlog.Logger
	store  *objectstore.Store

	// executionOverrides is the execconfig.Load result, if
	// cfg.LoadExecutionConfig produced one; nil otherwise.
	executionOverrides map[string]execconfig.StepExecutionOverride
}

// New constructs a Scheduler for a single Run. It does not touch disk or
// start any work.
func New(cfg InvocationConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = runlog.New(nil, nil)
	}
	return &Scheduler{cfg: cfg, logger: logger}
}

// Run executes the full lifecycle described in spec.md §3: validation,
// staging reset, step execution in dependency order, summary finalization.
// A validation failure returns before any step has run and before the
// staging directory is touched.
func (s *Scheduler) Run(ctx context.Context) (*RunResult, error) {
	if s.cfg.LoadExecutionConfig != nil {
		cfg, err := s.cfg.LoadExecutionConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("scheduler: loading execution config: %w", err)
		}
		s.cfg.ExecutionConfig = cfg
		if overrides, ok := cfg.(map[string]execconfig.StepExecutionOverride); ok {
			s.executionOverrides = overrides
		}
	}

	startStates, graph, err := s.runValidation(ctx)
	if err != nil {
		return nil, err
	}

	root := s.cfg.Root
	if root == "" {
		root = persistence.DefaultRoot
	}
	if err := persistence.ResetRoot(root); err != nil {
		return nil, fmt.Errorf("scheduler: resetting staging root: %w", err)
	}

	compressionEnabled := os.Getenv(persistence.EnvCompression) != ""

	restoreSchemaMarker := setSchemaValidationMarker(s.cfg.EnableSchemaValidation)
	defer restoreSchemaMarker()

	s.store = objectstore.New(objectstore.Options{
		Root:                    root,
		CompressionEnabled:      compressionEnabled,
		FlushThreshold:          s.cfg.FlushThreshold,
		SchemaValidationEnabled: s.cfg.EnableSchemaValidation,
		Validator:               s.cfg.SchemaValidator,
		BeforeAddEntity:         s.cfg.BeforeAddEntity,
		BeforeAddRelationship:   s.cfg.BeforeAddRelationship,
	})

	results := s.runSteps(ctx, graph, startStates)

	if s.cfg.AfterExecution != nil {
		if err := s.cfg.AfterExecution(ctx, s.cfg.Instance); err != nil {
			s.logger.Error("afterExecution hook failed", "error", err)
		}
	}

	usage, err := persistence.DiskUsage(root)
	if err != nil {
		s.logger.Error("computing disk usage", "error", err)
	} else {
		s.logger.PublishMetric(runlog.Metric{Name: "disk-usage", Unit: "Bytes", Value: float64(usage)})
	}

	partials := graphobject.ComputePartialDatasets(results)

	if err := persistence.WriteSummary(root, persistence.Summary{
		IntegrationStepResults: results,
		Metadata:               persistence.SummaryMetadata{PartialDatasets: partials},
	}); err != nil {
		s.logger.Error("writing summary", "error", err)
	}

	return &RunResult{StepResults: results, PartialDatasets: partials}, nil
}

// setSchemaValidationMarker sets the process-wide ENABLE_GRAPH_OBJECT_SCHEMA_VALIDATION
// env var the object store's add path observes (spec.md §4.5 "Schema
// validation toggle") and returns a closure that restores the prior value,
// satisfying "the marker must be cleared between runs" (spec.md §5).
func setSchemaValidationMarker(enabled bool) func() {
	prior, wasSet := os.LookupEnv(objectstore.EnvSchemaValidation)
	if enabled {
		os.Setenv(objectstore.EnvSchemaValidation, "1")
	} else {
		os.Unsetenv(objectstore.EnvSchemaValidation)
	}
	return func() {
		if wasSet {
			os.Setenv(objectstore.EnvSchemaValidation, prior)
		} else {
			os.Unsetenv(objectstore.EnvSchemaValidation)
		}
	}
}
