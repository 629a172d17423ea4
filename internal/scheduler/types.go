// Package scheduler implements the DAG-driven step executor of spec.md
// §4.5: it runs steps in dependency order with bounded concurrency,
// propagates failure status to dependents, and enforces per-step
// type-declaration invariants.
package scheduler

import (
	"context"

	"github.com/j1-labs/j1-integration-runtime/internal/graphobject"
	"github.com/j1-labs/j1-integration-runtime/internal/objectstore"
	"github.com/j1-labs/j1-integration-runtime/internal/runlog"
)

// StepStartState is the per-step result of getStepStartStates (spec.md
// §4.5).
type StepStartState struct {
	Disabled bool
}

// InvocationConfig is the embedder-supplied configuration described in
// spec.md §6. Every field is optional except IntegrationSteps.
type InvocationConfig struct {
	// Instance is opaque embedder state (e.g. API credentials) handed to
	// every step's StepContext.Instance.
	Instance any

	// ExecutionConfig is opaque embedder state handed to every step's
	// StepContext.ExecutionConfig, typically the result of
	// LoadExecutionConfig.
	ExecutionConfig any
	LoadExecutionConfig func(ctx context.Context) (any, error)

	ValidateInvocation func(ctx context.Context, instance any) error
	GetStepStartStates func(ctx context.Context, steps []*graphobject.Step) (map[string]StepStartState, error)

	IntegrationSteps []*graphobject.Step

	BeforeAddEntity       objectstore.BeforeAddEntityHook
	BeforeAddRelationship objectstore.BeforeAddRelationshipHook

	IngestionConfig any

	AfterExecution func(ctx context.Context, instance any) error

	// ExecutionHandlerWrapper, if set, wraps every step handler invocation.
	// It must call fn() exactly once.
	ExecutionHandlerWrapper func(ctx context.Context, fn func() error) error

	EnableSchemaValidation bool
	SchemaValidator        objectstore.SchemaValidator

	// Root is the staging directory root (default persistence.DefaultRoot).
	Root string
	// FlushThreshold overrides objectstore.DefaultFlushThreshold.
	FlushThreshold int
	// Concurrency bounds how many steps may run in-flight at once.
	// Per spec.md §5, a safe default is 1; any positive value is
	// permissible provided ordering guarantees hold.
	Concurrency int

	Logger *runlog.Logger
}

// RunResult is what Run returns on a validation/config success path: the
// per-step result vector plus partial-dataset metadata (spec.md §7
// "Propagation policy").
type RunResult struct {
	StepResults     []graphobject.StepResult
	PartialDatasets graphobject.PartialDatasetMetadata
}
