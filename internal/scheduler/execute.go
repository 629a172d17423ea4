package scheduler

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/j1-labs/j1-integration-runtime/internal/depgraph"
	"github.com/j1-labs/j1-integration-runtime/internal/graphobject"
	"github.com/j1-labs/j1-integration-runtime/internal/ierr"
	"github.com/j1-labs/j1-integration-runtime/internal/jobstate"
)

// runSteps executes every step in graph, honoring dependency order and the
// bounded concurrency in s.cfg.Concurrency. Unlike a build-style DAG
// executor, a predecessor's failure does not cancel its dependents — per
// spec.md §4.5 "the step still runs," only demoting the dependent's
// eventual SUCCESS to PARTIAL_SUCCESS_DUE_TO_DEPENDENCY_FAILURE.
func (s *Scheduler) runSteps(ctx context.Context, graph *depgraph.Graph, startStates map[string]StepStartState) []graphobject.StepResult {
	byID := make(map[string]*graphobject.Step, len(s.cfg.IntegrationSteps))
	for _, step := range s.cfg.IntegrationSteps {
		byID[step.ID] = step
	}

	depCount := make(map[string]*atomic.Int32, len(byID))
	for id := range byID {
		deps, _ := graph.Dependencies(id)
		counter := &atomic.Int32{}
		counter.Store(int32(len(deps)))
		depCount[id] = counter
	}

	concurrency := s.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))

	var (
		wg        sync.WaitGroup
		resultsMu sync.Mutex
		results   = make(map[string]graphobject.StepResult, len(byID))
	)

	var dispatch func(id string)
	dispatch = func(id string) {
		wg.Add(1)
		go func() {
			defer wg.Done()

			result := s.runOneStep(ctx, sem, byID[id], startStates[id], graph, &resultsMu, results)

			resultsMu.Lock()
			results[id] = result
			resultsMu.Unlock()

			dependents, _ := graph.Dependents(id)
			for _, dep := range dependents {
				if depCount[dep].Add(-1) == 0 {
					dispatch(dep)
				}
			}
		}()
	}

	for _, root := range graph.Roots() {
		dispatch(root)
	}
	wg.Wait()

	ordered := make([]graphobject.StepResult, 0, len(s.cfg.IntegrationSteps))
	for _, step := range s.cfg.IntegrationSteps {
		resultsMu.Lock()
		r := results[step.ID]
		resultsMu.Unlock()
		ordered = append(ordered, r)
	}
	return ordered
}

// runOneStep decides and executes a single step's terminal state. Reading
// dependency results from the shared results map is safe without holding
// resultsMu across the whole function because by construction this step is
// only dispatched once every dependency's entry has already been written
// and the depCount decrement that triggered dispatch happens-after that
// write.
func (s *Scheduler) runOneStep(
	ctx context.Context,
	sem *semaphore.Weighted,
	step *graphobject.Step,
	startState StepStartState,
	graph *depgraph.Graph,
	resultsMu *sync.Mutex,
	results map[string]graphobject.StepResult,
) graphobject.StepResult {
	base := graphobject.StepResult{
		ID:            step.ID,
		Name:          step.Name,
		DeclaredTypes: step.DeclaredTypes(),
		PartialTypes:  step.PartialTypes(),
		DependsOn:     step.DependsOn,
	}

	if startState.Disabled {
		base.Status = graphobject.StatusDisabled
		base.EncounteredTypes = nil
		return base
	}

	if ctx.Err() != nil {
		base.Status = graphobject.StatusCancelled
		base.EncounteredTypes = nil
		return base
	}

	if err := sem.Acquire(context.Background(), 1); err != nil {
		base.Status = graphobject.StatusCancelled
		return base
	}
	defer sem.Release(1)

	predecessorFailed := false
	for _, dep := range step.DependsOn {
		resultsMu.Lock()
		depResult, ok := results[dep]
		resultsMu.Unlock()
		if ok && depResult.Status.IsFailureLike() {
			predecessorFailed = true
			break
		}
	}

	js := jobstate.New(step, s.store)
	stepLogger := s.logger.Child(map[string]any{"step": step.ID})
	stepCtx := &graphobject.StepContext{
		JobState:        js,
		Instance:        s.cfg.Instance,
		Logger:          stepLogger,
		ExecutionConfig: s.cfg.ExecutionConfig,
	}

	run := func() error {
		if step.ExecutionHandler == nil {
			return nil
		}
		return step.ExecutionHandler(ctx, stepCtx)
	}

	var err error
	if s.cfg.ExecutionHandlerWrapper != nil {
		err = s.cfg.ExecutionHandlerWrapper(ctx, run)
	} else {
		err = run()
	}

	if flushErr := s.store.FlushStep(step.ID); err == nil && flushErr != nil {
		err = ierr.New(ierr.KindStepHandler, flushErr)
	}

	base.EncounteredTypes = js.EncounteredTypes()

	switch {
	case err != nil:
		stepLogger.Error("step failed", "error", err)
		base.Status = graphobject.StatusFailure
	case predecessorFailed:
		base.Status = graphobject.StatusPartialSuccessDueToDependencyFailure
	default:
		base.Status = graphobject.StatusSuccess
	}

	return base
}
