package scheduler

import (
	"context"
	"fmt"

	"github.com/j1-labs/j1-integration-runtime/internal/depgraph"
	"github.com/j1-labs/j1-integration-runtime/internal/graphobject"
	"github.com/j1-labs/j1-integration-runtime/internal/ierr"
)

// runValidation is the validation phase of spec.md §4.5: validateInvocation,
// then getStepStartStates completeness, then dependency-graph construction
// and cycle detection. It runs once, before any step executes; any failure
// aborts the run with no step results written.
func (s *Scheduler) runValidation(ctx context.Context) (map[string]StepStartState, *depgraph.Graph, error) {
	if s.cfg.ValidateInvocation != nil {
		if err := s.cfg.ValidateInvocation(ctx, s.cfg.Instance); err != nil {
			s.logger.ValidationFailure(err)
			return nil, nil, ierr.New(ierr.KindValidation, err)
		}
	}

	startStates, err := s.resolveStartStates(ctx)
	if err != nil {
		return nil, nil, err
	}

	graph, err := s.buildGraph()
	if err != nil {
		return nil, nil, err
	}

	return startStates, graph, nil
}

func (s *Scheduler) resolveStartStates(ctx context.Context) (map[string]StepStartState, error) {
	if s.cfg.GetStepStartStates == nil {
		// With no embedder-supplied decision function, execconfig's
		// disabled overrides become the default source instead of
		// "everyone enabled" (SPEC_FULL.md §4.7).
		states := make(map[string]StepStartState, len(s.cfg.IntegrationSteps))
		for _, step := range s.cfg.IntegrationSteps {
			state := StepStartState{}
			if override, ok := s.executionOverrides[step.ID]; ok {
				state.Disabled = override.Disabled
			}
			states[step.ID] = state
		}
		return states, nil
	}

	states, err := s.cfg.GetStepStartStates(ctx, s.cfg.IntegrationSteps)
	if err != nil {
		return nil, ierr.New(ierr.KindConfig, fmt.Errorf("getStepStartStates: %w", err))
	}

	for _, step := range s.cfg.IntegrationSteps {
		if _, ok := states[step.ID]; !ok {
			return nil, ierr.New(ierr.KindStartStates, fmt.Errorf("missing start state for step %q", step.ID))
		}
	}
	return states, nil
}

func (s *Scheduler) buildGraph() (*depgraph.Graph, error) {
	graph := depgraph.New()
	byID := make(map[string]*graphobject.Step, len(s.cfg.IntegrationSteps))

	for _, step := range s.cfg.IntegrationSteps {
		graph.AddNode(step.ID)
		byID[step.ID] = step
	}

	for _, step := range s.cfg.IntegrationSteps {
		for _, dep := range step.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, ierr.New(ierr.KindConfig, fmt.Errorf("step %q depends on unknown step %q", step.ID, dep))
			}
			if err := graph.AddEdge(dep, step.ID); err != nil {
				return nil, ierr.New(ierr.KindConfig, err)
			}
		}
	}

	if err := graph.DetectCycles(); err != nil {
		return nil, err
	}
	return graph, nil
}
