// Package jobstate implements the per-step facade over the object store
// described in spec.md §4.3: it routes writes into the owning step's
// buffer, records encounteredTypes, and enforces the declared-type
// invariant (I3) as a non-fatal diagnostic.
package jobstate

import (
	"context"
	"sync"

	"github.com/j1-labs/j1-integration-runtime/internal/ctxlog"
	"github.com/j1-labs/j1-integration-runtime/internal/graphobject"
	"github.com/j1-labs/j1-integration-runtime/internal/objectstore"
)

// Store is the subset of *objectstore.Store a JobState needs. Defined as
// an interface so tests can substitute a fake (see jobstate_test.go).
type Store interface {
	AddEntity(ctx context.Context, stepID string, e graphobject.Entity) (graphobject.Entity, error)
	AddEntities(ctx context.Context, stepID string, es []graphobject.Entity) ([]graphobject.Entity, error)
	AddRelationship(ctx context.Context, stepID string, r graphobject.Relationship) (graphobject.Relationship, error)
	AddRelationships(ctx context.Context, stepID string, rs []graphobject.Relationship) ([]graphobject.Relationship, error)
	FindEntity(ctx context.Context, key string) (graphobject.Entity, bool, error)
	IterateEntities(ctx context.Context, entityType string, fn func(graphobject.Entity) error) error
	IterateRelationships(ctx context.Context, relType string, fn func(graphobject.Relationship) error) error
}

var _ Store = (*objectstore.Store)(nil)

// JobState is the facade a running step's handler interacts with. It
// satisfies graphobject.JobState.
type JobState struct {
	step  *graphobject.Step
	store Store

	mu               sync.Mutex
	encounteredTypes map[string]bool
}

// New constructs a JobState for step, backed by store.
func New(step *graphobject.Step, store Store) *JobState {
	return &JobState{
		step:             step,
		store:            store,
		encounteredTypes: make(map[string]bool),
	}
}

// EncounteredTypes returns the set of _type values this JobState has
// successfully written, satisfying spec.md I4 ("a step's encounteredTypes
// at completion is exactly the set of _types it wrote").
func (j *JobState) EncounteredTypes() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, 0, len(j.encounteredTypes))
	for t := range j.encounteredTypes {
		out = append(out, t)
	}
	return out
}

func (j *JobState) recordEncountered(t string) {
	j.mu.Lock()
	j.encounteredTypes[t] = true
	j.mu.Unlock()
}

// checkDeclared enforces I3: an undeclared type is a warning, not a
// rejection — the object is still admitted.
func (j *JobState) checkDeclared(ctx context.Context, t string) {
	if j.step.DeclaresType(t) {
		return
	}
	ctxlog.FromContext(ctx).Warn("step wrote an undeclared type", "step", j.step.ID, "type", t)
}

func (j *JobState) AddEntity(ctx context.Context, e graphobject.Entity) (graphobject.Entity, error) {
	j.checkDeclared(ctx, e.Type())
	added, err := j.store.AddEntity(ctx, j.step.ID, e)
	if err != nil {
		return nil, err
	}
	j.recordEncountered(added.Type())
	return added, nil
}

func (j *JobState) AddEntities(ctx context.Context, es []graphobject.Entity) ([]graphobject.Entity, error) {
	for _, e := range es {
		j.checkDeclared(ctx, e.Type())
	}
	added, err := j.store.AddEntities(ctx, j.step.ID, es)
	for _, e := range added {
		j.recordEncountered(e.Type())
	}
	return added, err
}

func (j *JobState) AddRelationship(ctx context.Context, r graphobject.Relationship) (graphobject.Relationship, error) {
	j.checkDeclared(ctx, r.Type())
	added, err := j.store.AddRelationship(ctx, j.step.ID, r)
	if err != nil {
		return nil, err
	}
	j.recordEncountered(added.Type())
	return added, nil
}

func (j *JobState) AddRelationships(ctx context.Context, rs []graphobject.Relationship) ([]graphobject.Relationship, error) {
	for _, r := range rs {
		j.checkDeclared(ctx, r.Type())
	}
	added, err := j.store.AddRelationships(ctx, j.step.ID, rs)
	for _, r := range added {
		j.recordEncountered(r.Type())
	}
	return added, err
}

// FindEntity spans all prior steps, not just this one — a dependent step
// can read what a dependency produced (spec.md §4.3d).
func (j *JobState) FindEntity(ctx context.Context, key string) (graphobject.Entity, bool, error) {
	return j.store.FindEntity(ctx, key)
}

func (j *JobState) IterateEntities(ctx context.Context, entityType string, fn func(graphobject.Entity) error) error {
	return j.store.IterateEntities(ctx, entityType, fn)
}

func (j *JobState) IterateRelationships(ctx context.Context, relType string, fn func(graphobject.Relationship) error) error {
	return j.store.IterateRelationships(ctx, relType, fn)
}
