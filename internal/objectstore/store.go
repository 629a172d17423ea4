// Package objectstore implements the buffered, type-indexed in-memory
// staging layer steps write through (spec.md §4.1). It deduplicates by
// _key across the whole run, flushes overflowing buffers to disk through
// internal/persistence, and answers findEntity/iterateEntities queries by
// combining whatever is still buffered with whatever has already been
// flushed.
package objectstore

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/j1-labs/j1-integration-runtime/internal/ctxlog"
	"github.com/j1-labs/j1-integration-runtime/internal/graphobject"
	"github.com/j1-labs/j1-integration-runtime/internal/ierr"
	"github.com/j1-labs/j1-integration-runtime/internal/persistence"
)

// DefaultFlushThreshold is the pendingEntities/pendingRelationships count
// that triggers an automatic flush (spec.md §4.1).
const DefaultFlushThreshold = 500

// EnvSchemaValidation is the process-wide marker the store's add path
// observes when Options.SchemaValidationEnabled is left unset (spec.md §6,
// Design Note "Global env-var coupling" — the scheduler sets this only as
// a default; passing Options.SchemaValidationEnabled explicitly is the
// preferred, race-free path).
const EnvSchemaValidation = "ENABLE_GRAPH_OBJECT_SCHEMA_VALIDATION"

// Options configures a new Store.
type Options struct {
	Root                    string
	CompressionEnabled      bool
	FlushThreshold          int
	SchemaValidationEnabled bool
	Validator               SchemaValidator
	BeforeAddEntity         BeforeAddEntityHook
	BeforeAddRelationship   BeforeAddRelationshipHook
}

// Store is the buffered, type-indexed object store.
type Store struct {
	mu sync.Mutex

	writer                  *persistence.Writer
	root                    string
	threshold               int
	schemaValidationEnabled bool
	validator               SchemaValidator
	beforeAddEntity         BeforeAddEntityHook
	beforeAddRelationship   BeforeAddRelationshipHook

	pendingEntitiesByStep      map[string][]graphobject.Entity
	pendingRelationshipsByStep map[string][]graphobject.Relationship

	entityKeyToType       map[string]string
	relationshipKeyToType map[string]string

	flushedEntityTypes      map[string]bool
	flushedRelationshipTypes map[string]bool
}

// New constructs a Store. The caller is responsible for having already
// called persistence.ResetRoot for a fresh run.
func New(opts Options) *Store {
	threshold := opts.FlushThreshold
	if threshold <= 0 {
		threshold = DefaultFlushThreshold
	}
	validator := opts.Validator
	if validator == nil {
		validator = noopValidator{}
	}
	schemaValidation := opts.SchemaValidationEnabled || os.Getenv(EnvSchemaValidation) != ""
	return &Store{
		writer:                     persistence.NewWriter(opts.Root, opts.CompressionEnabled),
		root:                       opts.Root,
		threshold:                  threshold,
		schemaValidationEnabled:    schemaValidation,
		validator:                  validator,
		beforeAddEntity:            opts.BeforeAddEntity,
		beforeAddRelationship:      opts.BeforeAddRelationship,
		pendingEntitiesByStep:      make(map[string][]graphobject.Entity),
		pendingRelationshipsByStep: make(map[string][]graphobject.Relationship),
		entityKeyToType:            make(map[string]string),
		relationshipKeyToType:      make(map[string]string),
		flushedEntityTypes:         make(map[string]bool),
		flushedRelationshipTypes:   make(map[string]bool),
	}
}

// AddEntity admits a single entity, buffered under stepID. It fails with a
// DUPLICATE_KEY error if another entity with e.Key() already exists
// anywhere in the run.
func (s *Store) AddEntity(ctx context.Context, stepID string, e graphobject.Entity) (graphobject.Entity, error) {
	if s.beforeAddEntity != nil {
		replaced, err := s.beforeAddEntity(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("objectstore: beforeAddEntity hook: %w", err)
		}
		e = replaced
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existingType, ok := s.entityKeyToType[e.Key()]; ok {
		s.mu.Unlock()
		return nil, ierr.New(ierr.KindDuplicateKey, fmt.Errorf("entity key %q already used by an entity of type %q", e.Key(), existingType))
	}
	s.entityKeyToType[e.Key()] = e.Type()
	s.pendingEntitiesByStep[stepID] = append(s.pendingEntitiesByStep[stepID], e)
	pending := len(s.pendingEntitiesByStep[stepID])
	s.mu.Unlock()

	if s.schemaValidationEnabled {
		if err := s.validator.ValidateEntity(ctx, e); err != nil {
			ctxlog.FromContext(ctx).Warn("entity failed schema validation; admitting anyway", "key", e.Key(), "type", e.Type(), "error", err)
		}
	}

	if pending >= s.threshold {
		if err := s.flushEntities(stepID); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// AddEntities admits entities in order. The first duplicate aborts the
// batch; entities preceding it remain admitted (spec.md §4.1).
func (s *Store) AddEntities(ctx context.Context, stepID string, entities []graphobject.Entity) ([]graphobject.Entity, error) {
	added := make([]graphobject.Entity, 0, len(entities))
	for _, e := range entities {
		admitted, err := s.AddEntity(ctx, stepID, e)
		if err != nil {
			return added, err
		}
		added = append(added, admitted)
	}
	return added, nil
}

// AddRelationship is the relationship equivalent of AddEntity.
func (s *Store) AddRelationship(ctx context.Context, stepID string, r graphobject.Relationship) (graphobject.Relationship, error) {
	if s.beforeAddRelationship != nil {
		replaced, err := s.beforeAddRelationship(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("objectstore: beforeAddRelationship hook: %w", err)
		}
		r = replaced
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existingType, ok := s.relationshipKeyToType[r.Key()]; ok {
		s.mu.Unlock()
		return nil, ierr.New(ierr.KindDuplicateKey, fmt.Errorf("relationship key %q already used by a relationship of type %q", r.Key(), existingType))
	}
	s.relationshipKeyToType[r.Key()] = r.Type()
	s.pendingRelationshipsByStep[stepID] = append(s.pendingRelationshipsByStep[stepID], r)
	pending := len(s.pendingRelationshipsByStep[stepID])
	s.mu.Unlock()

	if s.schemaValidationEnabled {
		if err := s.validator.ValidateRelationship(ctx, r); err != nil {
			ctxlog.FromContext(ctx).Warn("relationship failed schema validation; admitting anyway", "key", r.Key(), "type", r.Type(), "error", err)
		}
	}

	if pending >= s.threshold {
		if err := s.flushRelationships(stepID); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// AddRelationships is the relationship equivalent of AddEntities.
func (s *Store) AddRelationships(ctx context.Context, stepID string, rels []graphobject.Relationship) ([]graphobject.Relationship, error) {
	added := make([]graphobject.Relationship, 0, len(rels))
	for _, r := range rels {
		admitted, err := s.AddRelationship(ctx, stepID, r)
		if err != nil {
			return added, err
		}
		added = append(added, admitted)
	}
	return added, nil
}

// FindEntity consults the in-memory buffers first (across all steps), then
// the on-disk index if the owning type partition has already been
// flushed.
func (s *Store) FindEntity(ctx context.Context, key string) (graphobject.Entity, bool, error) {
	s.mu.Lock()
	entityType, known := s.entityKeyToType[key]
	if !known {
		s.mu.Unlock()
		return nil, false, nil
	}
	for _, step := range sortedKeys(s.pendingEntitiesByStep) {
		for _, e := range s.pendingEntitiesByStep[step] {
			if e.Key() == key {
				s.mu.Unlock()
				return e, true, nil
			}
		}
	}
	flushed := s.flushedEntityTypes[entityType]
	s.mu.Unlock()

	if !flushed {
		return nil, false, nil
	}
	return persistence.FindEntityOnDisk(s.root, entityType, key)
}

// IterateEntities yields every entity of entityType ever added, including
// those already flushed: flushed entities first (file visitation order
// mirrors flush order), then whatever remains buffered, grouped by step ID
// in sorted order and in insertion order within each step. The order is
// deterministic for a given sequence of adds and flushes; when several
// steps' buffers hold the type at once, it is not overall insertion order.
func (s *Store) IterateEntities(ctx context.Context, entityType string, fn func(graphobject.Entity) error) error {
	s.mu.Lock()
	flushed := s.flushedEntityTypes[entityType]
	var buffered []graphobject.Entity
	for _, step := range sortedKeys(s.pendingEntitiesByStep) {
		for _, e := range s.pendingEntitiesByStep[step] {
			if e.Type() == entityType {
				buffered = append(buffered, e)
			}
		}
	}
	s.mu.Unlock()

	if flushed {
		if err := persistence.IterateIndexedEntities(s.root, entityType, fn); err != nil {
			return err
		}
	}
	for _, e := range buffered {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// IterateRelationships is the relationship equivalent of IterateEntities.
func (s *Store) IterateRelationships(ctx context.Context, relType string, fn func(graphobject.Relationship) error) error {
	s.mu.Lock()
	flushed := s.flushedRelationshipTypes[relType]
	var buffered []graphobject.Relationship
	for _, step := range sortedKeys(s.pendingRelationshipsByStep) {
		for _, r := range s.pendingRelationshipsByStep[step] {
			if r.Type() == relType {
				buffered = append(buffered, r)
			}
		}
	}
	s.mu.Unlock()

	if flushed {
		if err := persistence.IterateIndexedRelationships(s.root, relType, fn); err != nil {
			return err
		}
	}
	for _, r := range buffered {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// FlushStep forces a final flush of whatever remains buffered for stepID,
// regardless of threshold. Called once at step completion (spec.md §4.1).
func (s *Store) FlushStep(stepID string) error {
	if err := s.flushEntities(stepID); err != nil {
		return err
	}
	return s.flushRelationships(stepID)
}

func (s *Store) flushEntities(stepID string) error {
	s.mu.Lock()
	batch := s.pendingEntitiesByStep[stepID]
	delete(s.pendingEntitiesByStep, stepID)
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if _, err := s.writer.FlushEntities(stepID, batch); err != nil {
		return fmt.Errorf("objectstore: flushing entities for step %q: %w", stepID, err)
	}

	s.mu.Lock()
	for _, e := range batch {
		s.flushedEntityTypes[e.Type()] = true
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) flushRelationships(stepID string) error {
	s.mu.Lock()
	batch := s.pendingRelationshipsByStep[stepID]
	delete(s.pendingRelationshipsByStep, stepID)
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if _, err := s.writer.FlushRelationships(stepID, batch); err != nil {
		return fmt.Errorf("objectstore: flushing relationships for step %q: %w", stepID, err)
	}

	s.mu.Lock()
	for _, r := range batch {
		s.flushedRelationshipTypes[r.Type()] = true
	}
	s.mu.Unlock()
	return nil
}

// sortedKeys returns the keys of a per-step buffer map in deterministic
// order, so iteration/lookup across steps doesn't depend on Go's
// randomized map ordering.
func sortedKeys[V any](m map[string][]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
