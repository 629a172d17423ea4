package objectstore

import (
	"context"

	"github.com/j1-labs/j1-integration-runtime/internal/graphobject"
)

// BeforeAddEntityHook lets the embedder rewrite (or reject) an entity
// immediately before it is admitted to the store. Per spec.md Design Note
// "Dynamic hook signatures," implementers in the original system could
// return either a value or a deferred value; here the hook is simply a Go
// function the scheduler can run synchronously or the caller can wrap in a
// goroutine+channel themselves — context.Context is the uniform
// await point.
type BeforeAddEntityHook func(ctx context.Context, e graphobject.Entity) (graphobject.Entity, error)

// BeforeAddRelationshipHook is the relationship equivalent of
// BeforeAddEntityHook.
type BeforeAddRelationshipHook func(ctx context.Context, r graphobject.Relationship) (graphobject.Relationship, error)

// SchemaValidator is the external collaborator that validates an entity or
// relationship against its declared _class schema. It is consulted only
// when schema validation is enabled (see Options.SchemaValidationEnabled);
// a validator failure is a recoverable diagnostic, not a rejection (spec
// §4.1).
type SchemaValidator interface {
	ValidateEntity(ctx context.Context, e graphobject.Entity) error
	ValidateRelationship(ctx context.Context, r graphobject.Relationship) error
}

// noopValidator is used when no SchemaValidator is configured.
type noopValidator struct{}

func (noopValidator) ValidateEntity(context.Context, graphobject.Entity) error             { return nil }
func (noopValidator) ValidateRelationship(context.Context, graphobject.Relationship) error { return nil }
