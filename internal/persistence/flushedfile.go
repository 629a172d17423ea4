package persistence

import "github.com/j1-labs/j1-integration-runtime/internal/graphobject"

// FlushedFile is the on-disk shape written by a single flush: either an
// entities file or a relationships file, never both (spec.md §3).
type FlushedFile struct {
	Entities      []graphobject.Entity       `json:"entities,omitempty"`
	Relationships []graphobject.Relationship `json:"relationships,omitempty"`
}
