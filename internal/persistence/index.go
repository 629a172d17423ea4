package persistence

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/j1-labs/j1-integration-runtime/internal/graphobject"
)

// HasFlushedType reports whether any entities/relationships of objectType
// have ever been flushed to the on-disk index, i.e. whether a findEntity
// miss in memory is worth a disk lookup (spec.md §4.1).
func HasFlushedType(root string, kind Kind, objectType string) bool {
	entries, err := os.ReadDir(indexDir(root, kind, objectType))
	if err != nil {
		return false
	}
	return len(entries) > 0
}

// FindEntityOnDisk scans the index partition for entityType looking for an
// entity with the given key. It is only worth calling once
// HasFlushedType(root, KindEntities, entityType) is true.
func FindEntityOnDisk(root, entityType, key string) (graphobject.Entity, bool, error) {
	dir := indexDir(root, KindEntities, entityType)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ff, err := ReadFlushedFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, false, err
		}
		for _, e := range ff.Entities {
			if e.Type() == entityType && e.Key() == key {
				return e, true, nil
			}
		}
	}
	return nil, false, nil
}

// IterateIndexedEntities yields every flushed entity of entityType, in
// file-visitation order, to fn. Because one physical flush file may be
// hard-linked under several type directories (when a single flush batch
// mixed types), entries are filtered by Type() before fn is invoked.
func IterateIndexedEntities(root, entityType string, fn func(graphobject.Entity) error) error {
	dir := indexDir(root, KindEntities, entityType)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ff, err := ReadFlushedFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		for _, e := range ff.Entities {
			if e.Type() != entityType {
				continue
			}
			if err := fn(e); err != nil {
				return fmt.Errorf("persistence: iterating indexed entities: %w", err)
			}
		}
	}
	return nil
}

// IterateIndexedRelationships is the relationship equivalent of
// IterateIndexedEntities.
func IterateIndexedRelationships(root, relType string, fn func(graphobject.Relationship) error) error {
	dir := indexDir(root, KindRelationships, relType)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ff, err := ReadFlushedFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		for _, r := range ff.Relationships {
			if r.Type() != relType {
				continue
			}
			if err := fn(r); err != nil {
				return fmt.Errorf("persistence: iterating indexed relationships: %w", err)
			}
		}
	}
	return nil
}
