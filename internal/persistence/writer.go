package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"

	"github.com/j1-labs/j1-integration-runtime/internal/graphobject"
)

// Writer flushes in-memory buffers to the staging directory and maintains
// the type-indexed hard-link/copy layout the on-disk lookups rely on.
type Writer struct {
	root        string
	compression bool
	seq         atomic.Uint64
}

// NewWriter constructs a Writer rooted at root. compression mirrors the
// INTEGRATION_FILE_COMPRESSION_ENABLED environment variable (spec.md §6):
// when true, every flushed file is written as a Brotli-compressed stream.
func NewWriter(root string, compression bool) *Writer {
	return &Writer{root: root, compression: compression}
}

// nextName returns a file name that sorts, lexicographically, in flush
// order. A bare uuid.NewString() has no temporal ordering, so once a type
// is flushed across more than one file — two steps writing the same
// _type, or one step's buffer crossing the flush threshold twice —
// os.ReadDir's lexicographic listing would otherwise yield an order that
// is an arbitrary function of random UUIDs and differs between runs
// (spec.md §4.1 "stable between runs given the same input sequence").
// The zero-padded sequence prefix fixes the sort order; the UUID suffix
// only exists to keep names unique for humans poking around the staging
// directory.
func (w *Writer) nextName() string {
	seq := w.seq.Add(1)
	return fmt.Sprintf("%020d-%s.json", seq, uuid.NewString())
}

// FlushEntities writes one entities file under graph/<stepID>/entities/ and
// hard-links (or, if linking fails across filesystems, copies) it into
// index/entities/<type>/ for every distinct _type represented. It returns
// the path of the written graph file.
func (w *Writer) FlushEntities(stepID string, entities []graphobject.Entity) (string, error) {
	types := make(map[string]bool)
	for _, e := range entities {
		types[e.Type()] = true
	}
	return w.flush(stepID, KindEntities, FlushedFile{Entities: entities}, types)
}

// FlushRelationships is the relationship equivalent of FlushEntities.
func (w *Writer) FlushRelationships(stepID string, rels []graphobject.Relationship) (string, error) {
	types := make(map[string]bool)
	for _, r := range rels {
		types[r.Type()] = true
	}
	return w.flush(stepID, KindRelationships, FlushedFile{Relationships: rels}, types)
}

func (w *Writer) flush(stepID string, kind Kind, ff FlushedFile, types map[string]bool) (string, error) {
	dir := graphDir(w.root, stepID, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("persistence: creating %s: %w", dir, err)
	}

	name := w.nextName()
	graphPath := filepath.Join(dir, name)

	if err := w.writeFile(graphPath, ff); err != nil {
		return "", err
	}

	for objectType := range types {
		idxDir := indexDir(w.root, kind, objectType)
		if err := os.MkdirAll(idxDir, 0o755); err != nil {
			return "", fmt.Errorf("persistence: creating %s: %w", idxDir, err)
		}
		idxPath := filepath.Join(idxDir, name)
		if err := linkOrCopy(graphPath, idxPath); err != nil {
			return "", fmt.Errorf("persistence: indexing %s: %w", graphPath, err)
		}
	}

	return graphPath, nil
}

func (w *Writer) writeFile(path string, ff FlushedFile) error {
	payload, err := json.Marshal(ff)
	if err != nil {
		return fmt.Errorf("persistence: marshaling flushed file: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("persistence: creating %s: %w", path, err)
	}
	defer f.Close()

	if !w.compression {
		_, err = f.Write(payload)
		return err
	}

	bw := brotli.NewWriter(f)
	if _, err := bw.Write(payload); err != nil {
		bw.Close()
		return fmt.Errorf("persistence: compressing %s: %w", path, err)
	}
	return bw.Close()
}

// linkOrCopy hard-links dst to src, falling back to a byte copy if linking
// is not possible (e.g. across filesystem boundaries).
func linkOrCopy(src, dst string) error {
	if err := os.Link(src, dst); err == nil {
		return nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
