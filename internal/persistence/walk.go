package persistence

import (
	"path/filepath"
	"strings"

	"github.com/j1-labs/j1-integration-runtime/internal/fsutil"
)

// GraphFile pairs a flushed file's path with its parsed content and the
// step that produced it, the uniform lazy stream the uploader consumes
// (spec.md §4.2).
type GraphFile struct {
	FilePath string
	StepID   string
	Content  FlushedFile
}

// WalkGraphFiles visits every file under root/graph in depth-first order,
// parsing each as a FlushedFile and invoking fn. It stops and returns the
// first error encountered, whether from the walk itself, parsing, or fn.
func WalkGraphFiles(root string, fn func(GraphFile) error) error {
	graphRoot := filepath.Join(root, "graph")
	return fsutil.WalkFiles(graphRoot, func(path string) error {
		content, err := ReadFlushedFile(path)
		if err != nil {
			return err
		}
		return fn(GraphFile{FilePath: path, StepID: stepIDFromGraphPath(graphRoot, path), Content: content})
	})
}

// stepIDFromGraphPath recovers the <stepId> segment of
// graph/<stepId>/<entities|relationships>/<file>.json from a file path
// returned by the walk above.
func stepIDFromGraphPath(graphRoot, path string) string {
	rel, err := filepath.Rel(graphRoot, path)
	if err != nil {
		return ""
	}
	first, _, found := strings.Cut(filepath.ToSlash(rel), "/")
	if !found {
		return ""
	}
	return first
}
