// Package fsutil provides file system utility functions shared by the
// persistence layer.
package fsutil

import (
	"io/fs"
	"path/filepath"
)

// WalkFiles visits every regular file under rootPath in depth-first order,
// invoking fn with each file's path. It is the basis for the persistence
// layer's graph-file iterator, which pairs each visited path with its parsed
// FlushedFile content.
func WalkFiles(rootPath string, fn func(path string) error) error {
	return filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		return fn(path)
	})
}
