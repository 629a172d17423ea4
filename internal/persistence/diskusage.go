package persistence

import (
	"os"
	"path/filepath"
)

// DiskUsage returns the total byte size of every regular file under root,
// for the scheduler's post-run "disk-usage" metric (spec.md §4.5).
func DiskUsage(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
