package install

import (
	"os"

	"github.com/pkg/errors"
)

// CleanupLegacyManagedDirs removes the managed directory beneath each of the
// given parents and returns the ones that existed. Parents themselves are
// never removed and missing paths are skipped.
func CleanupLegacyManagedDirs(parents []string) ([]string, error) {
	var removed []string
	for _, parent := range parents {
		dir := ManagedDir(parent)
		_, found, err := lstat(dir)
		if err != nil {
			return removed, err
		}
		if !found {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return removed, errors.Wrapf(err, "failed to remove legacy directory %s", dir)
		}
		removed = append(removed, dir)
	}
	return removed, nil
}
