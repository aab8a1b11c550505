package install

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// CopyBackend installs items by mirroring their source. Files are compared by
// size and modification time only: an in-place edit that keeps the size and
// does not advance the modification time is not detected. Symlinks inside a
// directory source are not copied.
type CopyBackend struct{}

// NewCopyBackend creates a CopyBackend
func NewCopyBackend() *CopyBackend {
	return &CopyBackend{}
}

func (c *CopyBackend) Name() string {
	return string(MethodCopy)
}

// Install mirrors source at dest
func (c *CopyBackend) Install(source, dest string) (Outcome, error) {
	srcInfo, err := os.Stat(source)
	if err != nil {
		return Unchanged, errors.Wrapf(err, "failed to stat source %s", source)
	}

	_, existed, err := lstat(dest)
	if err != nil {
		return Unchanged, err
	}

	changed, err := c.sync(source, srcInfo, dest)
	if err != nil {
		return Unchanged, err
	}

	switch {
	case !existed:
		return Created, nil
	case changed:
		return Replaced, nil
	default:
		return Unchanged, nil
	}
}

// sync mirrors src at dst and reports whether anything was written or removed
func (c *CopyBackend) sync(src string, srcInfo os.FileInfo, dst string) (bool, error) {
	dstInfo, found, err := lstat(dst)
	if err != nil {
		return false, err
	}

	changed := false
	if found && !sameType(srcInfo, dstInfo) {
		if err := os.RemoveAll(dst); err != nil {
			return false, errors.Wrapf(err, "failed to remove %s", dst)
		}
		found = false
		changed = true
	}

	if srcInfo.IsDir() {
		dirChanged, err := c.syncDir(src, srcInfo, dst, found)
		return changed || dirChanged, err
	}

	if found && dstInfo.Size() == srcInfo.Size() && !srcInfo.ModTime().After(dstInfo.ModTime()) {
		return changed, nil
	}
	if err := copyFile(src, srcInfo, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *CopyBackend) syncDir(src string, srcInfo os.FileInfo, dst string, exists bool) (bool, error) {
	changed := false
	if !exists {
		if err := os.MkdirAll(dst, srcInfo.Mode().Perm()|0o700); err != nil {
			return false, errors.Wrapf(err, "failed to create %s", dst)
		}
		changed = true
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read %s", src)
	}

	wanted := make(map[string]os.FileInfo, len(entries))
	for _, entry := range entries {
		// Only regular files and directories are mirrored. Symlinks are
		// skipped so a link pointing back up the tree cannot recurse.
		if !entry.IsDir() && !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return false, errors.Wrapf(err, "failed to stat %s", filepath.Join(src, entry.Name()))
		}
		wanted[entry.Name()] = info
	}

	current, err := os.ReadDir(dst)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read %s", dst)
	}
	for _, entry := range current {
		if _, ok := wanted[entry.Name()]; ok {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dst, entry.Name())); err != nil {
			return false, errors.Wrapf(err, "failed to remove %s", filepath.Join(dst, entry.Name()))
		}
		changed = true
	}

	for _, entry := range entries {
		info, ok := wanted[entry.Name()]
		if !ok {
			continue
		}
		childChanged, err := c.sync(filepath.Join(src, entry.Name()), info, filepath.Join(dst, entry.Name()))
		if err != nil {
			return false, err
		}
		changed = changed || childChanged
	}

	return changed, nil
}

// sameType reports whether dst can be updated in place to mirror src.
// Symlinks at the destination never qualify.
func sameType(src, dst os.FileInfo) bool {
	if isSymlink(dst) {
		return false
	}
	if src.IsDir() {
		return dst.IsDir()
	}
	return dst.Mode().IsRegular()
}

// copyFile writes src to dst through a temporary sibling and a rename, so dst
// is never observed half written. Mode and modification time are preserved.
func copyFile(src string, srcInfo os.FileInfo, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", src)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "failed to create temp file for %s", dst)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		cleanup()
		return errors.Wrapf(err, "failed to copy %s", src)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.Wrapf(err, "failed to write %s", dst)
	}
	if err := os.Chmod(tmpName, srcInfo.Mode().Perm()); err != nil {
		cleanup()
		return errors.Wrapf(err, "failed to set mode on %s", dst)
	}
	if err := os.Chtimes(tmpName, time.Now(), srcInfo.ModTime()); err != nil {
		cleanup()
		return errors.Wrapf(err, "failed to set times on %s", dst)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		cleanup()
		return errors.Wrapf(err, "failed to move %s into place", dst)
	}
	return nil
}
