package install

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
)

var errJunctionUnsupported = errors.New("directory junctions are not supported on this platform")

// LinkError is returned when a link could not be created at all
type LinkError struct {
	Source string
	Target string
	Err    error
}

func (e *LinkError) Error() string {
	hint := "set install_method: copy in the global config to install by copying instead"
	if runtime.GOOS == "windows" {
		hint += ", or enable Developer Mode"
	}
	return fmt.Sprintf("failed to link %s to %s: %v; %s", e.Target, e.Source, e.Err, hint)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// LinkBackend installs items as symbolic links to their source
type LinkBackend struct {
	symlink  func(oldname, newname string) error
	junction func(target, link string) error
}

// NewLinkBackend creates a LinkBackend
func NewLinkBackend() *LinkBackend {
	return &LinkBackend{
		symlink:  os.Symlink,
		junction: createJunction,
	}
}

func (l *LinkBackend) Name() string {
	return string(MethodLink)
}

// Install makes target a symbolic link to source
func (l *LinkBackend) Install(source, target string) (Outcome, error) {
	srcInfo, err := os.Stat(source)
	if err != nil {
		return Unchanged, errors.Wrapf(err, "failed to stat source %s", source)
	}

	info, found, err := lstat(target)
	if err != nil {
		return Unchanged, err
	}
	if !found {
		if err := l.link(source, target, srcInfo.IsDir()); err != nil {
			return Unchanged, err
		}
		return Created, nil
	}

	if isSymlink(info) {
		current, err := os.Readlink(target)
		if err != nil {
			return Unchanged, errors.Wrapf(err, "failed to read link %s", target)
		}
		if filepath.Clean(current) == filepath.Clean(source) {
			return Unchanged, nil
		}
		if err := os.Remove(target); err != nil {
			return Unchanged, errors.Wrapf(err, "failed to remove stale link %s", target)
		}
	} else if err := os.RemoveAll(target); err != nil {
		return Unchanged, errors.Wrapf(err, "failed to remove %s", target)
	}

	if err := l.link(source, target, srcInfo.IsDir()); err != nil {
		return Unchanged, err
	}
	return Replaced, nil
}

func (l *LinkBackend) link(source, target string, dir bool) error {
	err := l.symlink(source, target)
	if err == nil {
		return nil
	}
	if !dir {
		return &LinkError{Source: source, Target: target, Err: err}
	}

	jerr := l.junction(source, target)
	if jerr == nil {
		return nil
	}
	if errors.Is(jerr, errJunctionUnsupported) {
		return &LinkError{Source: source, Target: target, Err: err}
	}
	return &LinkError{Source: source, Target: target, Err: jerr}
}
