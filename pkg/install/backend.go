// Package install places items into managed directories. A Backend installs a
// single item; Syncer reconciles a whole managed directory against a desired
// set using a Backend.
package install

import (
	"os"

	"github.com/pkg/errors"
)

// Outcome reports what a Backend did to a target
type Outcome int

const (
	// Unchanged means the target was already correct and nothing was written
	Unchanged Outcome = iota
	// Created means the target did not exist and was created
	Created
	// Replaced means an existing target was corrected
	Replaced
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Replaced:
		return "replaced"
	default:
		return "unchanged"
	}
}

// Backend installs one source path at one target path. Install must be
// idempotent and must converge an incorrect target to the correct state.
type Backend interface {
	Name() string
	Install(source, target string) (Outcome, error)
}

// Method names an install strategy
type Method string

const (
	MethodLink Method = "link"
	MethodCopy Method = "copy"
)

// Valid reports whether m names a known strategy
func (m Method) Valid() bool {
	return m == MethodLink || m == MethodCopy
}

// NewBackend returns the Backend for method
func NewBackend(method Method) (Backend, error) {
	switch method {
	case MethodLink:
		return NewLinkBackend(), nil
	case MethodCopy:
		return NewCopyBackend(), nil
	default:
		return nil, errors.Errorf("unknown install method %q", method)
	}
}

// lstat reports whether path exists without following a final symlink.
// Absence is returned as found=false with a nil error.
func lstat(path string) (info os.FileInfo, found bool, err error) {
	info, err = os.Lstat(path)
	if err == nil {
		return info, true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	return nil, false, errors.Wrapf(err, "failed to stat %s", path)
}

func isSymlink(info os.FileInfo) bool {
	return info.Mode()&os.ModeSymlink != 0
}
