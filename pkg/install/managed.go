package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jingkaihe/agentdeps/pkg/logger"
	"github.com/jingkaihe/agentdeps/pkg/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ManagedDirName is the directory, beneath an agent's skills or agents
// directory, that this tool owns exclusively
const ManagedDirName = "_agentdeps_managed"

// ManagedDir returns the managed directory beneath parent
func ManagedDir(parent string) string {
	return filepath.Join(parent, ManagedDirName)
}

// Kind is the filesystem shape of an item's source
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// ResolvedTarget is a desired item with its on-disk entry name
type ResolvedTarget struct {
	Name       string
	TargetName string
	SourcePath string
	Kind       Kind
}

// TargetCollisionError is returned when distinct items would be installed
// under the same entry name
type TargetCollisionError struct {
	TargetName string
	Names      []string
}

func (e *TargetCollisionError) Error() string {
	return fmt.Sprintf("items %s would all be installed as %q", strings.Join(e.Names, ", "), e.TargetName)
}

// ResolveTargets stats every source in desired and computes its entry name:
// the item name for directories, the item name plus the source extension for
// files. The result is sorted by item name.
func ResolveTargets(desired map[string]string) ([]ResolvedTarget, error) {
	names := make([]string, 0, len(desired))
	for name := range desired {
		names = append(names, name)
	}
	sort.Strings(names)

	targets := make([]ResolvedTarget, 0, len(names))
	owners := make(map[string][]string, len(names))
	for _, name := range names {
		if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return nil, errors.Errorf("invalid item name %q", name)
		}

		source, err := filepath.Abs(desired[name])
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve source of %s", name)
		}
		info, err := os.Stat(source)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to stat source of %s", name)
		}

		t := ResolvedTarget{Name: name, TargetName: name, SourcePath: source, Kind: KindDirectory}
		if !info.IsDir() {
			t.Kind = KindFile
			t.TargetName = name + filepath.Ext(source)
		}
		owners[t.TargetName] = append(owners[t.TargetName], name)
		targets = append(targets, t)
	}

	for _, t := range targets {
		if names := owners[t.TargetName]; len(names) > 1 {
			return nil, &TargetCollisionError{TargetName: t.TargetName, Names: names}
		}
	}
	return targets, nil
}

// SyncSummary lists item names by what a pass did to them, each sorted
type SyncSummary struct {
	Added     []string
	Removed   []string
	Unchanged []string
}

// Changed reports whether the pass wrote or removed anything
func (s *SyncSummary) Changed() bool {
	return len(s.Added) > 0 || len(s.Removed) > 0
}

func (s *SyncSummary) sort() {
	sort.Strings(s.Added)
	sort.Strings(s.Removed)
	sort.Strings(s.Unchanged)
}

// Syncer reconciles managed directories. Passes on the same directory are
// serialized; passes on different directories run independently.
type Syncer struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSyncer creates a Syncer
func NewSyncer() *Syncer {
	return &Syncer{locks: make(map[string]*sync.Mutex)}
}

func (s *Syncer) lock(dir string) func() {
	key := dir
	if abs, err := filepath.Abs(dir); err == nil {
		key = abs
	}

	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Sync makes managedDir hold exactly one entry per desired item, installed
// with backend, and removes everything else in it. Nothing outside managedDir
// is touched. An empty desired set removes managedDir once it is empty and
// never creates it.
//
// The pass is not atomic: it stops at the first failing item, leaving items
// already installed in place. The summary returned alongside an error covers
// the work done up to that point.
func (s *Syncer) Sync(ctx context.Context, managedDir string, desired map[string]string, backend Backend) (summary *SyncSummary, err error) {
	unlock := s.lock(managedDir)
	defer unlock()

	ctx, span := telemetry.Tracer("agentdeps.install").Start(ctx, "install.sync",
		trace.WithAttributes(
			attribute.String("install.dir", managedDir),
			attribute.String("install.method", backend.Name()),
			attribute.Int("install.desired", len(desired)),
		))
	defer func() { telemetry.EndSpan(span, err) }()

	summary = &SyncSummary{}
	defer summary.sort()

	targets, err := ResolveTargets(desired)
	if err != nil {
		return summary, err
	}

	entries, exists, err := readManagedDir(managedDir)
	if err != nil {
		return summary, err
	}

	keep := make(map[string]bool, len(targets))
	for _, t := range targets {
		keep[t.TargetName] = true
	}

	log := logger.C(ctx, "install.sync").WithField("dir", managedDir)
	for _, entry := range entries {
		if keep[entry.Name()] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		path := filepath.Join(managedDir, entry.Name())
		name := itemName(path, entry)
		if err := os.RemoveAll(path); err != nil {
			return summary, errors.Wrapf(err, "failed to remove stale entry %s", path)
		}
		log.WithField("item", name).Debug("removed stale entry")
		summary.Removed = append(summary.Removed, name)
	}

	if len(targets) == 0 {
		if exists {
			if err := removeIfEmpty(managedDir); err != nil {
				return summary, err
			}
		}
		return summary, nil
	}

	if err := os.MkdirAll(managedDir, 0o755); err != nil {
		return summary, errors.Wrapf(err, "failed to create %s", managedDir)
	}

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		outcome, err := backend.Install(t.SourcePath, filepath.Join(managedDir, t.TargetName))
		if err != nil {
			return summary, errors.Wrapf(err, "failed to install %s", t.Name)
		}
		if outcome == Unchanged {
			summary.Unchanged = append(summary.Unchanged, t.Name)
		} else {
			log.WithField("item", t.Name).WithField("outcome", outcome.String()).Debug("installed item")
			summary.Added = append(summary.Added, t.Name)
		}
	}

	return summary, nil
}

// readManagedDir lists dir, reporting absence as exists=false
func readManagedDir(dir string) (entries []os.DirEntry, exists bool, err error) {
	entries, err = os.ReadDir(dir)
	if err == nil {
		return entries, true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	return nil, false, errors.Wrapf(err, "failed to read %s", dir)
}

func removeIfEmpty(dir string) error {
	entries, exists, err := readManagedDir(dir)
	if err != nil || !exists || len(entries) > 0 {
		return err
	}
	if err := os.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "failed to remove %s", dir)
	}
	return nil
}

// danglingFileExt is the extension of file items whose source can no longer
// be inspected. Discovery only produces file items as markdown agents.
const danglingFileExt = ".md"

// itemName maps a managed entry back to the item name it was installed for.
// An entry whose kind cannot be told, such as a link whose source is gone,
// only loses a markdown extension.
func itemName(path string, entry os.DirEntry) string {
	name := entry.Name()
	info, err := os.Stat(path)
	switch {
	case err != nil:
		if strings.EqualFold(filepath.Ext(name), danglingFileExt) {
			return strings.TrimSuffix(name, filepath.Ext(name))
		}
		return name
	case info.IsDir():
		return name
	default:
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
}
