// Package discovery finds the skills and agents a cached repository provides
// and narrows them to a dependency's selection.
//
// Skills are subdirectories of skills/ holding a SKILL.md. Agents are
// subdirectories of agents/ or markdown files directly inside it; a directory
// wins over a file with the same stem. Hidden entries are ignored and results
// are sorted by name.
package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const (
	SkillsDir     = "skills"
	AgentsDir     = "agents"
	SkillFileName = "SKILL.md"
)

// Kind is the type of an item
type Kind string

const (
	KindSkill Kind = "skill"
	KindAgent Kind = "agent"
)

// Plural returns the directory-style plural of k, e.g. "skills"
func (k Kind) Plural() string {
	return string(k) + "s"
}

// Item is something a repository offers for installation
type Item struct {
	Name        string
	SourcePath  string
	Kind        Kind
	Description string
}

// DiscoverSkills lists the skills under repoRoot/skills
func DiscoverSkills(repoRoot string) ([]Item, error) {
	dir := filepath.Join(repoRoot, SkillsDir)
	entries, err := readDir(dir)
	if err != nil {
		return nil, err
	}

	var items []Item
	for _, entry := range entries {
		if hidden(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !isDir(path) {
			continue
		}
		skillFile := filepath.Join(path, SkillFileName)
		if info, err := os.Stat(skillFile); err != nil || info.IsDir() {
			continue
		}
		items = append(items, Item{
			Name:        entry.Name(),
			SourcePath:  path,
			Kind:        KindSkill,
			Description: ReadDescription(skillFile),
		})
	}

	sortItems(items)
	return items, nil
}

// DiscoverAgents lists the agents under repoRoot/agents
func DiscoverAgents(repoRoot string) ([]Item, error) {
	dir := filepath.Join(repoRoot, AgentsDir)
	entries, err := readDir(dir)
	if err != nil {
		return nil, err
	}

	dirs := make(map[string]Item)
	files := make(map[string]Item)
	for _, entry := range entries {
		if hidden(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if isDir(path) {
			dirs[entry.Name()] = Item{Name: entry.Name(), SourcePath: path, Kind: KindAgent}
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), ".md") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if name == "" {
			continue
		}
		files[name] = Item{
			Name:        name,
			SourcePath:  path,
			Kind:        KindAgent,
			Description: ReadDescription(path),
		}
	}

	items := make([]Item, 0, len(dirs)+len(files))
	for _, item := range dirs {
		items = append(items, item)
	}
	for name, item := range files {
		if _, ok := dirs[name]; !ok {
			items = append(items, item)
		}
	}

	sortItems(items)
	return items, nil
}

// Discover lists the items of kind under repoRoot
func Discover(repoRoot string, kind Kind) ([]Item, error) {
	if kind == KindAgent {
		return DiscoverAgents(repoRoot)
	}
	return DiscoverSkills(repoRoot)
}

// Names returns the item names in order
func Names(items []Item) []string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return names
}

// readDir lists dir, treating a missing directory as empty
func readDir(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err == nil {
		return entries, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return nil, errors.Wrapf(err, "failed to read %s", dir)
}

// isDir follows symlinks so linked item directories count
func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func sortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
}
