package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/jingkaihe/agentdeps/pkg/cache"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultRef is used when a dependency does not name a ref
const DefaultRef = "main"

// SelectionMode says which items of a kind a dependency installs
type SelectionMode int

const (
	SelectAll SelectionMode = iota
	SelectNone
	SelectNames
)

// Selection is all, none, or an explicit list of names or patterns
type Selection struct {
	Mode  SelectionMode
	Names []string
}

// All selects every item
func All() Selection {
	return Selection{Mode: SelectAll}
}

// None selects nothing
func None() Selection {
	return Selection{Mode: SelectNone}
}

// Names selects the given names
func Names(names ...string) Selection {
	return Selection{Mode: SelectNames, Names: names}
}

func (s Selection) String() string {
	switch s.Mode {
	case SelectAll:
		return "*"
	case SelectNone:
		return "none"
	default:
		return strings.Join(s.Names, ", ")
	}
}

// Dependency is one repository to install items from
type Dependency struct {
	Repo   string
	Ref    string
	Skills Selection
	Agents Selection
}

// CacheKey returns the repository cache key for this dependency
func (d Dependency) CacheKey() string {
	return cache.DeriveKey(d.Repo, d.Ref)
}

// Project is a parsed agents.yaml
type Project struct {
	Dependencies []Dependency
}

// Find returns the index of the dependency on repo, comparing normalized
// repository names, or -1
func (p *Project) Find(repo string) int {
	want := cache.NormalizeRepo(repo)
	for i, dep := range p.Dependencies {
		if cache.NormalizeRepo(dep.Repo) == want {
			return i
		}
	}
	return -1
}

// Add appends dep unless a dependency on the same repository exists
func (p *Project) Add(dep Dependency) error {
	if i := p.Find(dep.Repo); i >= 0 {
		return errors.Errorf("%s is already a dependency (as %s)", dep.Repo, p.Dependencies[i].Repo)
	}
	if dep.Ref == "" {
		dep.Ref = DefaultRef
	}
	p.Dependencies = append(p.Dependencies, dep)
	return nil
}

// Remove drops the dependency on repo and reports whether one was found
func (p *Project) Remove(repo string) bool {
	i := p.Find(repo)
	if i < 0 {
		return false
	}
	p.Dependencies = append(p.Dependencies[:i], p.Dependencies[i+1:]...)
	return true
}

type rawProject struct {
	Dependencies yaml.Node `yaml:"dependencies"`
}

type rawDependency struct {
	Repo   string    `yaml:"repo"`
	Ref    string    `yaml:"ref"`
	Skills yaml.Node `yaml:"skills"`
	Agents yaml.Node `yaml:"agents"`
}

// ProjectExists reports whether an agents.yaml exists at path
func ProjectExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// LoadProject reads the dependency list at path. Recoverable oddities, such
// as a selection of an unexpected type, are returned as warnings.
func LoadProject(path string) (*Project, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read %s", path)
	}
	project, warnings, err := ParseProject(data)
	if err != nil {
		return nil, warnings, errors.Wrapf(err, "invalid %s", path)
	}
	return project, warnings, nil
}

// ParseProject parses agents.yaml content
func ParseProject(data []byte) (*Project, []string, error) {
	var raw rawProject
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, errors.Wrap(err, "failed to parse YAML")
	}

	project := &Project{}
	var warnings []string

	switch raw.Dependencies.Kind {
	case 0:
		if len(strings.TrimSpace(string(data))) > 0 {
			warnings = append(warnings, "agents.yaml has no 'dependencies' field")
		}
		return project, warnings, nil
	case yaml.ScalarNode:
		if raw.Dependencies.Tag == "!!null" {
			warnings = append(warnings, "agents.yaml has no 'dependencies' field")
			return project, warnings, nil
		}
		return nil, nil, errors.New("'dependencies' must be a list")
	case yaml.SequenceNode:
	default:
		return nil, nil, errors.New("'dependencies' must be a list")
	}

	if len(raw.Dependencies.Content) == 0 {
		warnings = append(warnings, "agents.yaml has an empty dependencies list")
		return project, warnings, nil
	}

	for i, node := range raw.Dependencies.Content {
		var rd rawDependency
		if err := node.Decode(&rd); err != nil {
			return nil, warnings, errors.Wrapf(err, "dependency at index %d", i)
		}
		if strings.TrimSpace(rd.Repo) == "" {
			return nil, warnings, errors.Errorf("dependency at index %d is missing required 'repo' field", i)
		}

		dep := Dependency{Repo: rd.Repo, Ref: rd.Ref}
		if dep.Ref == "" {
			dep.Ref = DefaultRef
		}

		var warning string
		dep.Skills, warning = parseSelection(&rd.Skills, rd.Repo, "skills")
		if warning != "" {
			warnings = append(warnings, warning)
		}
		dep.Agents, warning = parseSelection(&rd.Agents, rd.Repo, "agents")
		if warning != "" {
			warnings = append(warnings, warning)
		}

		project.Dependencies = append(project.Dependencies, dep)
	}

	return project, warnings, nil
}

// parseSelection maps omitted, "*" and true to all, false to none and a list
// to names. Anything else falls back to all with a warning.
func parseSelection(node *yaml.Node, repo, field string) (Selection, string) {
	switch node.Kind {
	case 0:
		return All(), ""
	case yaml.ScalarNode:
		switch {
		case node.Tag == "!!null":
			return All(), ""
		case node.Tag == "!!str" && node.Value == "*":
			return All(), ""
		case node.Tag == "!!bool":
			var b bool
			if err := node.Decode(&b); err == nil {
				if b {
					return All(), ""
				}
				return None(), ""
			}
		}
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err == nil {
			return Names(names...), ""
		}
	}

	return All(), fmt.Sprintf("dependency %q has unexpected %s value (%s), defaulting to \"*\"", repo, field, describeNode(node))
}

func describeNode(node *yaml.Node) string {
	out, err := yaml.Marshal(node)
	if err != nil {
		return node.Value
	}
	return strings.TrimSpace(strings.ReplaceAll(string(out), "\n", " "))
}

type fileDependency struct {
	Repo   string      `yaml:"repo"`
	Ref    string      `yaml:"ref,omitempty"`
	Skills interface{} `yaml:"skills,omitempty"`
	Agents interface{} `yaml:"agents,omitempty"`
}

type fileProject struct {
	Dependencies []fileDependency `yaml:"dependencies"`
}

func selectionValue(s Selection) interface{} {
	switch s.Mode {
	case SelectAll:
		return nil
	case SelectNone:
		return false
	default:
		if s.Names == nil {
			return []string{}
		}
		return s.Names
	}
}

// SaveProject writes p to path, omitting values equal to their defaults
func SaveProject(path string, p *Project) error {
	out := fileProject{Dependencies: make([]fileDependency, 0, len(p.Dependencies))}
	for _, dep := range p.Dependencies {
		fd := fileDependency{
			Repo:   dep.Repo,
			Skills: selectionValue(dep.Skills),
			Agents: selectionValue(dep.Agents),
		}
		if dep.Ref != "" && dep.Ref != DefaultRef {
			fd.Ref = dep.Ref
		}
		out.Dependencies = append(out.Dependencies, fd)
	}

	data, err := marshalYAML(out)
	if err != nil {
		return errors.Wrap(err, "failed to marshal dependencies")
	}
	return writeFile(path, data)
}
