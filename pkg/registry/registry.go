// Package registry describes the coding agents items can be installed for:
// where each agent reads skills and agents at project and global scope.
//
// A Catalog is immutable. The built-in table is combined with user overrides
// explicitly through WithOverrides and the result is passed to whoever needs
// it.
package registry

import (
	"sort"
)

const (
	// UniversalProjectSkills is the project skills directory shared by universal agents
	UniversalProjectSkills = ".agents/skills"
	// UniversalProjectAgents is the project agents directory shared by universal agents
	UniversalProjectAgents = ".agents/agents"
)

// Agent is one consumer of installed items
type Agent struct {
	Name          string
	DisplayName   string
	ProjectSkills string
	ProjectAgents string
	GlobalSkills  string
	GlobalAgents  string
	// Universal agents read the shared .agents/ directories at project scope
	Universal bool
	// LegacyProjectSkills and LegacyProjectAgents are project directories the
	// agent used before moving to the universal layout
	LegacyProjectSkills string
	LegacyProjectAgents string
}

// CustomAgent is a user-defined agent or an override of a built-in one
type CustomAgent struct {
	DisplayName   string `mapstructure:"display_name" yaml:"display_name,omitempty"`
	ProjectSkills string `mapstructure:"project_skills" yaml:"project_skills"`
	ProjectAgents string `mapstructure:"project_agents" yaml:"project_agents"`
	GlobalSkills  string `mapstructure:"global_skills" yaml:"global_skills"`
	GlobalAgents  string `mapstructure:"global_agents" yaml:"global_agents"`
}

func universal(name, displayName, globalBase string) Agent {
	return Agent{
		Name:          name,
		DisplayName:   displayName,
		ProjectSkills: UniversalProjectSkills,
		ProjectAgents: UniversalProjectAgents,
		GlobalSkills:  globalBase + "/skills",
		GlobalAgents:  globalBase + "/agents",
		Universal:     true,
	}
}

func dedicated(name, displayName, dir string) Agent {
	return Agent{
		Name:          name,
		DisplayName:   displayName,
		ProjectSkills: dir + "/skills",
		ProjectAgents: dir + "/agents",
		GlobalSkills:  "~/" + dir + "/skills",
		GlobalAgents:  "~/" + dir + "/agents",
	}
}

func builtInAgents() []Agent {
	pi := universal("pi", "Pi", "~/.pi/agent")
	pi.LegacyProjectSkills = ".pi/skills"
	pi.LegacyProjectAgents = ".pi/agents"

	opencode := universal("opencode", "OpenCode", "~/.config/opencode")
	opencode.LegacyProjectSkills = ".opencode/skills"
	opencode.LegacyProjectAgents = ".opencode/agents"

	return []Agent{
		pi,
		dedicated("claude-code", "Claude Code", ".claude"),
		dedicated("cursor", "Cursor", ".cursor"),
		dedicated("roo", "Roo", ".roo"),
		dedicated("cline", "Cline", ".cline"),
		dedicated("windsurf", "Windsurf", ".windsurf"),
		opencode,
		universal("codex", "Codex", "~/.config/codex"),
		universal("amp", "Amp", "~/.config/amp"),
		universal("gemini-cli", "Gemini CLI", "~/.config/gemini-cli"),
		universal("github-copilot", "GitHub Copilot", "~/.config/github-copilot"),
		universal("kimi-cli", "Kimi CLI", "~/.config/kimi-cli"),
	}
}

// Catalog is an ordered, immutable set of agents
type Catalog struct {
	agents []Agent
}

// BuiltIn returns the catalog of agents known out of the box
func BuiltIn() Catalog {
	return Catalog{agents: builtInAgents()}
}

// WithOverrides returns a new catalog in which every entry of overrides
// replaces the same-named agent, or is appended in name order when new.
// The receiver is left untouched.
func (c Catalog) WithOverrides(overrides map[string]CustomAgent) Catalog {
	if len(overrides) == 0 {
		return c
	}

	agents := make([]Agent, 0, len(c.agents)+len(overrides))
	for _, a := range c.agents {
		if _, ok := overrides[a.Name]; !ok {
			agents = append(agents, a)
		}
	}

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := overrides[name]
		displayName := def.DisplayName
		if displayName == "" {
			displayName = name
		}
		agents = append(agents, Agent{
			Name:          name,
			DisplayName:   displayName,
			ProjectSkills: def.ProjectSkills,
			ProjectAgents: def.ProjectAgents,
			GlobalSkills:  def.GlobalSkills,
			GlobalAgents:  def.GlobalAgents,
		})
	}

	return Catalog{agents: agents}
}

// All returns every agent in catalog order
func (c Catalog) All() []Agent {
	return append([]Agent(nil), c.agents...)
}

// Lookup returns the agent called name
func (c Catalog) Lookup(name string) (Agent, bool) {
	for _, a := range c.agents {
		if a.Name == name {
			return a, true
		}
	}
	return Agent{}, false
}

// Unknown returns the names not present in the catalog, in input order
func (c Catalog) Unknown(names []string) []string {
	var unknown []string
	for _, name := range names {
		if _, ok := c.Lookup(name); !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// Universal returns the agents sharing the .agents/ project layout
func (c Catalog) Universal() []Agent {
	return c.filter(func(a Agent) bool { return a.Universal })
}

// NonUniversal returns the agents with their own project layout
func (c Catalog) NonUniversal() []Agent {
	return c.filter(func(a Agent) bool { return !a.Universal })
}

func (c Catalog) filter(keep func(Agent) bool) []Agent {
	var out []Agent
	for _, a := range c.agents {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// Consumers returns the agents for names in the given order, skipping
// unknown and repeated names
func (c Catalog) Consumers(names []string) []Agent {
	seen := make(map[string]bool, len(names))
	var out []Agent
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if a, ok := c.Lookup(name); ok {
			out = append(out, a)
		}
	}
	return out
}

// LegacyProjectDirs returns the pre-universal project directories of the
// given agents that still need cleaning up, relative to the project root.
// A legacy directory is skipped while any of the agents still uses it.
func LegacyProjectDirs(agents []Agent) []string {
	inUse := make(map[string]bool)
	for _, a := range agents {
		inUse[a.ProjectSkills] = true
		inUse[a.ProjectAgents] = true
	}

	var dirs []string
	seen := make(map[string]bool)
	for _, a := range agents {
		for _, dir := range []string{a.LegacyProjectSkills, a.LegacyProjectAgents} {
			if dir == "" || inUse[dir] || seen[dir] {
				continue
			}
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}
