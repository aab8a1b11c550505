package registry

import (
	"path/filepath"
	"strings"

	"github.com/jingkaihe/agentdeps/pkg/paths"
)

// Scope selects which pair of directories an agent uses
type Scope string

const (
	ScopeProject Scope = "project"
	ScopeGlobal  Scope = "global"
)

// DedupTarget is one physical pair of directories and the agents reading it
type DedupTarget struct {
	SkillsDir    string
	AgentsDir    string
	DisplayNames []string
}

// Label joins the display names for output
func (t DedupTarget) Label() string {
	return strings.Join(t.DisplayNames, ", ")
}

// Resolve maps consumers to the concrete directories they use at scope and
// merges consumers sharing a directory pair, keeping declaration order.
// Project paths are joined onto projectRoot; global paths have ~ expanded to
// home. Both are cleaned before comparison.
func Resolve(consumers []Agent, scope Scope, projectRoot, home string) []DedupTarget {
	var targets []DedupTarget
	index := make(map[[2]string]int)

	for _, a := range consumers {
		skills, agents := a.GlobalSkills, a.GlobalAgents
		if scope == ScopeProject {
			skills, agents = a.ProjectSkills, a.ProjectAgents
		}
		skills = concreteDir(skills, scope, projectRoot, home)
		agents = concreteDir(agents, scope, projectRoot, home)

		key := [2]string{skills, agents}
		if i, ok := index[key]; ok {
			targets[i].DisplayNames = append(targets[i].DisplayNames, a.DisplayName)
			continue
		}
		index[key] = len(targets)
		targets = append(targets, DedupTarget{
			SkillsDir:    skills,
			AgentsDir:    agents,
			DisplayNames: []string{a.DisplayName},
		})
	}

	return targets
}

func concreteDir(dir string, scope Scope, projectRoot, home string) string {
	dir = paths.ExpandHomeWith(dir, home)
	if scope == ScopeProject && !filepath.IsAbs(dir) {
		dir = filepath.Join(projectRoot, dir)
	}
	return filepath.Clean(dir)
}
