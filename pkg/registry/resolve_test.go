package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_ProjectScopeMergesUniversalAgents(t *testing.T) {
	root := filepath.FromSlash("/work/project")
	home := filepath.FromSlash("/home/u")
	consumers := BuiltIn().Consumers([]string{"codex", "claude-code", "amp", "gemini-cli"})

	targets := Resolve(consumers, ScopeProject, root, home)
	require.Len(t, targets, 2)

	assert.Equal(t, filepath.Join(root, ".agents", "skills"), targets[0].SkillsDir)
	assert.Equal(t, filepath.Join(root, ".agents", "agents"), targets[0].AgentsDir)
	assert.Equal(t, []string{"Codex", "Amp", "Gemini CLI"}, targets[0].DisplayNames)
	assert.Equal(t, "Codex, Amp, Gemini CLI", targets[0].Label())

	assert.Equal(t, filepath.Join(root, ".claude", "skills"), targets[1].SkillsDir)
	assert.Equal(t, []string{"Claude Code"}, targets[1].DisplayNames)
}

func TestResolve_GlobalScopeKeepsDistinctDirs(t *testing.T) {
	home := filepath.FromSlash("/home/u")
	consumers := BuiltIn().Consumers([]string{"codex", "amp"})

	targets := Resolve(consumers, ScopeGlobal, "", home)
	require.Len(t, targets, 2)
	assert.Equal(t, filepath.Join(home, ".config", "codex", "skills"), targets[0].SkillsDir)
	assert.Equal(t, filepath.Join(home, ".config", "amp", "agents"), targets[1].AgentsDir)
}

func TestResolve_ExpandsHomeBeforeComparing(t *testing.T) {
	home := filepath.FromSlash("/home/u")
	catalog := BuiltIn().WithOverrides(map[string]CustomAgent{
		"mirror": {
			DisplayName:  "Mirror",
			GlobalSkills: filepath.Join(home, ".claude", "skills"),
			GlobalAgents: filepath.Join(home, ".claude", "agents") + string(filepath.Separator),
		},
	})

	targets := Resolve(catalog.Consumers([]string{"claude-code", "mirror"}), ScopeGlobal, "", home)
	require.Len(t, targets, 1)
	assert.Equal(t, []string{"Claude Code", "Mirror"}, targets[0].DisplayNames)
}

func TestResolve_Empty(t *testing.T) {
	assert.Empty(t, Resolve(nil, ScopeProject, "/p", "/h"))
}
