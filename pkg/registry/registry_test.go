package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltIn(t *testing.T) {
	c := BuiltIn()

	names := make([]string, 0)
	for _, a := range c.All() {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{
		"pi", "claude-code", "cursor", "roo", "cline", "windsurf",
		"opencode", "codex", "amp", "gemini-cli", "github-copilot", "kimi-cli",
	}, names)

	claude, ok := c.Lookup("claude-code")
	require.True(t, ok)
	assert.Equal(t, ".claude/skills", claude.ProjectSkills)
	assert.Equal(t, "~/.claude/agents", claude.GlobalAgents)
	assert.False(t, claude.Universal)

	codex, ok := c.Lookup("codex")
	require.True(t, ok)
	assert.True(t, codex.Universal)
	assert.Equal(t, UniversalProjectSkills, codex.ProjectSkills)
	assert.Equal(t, "~/.config/codex/skills", codex.GlobalSkills)

	pi, ok := c.Lookup("pi")
	require.True(t, ok)
	assert.Equal(t, ".pi/skills", pi.LegacyProjectSkills)

	_, ok = c.Lookup("nope")
	assert.False(t, ok)
}

func TestCatalog_UniversalSplit(t *testing.T) {
	c := BuiltIn()
	for _, a := range c.Universal() {
		assert.Equal(t, UniversalProjectSkills, a.ProjectSkills, a.Name)
	}
	assert.Len(t, c.Universal(), 7)
	assert.Len(t, c.NonUniversal(), 5)
}

func TestCatalog_WithOverrides(t *testing.T) {
	base := BuiltIn()
	c := base.WithOverrides(map[string]CustomAgent{
		"cursor": {
			ProjectSkills: ".cursor/custom-skills",
			ProjectAgents: ".cursor/custom-agents",
			GlobalSkills:  "~/.cursor/custom-skills",
			GlobalAgents:  "~/.cursor/custom-agents",
		},
		"zed": {
			DisplayName:   "Zed",
			ProjectSkills: ".zed/skills",
			ProjectAgents: ".zed/agents",
			GlobalSkills:  "~/.zed/skills",
			GlobalAgents:  "~/.zed/agents",
		},
	})

	cursor, ok := c.Lookup("cursor")
	require.True(t, ok)
	assert.Equal(t, ".cursor/custom-skills", cursor.ProjectSkills)
	assert.Equal(t, "cursor", cursor.DisplayName)

	zed, ok := c.Lookup("zed")
	require.True(t, ok)
	assert.Equal(t, "Zed", zed.DisplayName)

	original, ok := base.Lookup("cursor")
	require.True(t, ok)
	assert.Equal(t, ".cursor/skills", original.ProjectSkills, "overrides never mutate the base catalog")
	_, ok = base.Lookup("zed")
	assert.False(t, ok)

	all := c.All()
	assert.Equal(t, "zed", all[len(all)-1].Name)
	assert.Len(t, all, 13)
}

func TestCatalog_Unknown(t *testing.T) {
	assert.Equal(t, []string{"vim", "emacs"}, BuiltIn().Unknown([]string{"pi", "vim", "codex", "emacs"}))
	assert.Empty(t, BuiltIn().Unknown([]string{"pi"}))
}

func TestCatalog_Consumers(t *testing.T) {
	consumers := BuiltIn().Consumers([]string{"codex", "nope", "claude-code", "codex"})
	require.Len(t, consumers, 2)
	assert.Equal(t, "codex", consumers[0].Name)
	assert.Equal(t, "claude-code", consumers[1].Name)
}

func TestLegacyProjectDirs(t *testing.T) {
	c := BuiltIn()

	dirs := LegacyProjectDirs(c.Consumers([]string{"pi", "opencode", "claude-code"}))
	assert.Equal(t, []string{".pi/skills", ".pi/agents", ".opencode/skills", ".opencode/agents"}, dirs)

	custom := c.WithOverrides(map[string]CustomAgent{
		"legacy-pi": {ProjectSkills: ".pi/skills", ProjectAgents: ".pi/agents"},
	})
	dirs = LegacyProjectDirs(custom.Consumers([]string{"pi", "legacy-pi"}))
	assert.Empty(t, dirs, "a directory still in use is not legacy")

	assert.Empty(t, LegacyProjectDirs(c.Consumers([]string{"codex"})))
}
