package main

import (
	"testing"

	"github.com/jingkaihe/agentdeps/pkg/config"
	"github.com/jingkaihe/agentdeps/pkg/discovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*AddConfig)
		wantErr bool
	}{
		{"defaults", func(*AddConfig) {}, false},
		{"empty ref", func(c *AddConfig) { c.Ref = " " }, true},
		{"no skills with skill", func(c *AddConfig) { c.NoSkills = true; c.Skills = []string{"a"} }, true},
		{"no agents with all agents", func(c *AddConfig) { c.NoAgents = true; c.AllAgents = true }, true},
		{"all with no skills", func(c *AddConfig) { c.All = true; c.NoSkills = true }, true},
		{"skill and no agents", func(c *AddConfig) { c.Skills = []string{"a"}; c.NoAgents = true }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewAddConfig()
			tt.modify(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAddConfig_Selections(t *testing.T) {
	tests := []struct {
		name     string
		config   AddConfig
		explicit bool
		skills   config.Selection
		agents   config.Selection
	}{
		{"nothing given", AddConfig{}, false, config.All(), config.All()},
		{"all", AddConfig{All: true}, true, config.All(), config.All()},
		{"named skills", AddConfig{Skills: []string{"a", "b"}}, true, config.Names("a", "b"), config.All()},
		{"no agents", AddConfig{NoAgents: true}, true, config.All(), config.None()},
		{"all skills and named agents", AddConfig{AllSkills: true, Agents: []string{"x"}}, true, config.All(), config.Names("x")},
		{"no skills", AddConfig{NoSkills: true, AllAgents: true}, true, config.None(), config.All()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.explicit, tt.config.Explicit())
			skills, agents := tt.config.Selections()
			assert.Equal(t, tt.skills, skills)
			assert.Equal(t, tt.agents, agents)
		})
	}
}

func pickItems(names ...string) []discovery.Item {
	items := make([]discovery.Item, 0, len(names))
	for _, n := range names {
		items = append(items, discovery.Item{Name: n, Kind: discovery.KindSkill})
	}
	return items
}

func TestParsePick(t *testing.T) {
	items := pickItems("lint", "review", "test-go", "test-py")

	tests := []struct {
		name     string
		answer   string
		expected config.Selection
		wantErr  bool
	}{
		{"blank selects all", "", config.All(), false},
		{"star", "*", config.All(), false},
		{"dash", "-", config.None(), false},
		{"none word", "none", config.None(), false},
		{"names", "lint, review", config.Names("lint", "review"), false},
		{"pattern", "test-*", config.Names("test-*"), false},
		{"every name collapses to all", "lint review test-go test-py", config.All(), false},
		{"unknown name", "deploy", config.Selection{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePick(tt.answer, items)
			if tt.wantErr {
				assert.ErrorContains(t, err, "deploy")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFormatItemMenu(t *testing.T) {
	items := []discovery.Item{
		{Name: "lint", Description: "Runs linters"},
		{Name: "review"},
	}

	assert.Equal(t, "  - lint: Runs linters\n  - review", formatItemMenu(items))
}

func TestCountLabel(t *testing.T) {
	assert.Equal(t, "0 skills", countLabel(0, "skill"))
	assert.Equal(t, "1 agent", countLabel(1, "agent"))
	assert.Equal(t, "3 skills", countLabel(3, "skill"))
}
