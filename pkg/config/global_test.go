package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jingkaihe/agentdeps/pkg/cache"
	"github.com/jingkaihe/agentdeps/pkg/install"
	"github.com/jingkaihe/agentdeps/pkg/registry"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadGlobal_Defaults(t *testing.T) {
	path := writeConfig(t, "agents: [claude-code, codex]\n")

	cfg, err := LoadGlobal(path)
	require.NoError(t, err)
	assert.Equal(t, cache.CloneMethodSSH, cfg.CloneMethod)
	assert.Equal(t, install.MethodLink, cfg.InstallMethod)
	assert.Equal(t, []string{"claude-code", "codex"}, cfg.Agents)
	assert.Equal(t, DefaultGitTimeout, cfg.GitTimeout)
	assert.Equal(t, uint(DefaultFetchAttempts), cfg.FetchAttempts)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Empty(t, cfg.CustomAgents)
}

func TestLoadGlobal_AllKeys(t *testing.T) {
	path := writeConfig(t, `clone_method: https
install_method: copy
agents:
  - pi
git_timeout: 30s
fetch_attempts: 5
concurrency: 2
tracing:
  enabled: true
  sampler: ratio
  ratio: 0.25
custom_agents:
  zed:
    display_name: Zed
    project_skills: .zed/skills
    project_agents: .zed/agents
    global_skills: ~/.zed/skills
    global_agents: ~/.zed/agents
`)

	cfg, err := LoadGlobal(path)
	require.NoError(t, err)
	assert.Equal(t, cache.CloneMethodHTTPS, cfg.CloneMethod)
	assert.Equal(t, install.MethodCopy, cfg.InstallMethod)
	assert.Equal(t, 30*time.Second, cfg.GitTimeout)
	assert.Equal(t, uint(5), cfg.FetchAttempts)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "ratio", cfg.Tracing.Sampler)
	assert.InDelta(t, 0.25, cfg.Tracing.Ratio, 1e-9)
	assert.Equal(t, registry.CustomAgent{
		DisplayName:   "Zed",
		ProjectSkills: ".zed/skills",
		ProjectAgents: ".zed/agents",
		GlobalSkills:  "~/.zed/skills",
		GlobalAgents:  "~/.zed/agents",
	}, cfg.CustomAgents["zed"])

	zed, ok := cfg.Catalog().Lookup("zed")
	require.True(t, ok)
	assert.Equal(t, "Zed", zed.DisplayName)
}

func TestLoadGlobal_EnvOverride(t *testing.T) {
	path := writeConfig(t, "install_method: link\n")
	t.Setenv("AGENTDEPS_INSTALL_METHOD", "copy")

	cfg, err := LoadGlobal(path)
	require.NoError(t, err)
	assert.Equal(t, install.MethodCopy, cfg.InstallMethod)
}

func TestLoadGlobal_NotFound(t *testing.T) {
	_, err := LoadGlobal(filepath.Join(t.TempDir(), "config.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadGlobal_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"clone method", "clone_method: ftp\n", "clone_method"},
		{"install method", "install_method: hardlink\n", "install_method"},
		{"fetch attempts", "fetch_attempts: 0\n", "fetch_attempts"},
		{"concurrency", "concurrency: 0\n", "concurrency"},
		{"sampler", "tracing:\n  sampler: sometimes\n", "tracing.sampler"},
		{"ratio", "tracing:\n  ratio: 2\n", "tracing.ratio"},
		{"custom agent unknown key", "custom_agents:\n  zed:\n    project_skill: x\n", "custom_agents"},
		{"custom agent missing path", "custom_agents:\n  zed:\n    project_skills: .zed/skills\n", "custom_agents.zed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadGlobal(writeConfig(t, tt.content))
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestLoadGlobal_ValidationMessage(t *testing.T) {
	_, err := LoadGlobal(writeConfig(t, "clone_method: ftp\n"))
	require.Error(t, err)
	assert.Equal(t, `invalid clone_method: "ftp", must be "ssh" or "https"`, err.Error())
}

func TestSaveGlobal_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultGlobal()
	cfg.CloneMethod = cache.CloneMethodHTTPS
	cfg.Agents = []string{"claude-code"}
	cfg.GitTimeout = time.Minute
	cfg.CustomAgents = map[string]registry.CustomAgent{
		"zed": {ProjectSkills: "a", ProjectAgents: "b", GlobalSkills: "c", GlobalAgents: "d"},
	}

	require.NoError(t, SaveGlobal(path, &cfg))
	assert.True(t, GlobalExists(path))

	loaded, err := LoadGlobal(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, *loaded)
}

func TestSaveGlobal_OmitsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultGlobal()
	require.NoError(t, SaveGlobal(path, &cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "clone_method: ssh")
	assert.Contains(t, content, "install_method: link")
	assert.NotContains(t, content, "git_timeout")
	assert.NotContains(t, content, "tracing")
	assert.NotContains(t, content, "custom_agents")
}

func TestSaveGlobal_KeepsForeignKeys(t *testing.T) {
	path := writeConfig(t, "# managed by dotfiles\n"+
		"clone_method: https\n"+
		"editor: vim\n"+
		"git_timeout: 1m\n"+
		"extras:\n"+
		"  theme: dark\n")

	cfg, err := LoadGlobal(path)
	require.NoError(t, err)
	cfg.InstallMethod = install.MethodCopy
	cfg.GitTimeout = DefaultGitTimeout
	require.NoError(t, SaveGlobal(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "install_method: copy")
	assert.Contains(t, content, "editor: vim")
	assert.Contains(t, content, "theme: dark")
	assert.NotContains(t, content, "git_timeout", "owned keys follow cfg")

	loaded, err := LoadGlobal(path)
	require.NoError(t, err)
	assert.Equal(t, *cfg, *loaded)
}

func TestSaveGlobal_RejectsInvalid(t *testing.T) {
	cfg := DefaultGlobal()
	cfg.InstallMethod = "hardlink"
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.Error(t, SaveGlobal(path, &cfg))
	assert.False(t, GlobalExists(path))
}
