package installer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/jingkaihe/agentdeps/pkg/cache"
	"github.com/jingkaihe/agentdeps/pkg/config"
	"github.com/jingkaihe/agentdeps/pkg/install"
	"github.com/jingkaihe/agentdeps/pkg/registry"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCache serves prepared directories by cache key
type fakeCache struct {
	mu      sync.Mutex
	repos   map[string]string
	fail    map[string]error
	stale   map[string]error
	remotes []string
}

func (f *fakeCache) Ensure(_ context.Context, remote, _, key string) (*cache.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remotes = append(f.remotes, remote)
	if err, ok := f.fail[key]; ok {
		return nil, &cache.CloneError{Remote: remote, Err: err}
	}
	path, ok := f.repos[key]
	if !ok {
		return nil, errors.Errorf("unexpected key %s", key)
	}
	return &cache.Result{Path: path, UpdateErr: f.stale[key]}, nil
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func makeRepo(t *testing.T, skills []string, agents []string) string {
	t.Helper()
	root := t.TempDir()
	for _, s := range skills {
		write(t, filepath.Join(root, "skills", s, "SKILL.md"), "---\ndescription: "+s+"\n---\n")
	}
	for _, a := range agents {
		write(t, filepath.Join(root, "agents", a+".md"), a)
	}
	return root
}

func entries(t *testing.T, dir string) []string {
	t.Helper()
	list, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range list {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func dep(repo string, skills, agents config.Selection) config.Dependency {
	return config.Dependency{Repo: repo, Ref: "main", Skills: skills, Agents: agents}
}

func TestRun_ProjectScope(t *testing.T) {
	project := t.TempDir()
	home := t.TempDir()

	fc := &fakeCache{repos: map[string]string{
		"acme-skills-main": makeRepo(t, []string{"frontend", "backend"}, []string{"reviewer"}),
		"acme-extra-main":  makeRepo(t, []string{"docs"}, nil),
	}}
	inst := New(Options{Cache: fc, Backend: install.NewCopyBackend(), CloneMethod: cache.CloneMethodHTTPS, Concurrency: 2})

	consumers := registry.BuiltIn().Consumers([]string{"codex", "amp", "claude-code"})
	report := inst.Run(context.Background(), Request{
		Scope: registry.ScopeProject,
		Dependencies: []config.Dependency{
			dep("acme/skills", config.Names("frontend"), config.All()),
			dep("acme/extra", config.All(), config.None()),
		},
		Consumers:   consumers,
		ProjectRoot: project,
		Home:        home,
	})

	require.NoError(t, report.Err())
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Scopes, 1)

	scope := report.Scopes[0]
	assert.Equal(t, 2, scope.Dependencies)
	require.Len(t, scope.Targets, 2, "universal agents share one target")
	assert.Equal(t, []string{"Codex", "Amp"}, scope.Targets[0].Target.DisplayNames)
	assert.Equal(t, []string{"docs", "frontend"}, scope.Targets[0].Skills.Added)
	assert.Equal(t, []string{"reviewer"}, scope.Targets[0].Agents.Added)

	assert.Equal(t, []string{"docs", "frontend"}, entries(t, filepath.Join(project, ".agents", "skills", install.ManagedDirName)))
	assert.Equal(t, []string{"reviewer.md"}, entries(t, filepath.Join(project, ".agents", "agents", install.ManagedDirName)))
	assert.Equal(t, []string{"docs", "frontend"}, entries(t, filepath.Join(project, ".claude", "skills", install.ManagedDirName)))

	assert.ElementsMatch(t, []string{"https://github.com/acme/skills.git", "https://github.com/acme/extra.git"}, fc.remotes)
}

func TestRun_CloneFailureSkipsOnlyThatDependency(t *testing.T) {
	project := t.TempDir()
	fc := &fakeCache{
		repos: map[string]string{"acme-good-main": makeRepo(t, []string{"a"}, nil)},
		fail:  map[string]error{"acme-bad-main": errors.New("repository not found")},
	}
	inst := New(Options{Cache: fc, Backend: install.NewCopyBackend()})

	report := inst.Run(context.Background(), Request{
		Scope: registry.ScopeProject,
		Dependencies: []config.Dependency{
			dep("acme/bad", config.All(), config.All()),
			dep("acme/good", config.All(), config.All()),
		},
		Consumers:   registry.BuiltIn().Consumers([]string{"cursor"}),
		ProjectRoot: project,
		Home:        t.TempDir(),
	})

	require.Error(t, report.Err())
	assert.Equal(t, 1, report.ErrorCount())
	errs := report.Filter(LevelError)
	assert.Equal(t, "cache.clone", errs[0].Context)
	assert.Equal(t, "acme/bad", errs[0].Repo)
	assert.Contains(t, report.Err().Error(), "repository not found")

	assert.Equal(t, []string{"a"}, entries(t, filepath.Join(project, ".cursor", "skills", install.ManagedDirName)))
}

func TestRun_StaleCacheIsWarning(t *testing.T) {
	fc := &fakeCache{
		repos: map[string]string{"acme-x-main": makeRepo(t, []string{"a"}, []string{"b"})},
		stale: map[string]error{"acme-x-main": errors.New("network down")},
	}
	inst := New(Options{Cache: fc, Backend: install.NewCopyBackend()})

	report := inst.Run(context.Background(), Request{
		Scope:        registry.ScopeGlobal,
		Dependencies: []config.Dependency{dep("acme/x", config.All(), config.All())},
		Consumers:    registry.BuiltIn().Consumers([]string{"claude-code"}),
		Home:         t.TempDir(),
	})

	require.NoError(t, report.Err())
	warnings := report.Filter(LevelWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "cache.update", warnings[0].Context)
	assert.Equal(t, []string{"a"}, report.Scopes[0].Targets[0].Skills.Added)
}

func TestRun_GlobalScopeExpandsHome(t *testing.T) {
	home := t.TempDir()
	fc := &fakeCache{repos: map[string]string{"acme-x-main": makeRepo(t, []string{"a"}, nil)}}
	inst := New(Options{Cache: fc, Backend: install.NewCopyBackend()})

	report := inst.Run(context.Background(), Request{
		Scope:        registry.ScopeGlobal,
		Dependencies: []config.Dependency{dep("acme/x", config.All(), config.All())},
		Consumers:    registry.BuiltIn().Consumers([]string{"codex", "amp"}),
		Home:         home,
	})
	require.NoError(t, report.Err())
	require.Len(t, report.Scopes[0].Targets, 2, "global dirs differ per agent")

	assert.Equal(t, []string{"a"}, entries(t, filepath.Join(home, ".config", "codex", "skills", install.ManagedDirName)))
	assert.Equal(t, []string{"a"}, entries(t, filepath.Join(home, ".config", "amp", "skills", install.ManagedDirName)))
	_, err := os.Stat(filepath.Join(home, ".config", "codex", "agents", install.ManagedDirName))
	assert.True(t, os.IsNotExist(err), "no managed dir for an empty agent set")
}

func TestRun_LaterDependencyOverrides(t *testing.T) {
	project := t.TempDir()
	first := makeRepo(t, []string{"shared"}, nil)
	second := makeRepo(t, []string{"shared"}, nil)
	fc := &fakeCache{repos: map[string]string{"acme-one-main": first, "acme-two-main": second}}
	inst := New(Options{Cache: fc, Backend: install.NewLinkBackend(), Concurrency: 4})

	report := inst.Run(context.Background(), Request{
		Scope: registry.ScopeProject,
		Dependencies: []config.Dependency{
			dep("acme/one", config.All(), config.All()),
			dep("acme/two", config.All(), config.All()),
		},
		Consumers:   registry.BuiltIn().Consumers([]string{"roo"}),
		ProjectRoot: project,
		Home:        t.TempDir(),
	})
	require.NoError(t, report.Err())

	var merges []Event
	for _, e := range report.Filter(LevelWarning) {
		if e.Context == "install.merge" {
			merges = append(merges, e)
		}
	}
	require.Len(t, merges, 1)
	assert.Equal(t, "acme/two", merges[0].Repo)
	assert.Contains(t, merges[0].Message, `"shared" from acme/two overrides the one from acme/one`)

	link, err := os.Readlink(filepath.Join(project, ".roo", "skills", install.ManagedDirName, "shared"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(second, "skills", "shared"), link)
}

func TestRun_DiscoveryWarnings(t *testing.T) {
	fc := &fakeCache{repos: map[string]string{"acme-x-main": makeRepo(t, []string{"a"}, nil)}}
	inst := New(Options{Cache: fc, Backend: install.NewCopyBackend()})

	report := inst.Run(context.Background(), Request{
		Scope:        registry.ScopeProject,
		Dependencies: []config.Dependency{dep("acme/x", config.Names("a", "zzz"), config.All())},
		Consumers:    registry.BuiltIn().Consumers([]string{"cline"}),
		ProjectRoot:  t.TempDir(),
		Home:         t.TempDir(),
	})

	var messages []string
	for _, e := range report.Filter(LevelWarning) {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "skills not found in acme/x: zzz")
	assert.Contains(t, messages, "No agents found in acme/x (no agents/ directory)")
}

func TestRun_LegacyCleanup(t *testing.T) {
	project := t.TempDir()
	legacy := filepath.Join(project, ".pi", "skills")
	write(t, filepath.Join(legacy, install.ManagedDirName, "old", "SKILL.md"), "old")
	write(t, filepath.Join(legacy, "mine", "SKILL.md"), "mine")

	fc := &fakeCache{repos: map[string]string{"acme-x-main": makeRepo(t, []string{"a"}, nil)}}
	inst := New(Options{Cache: fc, Backend: install.NewCopyBackend()})

	report := inst.Run(context.Background(), Request{
		Scope:        registry.ScopeProject,
		Dependencies: []config.Dependency{dep("acme/x", config.All(), config.All())},
		Consumers:    registry.BuiltIn().Consumers([]string{"pi"}),
		ProjectRoot:  project,
		Home:         t.TempDir(),
	})
	require.NoError(t, report.Err())

	assert.Equal(t, []string{"mine"}, entries(t, legacy))
	assert.Equal(t, []string{"a"}, entries(t, filepath.Join(project, ".agents", "skills", install.ManagedDirName)))
	require.Len(t, report.Filter(LevelInfo), 1)
	assert.Equal(t, "install.migrate", report.Filter(LevelInfo)[0].Context)
}

func TestRun_SyncFailureIsReported(t *testing.T) {
	project := t.TempDir()
	// a file where the agent's skills directory should be
	write(t, filepath.Join(project, ".windsurf", "skills"), "not a directory")

	fc := &fakeCache{repos: map[string]string{"acme-x-main": makeRepo(t, []string{"a"}, []string{"b"})}}
	inst := New(Options{Cache: fc, Backend: install.NewCopyBackend()})

	report := inst.Run(context.Background(), Request{
		Scope:        registry.ScopeProject,
		Dependencies: []config.Dependency{dep("acme/x", config.All(), config.All())},
		Consumers:    registry.BuiltIn().Consumers([]string{"windsurf"}),
		ProjectRoot:  project,
		Home:         t.TempDir(),
	})

	require.Equal(t, 1, report.ErrorCount())
	assert.Equal(t, "install.sync", report.Filter(LevelError)[0].Context)
	target := report.Scopes[0].Targets[0]
	assert.True(t, target.Failed)
	assert.Equal(t, []string{"b"}, target.Agents.Added, "the agents pass still runs")
}

func TestReport_Err(t *testing.T) {
	r := &Report{}
	assert.NoError(t, r.Err())

	r.add(Event{Level: LevelWarning, Message: "meh"})
	assert.NoError(t, r.Err())

	r.add(Event{Level: LevelError, Message: "first"})
	r.add(Event{Level: LevelError, Message: "second", Err: errors.New("cause")})
	err := r.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "second: cause")
	assert.Equal(t, 2, r.ErrorCount())
}

func TestRequest_Validate(t *testing.T) {
	assert.ErrorIs(t, Request{Scope: registry.ScopeGlobal}.Validate(), ErrNoConsumers)

	consumers := registry.BuiltIn().Consumers([]string{"pi"})
	assert.Error(t, Request{Scope: registry.ScopeProject, Consumers: consumers}.Validate())
	assert.NoError(t, Request{Scope: registry.ScopeProject, Consumers: consumers, ProjectRoot: "/p"}.Validate())
}
