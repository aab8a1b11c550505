package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jingkaihe/agentdeps/pkg/cache"
	"github.com/jingkaihe/agentdeps/pkg/config"
	"github.com/jingkaihe/agentdeps/pkg/install"
	"github.com/jingkaihe/agentdeps/pkg/installer"
	"github.com/jingkaihe/agentdeps/pkg/logger"
	"github.com/jingkaihe/agentdeps/pkg/paths"
	"github.com/jingkaihe/agentdeps/pkg/presenter"
	"github.com/jingkaihe/agentdeps/pkg/registry"
	"github.com/jingkaihe/agentdeps/pkg/vcs"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
)

// errGitMissing is returned by the preflight check when git cannot be run
var errGitMissing = errors.New("git is not installed or not in PATH.\n" +
	"  agentdeps requires git to clone and update repositories.\n" +
	"  Install git: https://git-scm.com/downloads")

// app is the wiring shared by the commands that install
type app struct {
	cfg        *config.GlobalConfig
	catalog    registry.Catalog
	git        *vcs.Git
	cache      *cache.RepoCache
	installer  *installer.Installer
	projectDir string
	home       string
}

// newApp wires the cache, backend and installer described by cfg
func newApp(cfg *config.GlobalConfig) (*app, error) {
	backend, err := install.NewBackend(cfg.InstallMethod)
	if err != nil {
		return nil, err
	}

	projectDir, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get current working directory")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get home directory")
	}

	git := vcs.NewGit(vcs.WithTimeout(cfg.GitTimeout))
	repoCache := cache.New(paths.CacheDir(), git, cache.WithFetchAttempts(cfg.FetchAttempts))

	return &app{
		cfg:     cfg,
		catalog: cfg.Catalog(),
		git:     git,
		cache:   repoCache,
		installer: installer.New(installer.Options{
			Cache:       repoCache,
			Backend:     backend,
			CloneMethod: cfg.CloneMethod,
			Concurrency: cfg.Concurrency,
		}),
		projectDir: projectDir,
		home:       home,
	}, nil
}

// preflight checks that git is available and loads the global config,
// running the interactive setup first when no config exists
func preflight(ctx context.Context) (*app, error) {
	if _, err := vcs.NewGit().Version(ctx); err != nil {
		logger.C(ctx, "preflight").WithError(err).Debug("git version failed")
		return nil, errGitMissing
	}

	path := paths.ConfigFile()
	if !config.GlobalExists(path) {
		if !isInteractive() {
			return nil, errors.New("no configuration found and terminal is not interactive.\n" +
				"  Run `agentdeps config` in an interactive terminal first.")
		}

		presenter.Info("Welcome to agentdeps! Let's set up your configuration.\n")
		defaults := config.DefaultGlobal()
		cfg, err := runSetup(registry.BuiltIn(), &defaults)
		if err != nil {
			return nil, err
		}
		if err := config.SaveGlobal(path, cfg); err != nil {
			return nil, errors.Wrap(err, "failed to save configuration")
		}
		presenter.Success(fmt.Sprintf("Configuration saved to %s", path))
	}

	cfg, err := config.LoadGlobal(path)
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}

func isInteractive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// scopeSelection picks which dependency lists an install covers
type scopeSelection struct {
	Global  bool
	Project bool
}

// install runs the global and project dependency lists selected by scopes
// and prints the outcome. Dependency and target failures are reported but
// do not fail the command.
func (a *app) install(ctx context.Context, scopes scopeSelection) error {
	if unknown := a.catalog.Unknown(a.cfg.Agents); len(unknown) > 0 {
		presenter.Warning(fmt.Sprintf("Unknown agents in config: %s", joinNames(unknown)))
	}
	consumers := a.catalog.Consumers(a.cfg.Agents)

	var requests []installer.Request
	if scopes.Global {
		deps, found, err := loadDependencies(paths.GlobalDependenciesFile())
		if err != nil {
			return err
		}
		if found && len(deps) > 0 {
			requests = append(requests, a.request(registry.ScopeGlobal, deps, consumers))
		}
	}
	if scopes.Project {
		deps, found, err := loadDependencies(paths.ProjectDependenciesFile(a.projectDir))
		if err != nil {
			return err
		}
		switch {
		case !found:
			presenter.Info("No project agents.yaml found, only global dependencies processed")
		case len(deps) == 0:
			presenter.Info("No project dependencies defined")
		default:
			requests = append(requests, a.request(registry.ScopeProject, deps, consumers))
		}
	}

	if len(requests) == 0 {
		return nil
	}
	for _, req := range requests {
		if err := req.Validate(); err != nil {
			if errors.Is(err, installer.ErrNoConsumers) {
				return errors.Wrap(err, "select at least one agent with `agentdeps config`")
			}
			return err
		}
	}

	report := a.installer.Run(ctx, requests...)
	printReport(report, paths.LogFile())
	return nil
}

func (a *app) request(scope registry.Scope, deps []config.Dependency, consumers []registry.Agent) installer.Request {
	return installer.Request{
		Scope:        scope,
		Dependencies: deps,
		Consumers:    consumers,
		ProjectRoot:  a.projectDir,
		Home:         a.home,
	}
}

// loadDependencies reads a dependency list, printing its warnings. A missing
// file is not an error.
func loadDependencies(path string) ([]config.Dependency, bool, error) {
	if !config.ProjectExists(path) {
		return nil, false, nil
	}
	project, warnings, err := config.LoadProject(path)
	for _, w := range warnings {
		presenter.Warning(w)
	}
	if err != nil {
		return nil, true, err
	}
	return project.Dependencies, true, nil
}

// printReport shows the events and per-scope summaries of a run
func printReport(report *installer.Report, logPath string) {
	for _, e := range report.Events {
		switch e.Level {
		case installer.LevelError:
			err := e.Err
			if err == nil {
				err = errors.New(e.Message)
				presenter.Error(err, "")
			} else {
				presenter.Error(err, e.Message)
			}
		case installer.LevelWarning:
			presenter.Warning(e.Message)
		}
	}

	for _, scope := range report.Scopes {
		presenter.Summary(scopeLabel(scope.Scope), targetCounts(scope.Targets))
	}

	presenter.LogHint(report.ErrorCount(), logPath)
}

func scopeLabel(scope registry.Scope) string {
	if scope == registry.ScopeGlobal {
		return "Global"
	}
	return "Project"
}

func targetCounts(results []installer.TargetResult) []presenter.TargetCounts {
	counts := make([]presenter.TargetCounts, 0, len(results))
	for _, r := range results {
		c := presenter.TargetCounts{Label: r.Target.Label(), Failed: r.Failed}
		if r.Skills != nil {
			c.SkillsAdded = len(r.Skills.Added)
			c.Removed += len(r.Skills.Removed)
		}
		if r.Agents != nil {
			c.AgentsAdded = len(r.Agents.Added)
			c.Removed += len(r.Agents.Removed)
		}
		counts = append(counts, c)
	}
	return counts
}
