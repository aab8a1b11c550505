// Package installer runs an install: it brings every dependency's repository
// into the cache, discovers and selects its items, and reconciles the managed
// directories of every configured agent, scope by scope.
//
// One failing dependency or target never stops the others. Failures become
// error events on the returned Report.
package installer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jingkaihe/agentdeps/pkg/cache"
	"github.com/jingkaihe/agentdeps/pkg/config"
	"github.com/jingkaihe/agentdeps/pkg/discovery"
	"github.com/jingkaihe/agentdeps/pkg/install"
	"github.com/jingkaihe/agentdeps/pkg/logger"
	"github.com/jingkaihe/agentdeps/pkg/registry"
	"github.com/jingkaihe/agentdeps/pkg/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// FieldRunID is the log field carrying the run id
const FieldRunID = "run_id"

// RepoEnsurer provides working copies of dependency repositories
type RepoEnsurer interface {
	Ensure(ctx context.Context, remote, ref, key string) (*cache.Result, error)
}

// Options configures an Installer
type Options struct {
	Cache       RepoEnsurer
	Syncer      *install.Syncer
	Backend     install.Backend
	CloneMethod cache.CloneMethod
	// Concurrency bounds how many dependencies are fetched at once
	Concurrency int
}

// Installer runs installs
type Installer struct {
	cache       RepoEnsurer
	syncer      *install.Syncer
	backend     install.Backend
	cloneMethod cache.CloneMethod
	concurrency int
}

// New creates an Installer
func New(opts Options) *Installer {
	syncer := opts.Syncer
	if syncer == nil {
		syncer = install.NewSyncer()
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	method := opts.CloneMethod
	if method == "" {
		method = cache.CloneMethodSSH
	}
	return &Installer{
		cache:       opts.Cache,
		syncer:      syncer,
		backend:     opts.Backend,
		cloneMethod: method,
		concurrency: concurrency,
	}
}

// Request is one scope to install
type Request struct {
	Scope        registry.Scope
	Dependencies []config.Dependency
	Consumers    []registry.Agent
	// ProjectRoot anchors project-relative agent directories
	ProjectRoot string
	// Home expands ~ in agent directories
	Home string
}

// resolvedDependency is a dependency after caching, discovery and selection
type resolvedDependency struct {
	dep    config.Dependency
	ok     bool
	skills []discovery.Item
	agents []discovery.Item
	events []Event
}

// Run installs every request in order and reports what happened
func (i *Installer) Run(ctx context.Context, requests ...Request) *Report {
	report := &Report{RunID: uuid.NewString()}
	ctx = logger.WithLogger(ctx, logger.G(ctx).WithField(FieldRunID, report.RunID))

	ctx, span := telemetry.Tracer("agentdeps.installer").Start(ctx, "installer.run",
		trace.WithAttributes(
			attribute.String("run.id", report.RunID),
			attribute.Int("run.scopes", len(requests)),
		))
	defer func() {
		telemetry.EndSpan(span, report.Err())
	}()

	for _, req := range requests {
		report.Scopes = append(report.Scopes, i.runScope(ctx, req, report))
	}
	return report
}

func (i *Installer) runScope(ctx context.Context, req Request, report *Report) ScopeResult {
	ctx, span := telemetry.Tracer("agentdeps.installer").Start(ctx, "installer.scope",
		trace.WithAttributes(
			attribute.String("scope", string(req.Scope)),
			attribute.Int("scope.dependencies", len(req.Dependencies)),
		))
	defer span.End()

	result := ScopeResult{Scope: req.Scope, Dependencies: len(req.Dependencies)}

	resolved := i.resolveAll(ctx, req)
	skills, agents := i.merge(ctx, req.Scope, resolved, report)

	if req.Scope == registry.ScopeProject {
		i.cleanupLegacy(ctx, req, report)
	}

	for _, target := range registry.Resolve(req.Consumers, req.Scope, req.ProjectRoot, req.Home) {
		result.Targets = append(result.Targets, i.syncTarget(ctx, req.Scope, target, skills, agents, report))
	}
	return result
}

// resolveAll caches and discovers every dependency concurrently. Results
// keep declaration order.
func (i *Installer) resolveAll(ctx context.Context, req Request) []resolvedDependency {
	resolved := make([]resolvedDependency, len(req.Dependencies))

	var g errgroup.Group
	g.SetLimit(i.concurrency)
	for idx, dep := range req.Dependencies {
		g.Go(func() error {
			resolved[idx] = i.resolve(ctx, req.Scope, dep)
			return nil
		})
	}
	_ = g.Wait()

	return resolved
}

func (i *Installer) resolve(ctx context.Context, scope registry.Scope, dep config.Dependency) resolvedDependency {
	r := resolvedDependency{dep: dep}
	event := func(level Level, label, message string, err error) {
		r.events = append(r.events, Event{Level: level, Context: label, Scope: scope, Repo: dep.Repo, Message: message, Err: err})
	}

	remote := cache.ResolveURL(dep.Repo, i.cloneMethod)
	res, err := i.cache.Ensure(ctx, remote, dep.Ref, dep.CacheKey())
	if err != nil {
		event(LevelError, "cache.clone", fmt.Sprintf("failed to cache %s (%s), skipping", dep.Repo, dep.Ref), err)
		return r
	}
	if res.UpdateErr != nil {
		event(LevelWarning, "cache.update", fmt.Sprintf("could not update %s, using cached copy", dep.Repo), res.UpdateErr)
	}

	for _, kind := range []discovery.Kind{discovery.KindSkill, discovery.KindAgent} {
		sel := dep.Skills
		if kind == discovery.KindAgent {
			sel = dep.Agents
		}

		found, err := discovery.Discover(res.Path, kind)
		if err != nil {
			event(LevelError, "discovery", fmt.Sprintf("failed to discover %s in %s", kind.Plural(), dep.Repo), err)
			return r
		}
		selected, missing, err := discovery.Filter(found, sel)
		if err != nil {
			event(LevelError, "discovery", fmt.Sprintf("invalid %s selection for %s", kind.Plural(), dep.Repo), err)
			return r
		}
		for _, w := range discovery.Warnings(dep.Repo, kind, found, sel, missing) {
			event(LevelWarning, "discovery", w, nil)
		}

		if kind == discovery.KindSkill {
			r.skills = selected
		} else {
			r.agents = selected
		}
	}

	r.ok = true
	return r
}

// merge folds resolved dependencies into desired maps in declaration order;
// a later dependency's item replaces an earlier one with the same name
func (i *Installer) merge(ctx context.Context, scope registry.Scope, resolved []resolvedDependency, report *Report) (skills, agents map[string]string) {
	skills = make(map[string]string)
	agents = make(map[string]string)
	skillOwner := make(map[string]string)
	agentOwner := make(map[string]string)

	for _, r := range resolved {
		for _, e := range r.events {
			i.record(ctx, report, e)
		}
		if !r.ok {
			continue
		}

		put := func(desired, owner map[string]string, items []discovery.Item) {
			for _, item := range items {
				if prev, ok := owner[item.Name]; ok && prev != r.dep.Repo {
					i.record(ctx, report, Event{
						Level:   LevelWarning,
						Context: "install.merge",
						Scope:   scope,
						Repo:    r.dep.Repo,
						Message: fmt.Sprintf("%s %q from %s overrides the one from %s", item.Kind, item.Name, r.dep.Repo, prev),
					})
				}
				desired[item.Name] = item.SourcePath
				owner[item.Name] = r.dep.Repo
			}
		}
		put(skills, skillOwner, r.skills)
		put(agents, agentOwner, r.agents)
	}
	return skills, agents
}

func (i *Installer) cleanupLegacy(ctx context.Context, req Request, report *Report) {
	var parents []string
	for _, dir := range registry.LegacyProjectDirs(req.Consumers) {
		parents = append(parents, filepath.Join(req.ProjectRoot, filepath.FromSlash(dir)))
	}
	if len(parents) == 0 {
		return
	}

	removed, err := install.CleanupLegacyManagedDirs(parents)
	for _, dir := range removed {
		i.record(ctx, report, Event{
			Level:   LevelInfo,
			Context: "install.migrate",
			Scope:   req.Scope,
			Message: "removed legacy managed directory " + dir,
		})
	}
	if err != nil {
		i.record(ctx, report, Event{
			Level:   LevelWarning,
			Context: "install.migrate",
			Scope:   req.Scope,
			Message: "failed to clean up legacy managed directories",
			Err:     err,
		})
	}
}

func (i *Installer) syncTarget(ctx context.Context, scope registry.Scope, target registry.DedupTarget, skills, agents map[string]string, report *Report) TargetResult {
	result := TargetResult{Target: target}

	passes := []struct {
		dir     string
		desired map[string]string
		summary **install.SyncSummary
	}{
		{target.SkillsDir, skills, &result.Skills},
		{target.AgentsDir, agents, &result.Agents},
	}

	for _, pass := range passes {
		managed := install.ManagedDir(pass.dir)
		summary, err := i.syncer.Sync(ctx, managed, pass.desired, i.backend)
		*pass.summary = summary
		if err != nil {
			result.Failed = true
			i.record(ctx, report, Event{
				Level:   LevelError,
				Context: "install.sync",
				Scope:   scope,
				Message: fmt.Sprintf("failed to sync %s for %s", managed, target.Label()),
				Err:     err,
			})
		}
	}
	return result
}

// record appends e to the report and logs it, so warnings and errors reach
// the durable log
func (i *Installer) record(ctx context.Context, report *Report, e Event) {
	report.add(e)
	telemetry.AddEvent(ctx, e.Context,
		attribute.String("event.level", string(e.Level)),
		attribute.String("event.repo", e.Repo),
		attribute.String("event.message", e.Message),
	)

	log := logger.C(ctx, e.Context).WithField("scope", string(e.Scope))
	if e.Repo != "" {
		log = log.WithField("repo", e.Repo)
	}
	if e.Err != nil {
		log = log.WithError(e.Err)
	}

	switch e.Level {
	case LevelError:
		log.Error(e.Message)
	case LevelWarning:
		log.Warn(e.Message)
	default:
		log.Info(e.Message)
	}
}

// ErrNoConsumers is returned by Validate when no agent is configured
var ErrNoConsumers = errors.New("no agents configured")

// Validate checks that a request can do anything useful
func (r Request) Validate() error {
	if len(r.Consumers) == 0 {
		return ErrNoConsumers
	}
	if r.Scope == registry.ScopeProject && r.ProjectRoot == "" {
		return errors.New("project scope requires a project root")
	}
	return nil
}
