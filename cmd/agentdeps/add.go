package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jingkaihe/agentdeps/pkg/cache"
	"github.com/jingkaihe/agentdeps/pkg/config"
	"github.com/jingkaihe/agentdeps/pkg/discovery"
	"github.com/jingkaihe/agentdeps/pkg/paths"
	"github.com/jingkaihe/agentdeps/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// AddConfig holds configuration for the add command
type AddConfig struct {
	Ref       string
	Skills    []string
	Agents    []string
	All       bool
	AllSkills bool
	AllAgents bool
	NoSkills  bool
	NoAgents  bool
	Global    bool
}

// NewAddConfig creates a new AddConfig with default values
func NewAddConfig() *AddConfig {
	return &AddConfig{
		Ref: config.DefaultRef,
	}
}

// Validate rejects contradictory selection flags
func (c *AddConfig) Validate() error {
	if strings.TrimSpace(c.Ref) == "" {
		return errors.New("--ref must not be empty")
	}
	if c.NoSkills && (c.AllSkills || len(c.Skills) > 0) {
		return errors.New("--no-skills cannot be combined with --skill or --all-skills")
	}
	if c.NoAgents && (c.AllAgents || len(c.Agents) > 0) {
		return errors.New("--no-agents cannot be combined with --agent or --all-agents")
	}
	if c.All && (c.NoSkills || c.NoAgents) {
		return errors.New("--all cannot be combined with --no-skills or --no-agents")
	}
	return nil
}

// Explicit reports whether any selection flag was given
func (c *AddConfig) Explicit() bool {
	return c.All || c.AllSkills || c.AllAgents || c.NoSkills || c.NoAgents ||
		len(c.Skills) > 0 || len(c.Agents) > 0
}

// Selections returns the skills and agents selections the flags ask for.
// A kind without a flag of its own selects everything.
func (c *AddConfig) Selections() (skills, agents config.Selection) {
	return flagSelection(c.All || c.AllSkills, c.NoSkills, c.Skills),
		flagSelection(c.All || c.AllAgents, c.NoAgents, c.Agents)
}

func flagSelection(all, none bool, names []string) config.Selection {
	switch {
	case none:
		return config.None()
	case all || len(names) == 0:
		return config.All()
	default:
		return config.Names(names...)
	}
}

var addCmd = &cobra.Command{
	Use:   "add <repo>",
	Short: "Add a dependency to agents.yaml",
	Long: `Add a repository to agents.yaml and install it.

The repository is fetched into the cache first so its skills and agents can
be listed. Without selection flags you are asked which ones to install when
the terminal is interactive; otherwise everything is selected.

Examples:
  agentdeps add owner/repo                          # Pick interactively
  agentdeps add owner/repo --all                    # Every skill and agent
  agentdeps add owner/repo --skill review --no-agents
  agentdeps add owner/repo --ref v1.2.0 -g          # Pin a tag in the global agents.yaml
  agentdeps add https://gitlab.com/team/repo.git    # Any git URL
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ac := getAddConfigFromFlags(cmd)
		if err := ac.Validate(); err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := preflight(ctx)
		if err != nil {
			return err
		}
		return a.add(ctx, args[0], ac)
	},
}

func init() {
	defaults := NewAddConfig()
	addCmd.Flags().String("ref", defaults.Ref, "Git ref to install (branch, tag or commit SHA)")
	addCmd.Flags().StringArray("skill", nil, "Install a specific skill (repeatable, globs allowed)")
	addCmd.Flags().StringArray("agent", nil, "Install a specific agent (repeatable, globs allowed)")
	addCmd.Flags().Bool("all", false, "Install all skills and agents")
	addCmd.Flags().Bool("all-skills", false, "Install all skills")
	addCmd.Flags().Bool("all-agents", false, "Install all agents")
	addCmd.Flags().Bool("no-skills", false, "Don't install any skills")
	addCmd.Flags().Bool("no-agents", false, "Don't install any agents")
	addCmd.Flags().BoolP("global", "g", false, "Add to the global agents.yaml")
}

// getAddConfigFromFlags extracts add configuration from command flags
func getAddConfigFromFlags(cmd *cobra.Command) *AddConfig {
	config := NewAddConfig()

	if ref, err := cmd.Flags().GetString("ref"); err == nil {
		config.Ref = ref
	}
	if skills, err := cmd.Flags().GetStringArray("skill"); err == nil {
		config.Skills = skills
	}
	if agents, err := cmd.Flags().GetStringArray("agent"); err == nil {
		config.Agents = agents
	}
	if all, err := cmd.Flags().GetBool("all"); err == nil {
		config.All = all
	}
	if allSkills, err := cmd.Flags().GetBool("all-skills"); err == nil {
		config.AllSkills = allSkills
	}
	if allAgents, err := cmd.Flags().GetBool("all-agents"); err == nil {
		config.AllAgents = allAgents
	}
	if noSkills, err := cmd.Flags().GetBool("no-skills"); err == nil {
		config.NoSkills = noSkills
	}
	if noAgents, err := cmd.Flags().GetBool("no-agents"); err == nil {
		config.NoAgents = noAgents
	}
	if global, err := cmd.Flags().GetBool("global"); err == nil {
		config.Global = global
	}

	return config
}

func dependenciesFile(a *app, global bool) string {
	if global {
		return paths.GlobalDependenciesFile()
	}
	return paths.ProjectDependenciesFile(a.projectDir)
}

func loadOrEmpty(path string) (*config.Project, error) {
	if !config.ProjectExists(path) {
		return &config.Project{}, nil
	}
	project, warnings, err := config.LoadProject(path)
	for _, w := range warnings {
		presenter.Warning(w)
	}
	return project, err
}

func (a *app) add(ctx context.Context, repo string, ac *AddConfig) error {
	path := dependenciesFile(a, ac.Global)
	project, err := loadOrEmpty(path)
	if err != nil {
		return err
	}
	if i := project.Find(repo); i >= 0 {
		return errors.Errorf("%s already exists in %s. Edit the file directly to modify it", project.Dependencies[i].Repo, path)
	}

	presenter.Info(fmt.Sprintf("Fetching %s...", repo))
	result, err := a.cache.Ensure(ctx, cache.ResolveURL(repo, a.cfg.CloneMethod), ac.Ref, cache.DeriveKey(repo, ac.Ref))
	if err != nil {
		return errors.Wrapf(err, "failed to fetch %s", repo)
	}
	if result.UpdateErr != nil {
		presenter.Warning(fmt.Sprintf("Could not update %s, using the cached copy: %v", repo, result.UpdateErr))
	}

	skills, err := discovery.DiscoverSkills(result.Path)
	if err != nil {
		return err
	}
	agents, err := discovery.DiscoverAgents(result.Path)
	if err != nil {
		return err
	}
	presenter.Info(fmt.Sprintf("  Found %s, %s", countLabel(len(skills), "skill"), countLabel(len(agents), "agent")))

	skillSel, agentSel := ac.Selections()
	if !ac.Explicit() && isInteractive() {
		if skillSel, err = pick(discovery.KindSkill, skills); err != nil {
			return err
		}
		if agentSel, err = pick(discovery.KindAgent, agents); err != nil {
			return err
		}
	}

	dep := config.Dependency{Repo: repo, Ref: ac.Ref, Skills: skillSel, Agents: agentSel}
	if err := project.Add(dep); err != nil {
		return err
	}
	if err := config.SaveProject(path, project); err != nil {
		return errors.Wrapf(err, "failed to save %s", path)
	}
	presenter.Success(fmt.Sprintf("Added %s to %s", repo, path))

	return a.install(ctx, scopeSelection{Global: true, Project: true})
}

// pick asks which items of one kind to install. Selecting every item is
// stored as all so that items added to the repository later are picked up.
func pick(kind discovery.Kind, items []discovery.Item) (config.Selection, error) {
	if len(items) == 0 {
		return config.None(), nil
	}

	presenter.Info("")
	presenter.Info(formatItemMenu(items))
	answer := presenter.Prompt(fmt.Sprintf("Select %s to install (comma-separated names, * for all, - for none)", kind.Plural()))
	return parsePick(answer, items)
}

func formatItemMenu(items []discovery.Item) string {
	var b strings.Builder
	for _, item := range items {
		if item.Description != "" {
			fmt.Fprintf(&b, "  - %s: %s\n", item.Name, item.Description)
		} else {
			fmt.Fprintf(&b, "  - %s\n", item.Name)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// parsePick turns a picker answer into a selection. Blank or * selects all,
// - or none selects nothing, otherwise the answer lists names or patterns
// which must match something.
func parsePick(answer string, items []discovery.Item) (config.Selection, error) {
	fields := strings.FieldsFunc(answer, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return config.All(), nil
	}
	if len(fields) == 1 {
		switch strings.ToLower(fields[0]) {
		case "*", "all":
			return config.All(), nil
		case "-", "none":
			return config.None(), nil
		}
	}

	sel := config.Names(fields...)
	selected, missing, err := discovery.Filter(items, sel)
	if err != nil {
		return config.Selection{}, err
	}
	if len(missing) > 0 {
		return config.Selection{}, errors.Errorf("not found: %s", joinNames(missing))
	}
	if len(selected) == len(items) {
		return config.All(), nil
	}
	return sel, nil
}

func countLabel(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
