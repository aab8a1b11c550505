package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jingkaihe/agentdeps/pkg/cache"
	"github.com/jingkaihe/agentdeps/pkg/config"
	"github.com/jingkaihe/agentdeps/pkg/install"
	"github.com/jingkaihe/agentdeps/pkg/presenter"
	"github.com/jingkaihe/agentdeps/pkg/registry"
	"github.com/pkg/errors"
)

// runSetup asks for the clone method, the agents in use and the install
// method. Every other field of defaults is carried over unchanged.
func runSetup(catalog registry.Catalog, defaults *config.GlobalConfig) (*config.GlobalConfig, error) {
	cfg := *defaults

	presenter.Section("agentdeps setup")

	answer := presenter.Prompt(
		fmt.Sprintf("How do you clone git repositories? (default %s)", defaults.CloneMethod),
		string(cache.CloneMethodSSH), string(cache.CloneMethodHTTPS))
	method, err := parseChoice(answer, string(defaults.CloneMethod), string(cache.CloneMethodSSH), string(cache.CloneMethodHTTPS))
	if err != nil {
		return nil, errors.Wrap(err, "clone method")
	}
	cfg.CloneMethod = cache.CloneMethod(method)

	agents := setupAgentOrder(catalog)
	presenter.Info("")
	presenter.Info(formatAgentMenu(agents))
	question := "Which coding agents do you use? (comma-separated names or numbers)"
	if len(defaults.Agents) > 0 {
		question = fmt.Sprintf("%s (default %s)", question, joinNames(defaults.Agents))
	}
	selected, err := parseAgentSelection(presenter.Prompt(question), agents, defaults.Agents)
	if err != nil {
		return nil, err
	}
	cfg.Agents = selected

	answer = presenter.Prompt(
		fmt.Sprintf("How should dependencies be installed? link (symlinks) or copy (smart sync) (default %s)", defaults.InstallMethod),
		string(install.MethodLink), string(install.MethodCopy))
	installMethod, err := parseChoice(answer, string(defaults.InstallMethod), string(install.MethodLink), string(install.MethodCopy))
	if err != nil {
		return nil, errors.Wrap(err, "install method")
	}
	cfg.InstallMethod = install.Method(installMethod)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setupAgentOrder lists agents with their own layout first, then universal ones
func setupAgentOrder(catalog registry.Catalog) []registry.Agent {
	return append(catalog.NonUniversal(), catalog.Universal()...)
}

func formatAgentMenu(agents []registry.Agent) string {
	var b strings.Builder
	for i, a := range agents {
		hint := fmt.Sprintf("%s, %s", a.ProjectSkills, a.ProjectAgents)
		if a.Universal {
			hint += " (Universal)"
		}
		fmt.Fprintf(&b, "  %2d) %-16s %-16s %s\n", i+1, a.Name, a.DisplayName, hint)
	}
	return strings.TrimRight(b.String(), "\n")
}

// parseChoice returns the option matching answer case-insensitively, or def
// when answer is blank
func parseChoice(answer, def string, options ...string) (string, error) {
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == "" {
		return def, nil
	}
	for _, o := range options {
		if answer == o {
			return o, nil
		}
	}
	return "", errors.Errorf("%q is not one of %s", answer, strings.Join(options, ", "))
}

// parseAgentSelection resolves a comma or space separated list of agent
// names or 1-based menu numbers. A blank answer keeps defaults.
func parseAgentSelection(answer string, agents []registry.Agent, defaults []string) ([]string, error) {
	fields := strings.FieldsFunc(answer, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		if len(defaults) == 0 {
			return nil, errors.New("at least one agent must be selected")
		}
		return append([]string(nil), defaults...), nil
	}

	seen := make(map[string]bool)
	var selected []string
	for _, f := range fields {
		name, err := agentName(f, agents)
		if err != nil {
			return nil, err
		}
		if !seen[name] {
			seen[name] = true
			selected = append(selected, name)
		}
	}
	return selected, nil
}

func agentName(field string, agents []registry.Agent) (string, error) {
	if n, err := strconv.Atoi(field); err == nil {
		if n < 1 || n > len(agents) {
			return "", errors.Errorf("agent number %d is out of range 1-%d", n, len(agents))
		}
		return agents[n-1].Name, nil
	}
	for _, a := range agents {
		if strings.EqualFold(a.Name, field) {
			return a.Name, nil
		}
	}
	return "", errors.Errorf("unknown agent %q", field)
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
