package main

import (
	"fmt"
	"strings"

	"github.com/jingkaihe/agentdeps/pkg/config"
	"github.com/jingkaihe/agentdeps/pkg/paths"
	"github.com/jingkaihe/agentdeps/pkg/presenter"
	"github.com/jingkaihe/agentdeps/pkg/registry"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List declared dependencies",
	Long:  `List the dependencies of the global and project agents.yaml with their selections and target agents.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := preflight(cmd.Context())
		if err != nil {
			return err
		}

		targets := displayNames(a.catalog.Consumers(a.cfg.Agents))
		sections := []struct {
			title string
			path  string
		}{
			{"Global dependencies", paths.GlobalDependenciesFile()},
			{"Project dependencies", paths.ProjectDependenciesFile(a.projectDir)},
		}

		found := false
		for _, s := range sections {
			deps, _, err := loadDependencies(s.path)
			if err != nil {
				return err
			}
			if len(deps) == 0 {
				continue
			}
			found = true
			presenter.Section(s.title)
			presenter.Info(formatDependencies(deps, targets))
		}

		if !found {
			presenter.Info("No dependencies configured.\n\n" +
				"Add one with:\n" +
				"  agentdeps add <owner/repo>\n\n" +
				"Or create agents.yaml manually.")
		}
		return nil
	},
}

func displayNames(agents []registry.Agent) []string {
	names := make([]string, 0, len(agents))
	for _, a := range agents {
		names = append(names, a.DisplayName)
	}
	return names
}

func formatSelection(sel config.Selection) string {
	switch sel.Mode {
	case config.SelectAll:
		return "all"
	case config.SelectNone:
		return "none"
	default:
		return joinNames(sel.Names)
	}
}

func formatDependencies(deps []config.Dependency, targets []string) string {
	var b strings.Builder
	for _, dep := range deps {
		fmt.Fprintf(&b, "  %s (ref: %s)\n", dep.Repo, dep.Ref)
		fmt.Fprintf(&b, "    skills: %s\n", formatSelection(dep.Skills))
		fmt.Fprintf(&b, "    agents: %s\n", formatSelection(dep.Agents))
		fmt.Fprintf(&b, "    targets: %s\n\n", joinNames(targets))
	}
	return b.String()
}
