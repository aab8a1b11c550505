package main

import (
	"context"
	"fmt"

	"github.com/jingkaihe/agentdeps/pkg/config"
	"github.com/jingkaihe/agentdeps/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <repo>",
	Short: "Remove a dependency from agents.yaml",
	Long: `Remove a repository from agents.yaml and prune its installed items.

Repositories are matched ignoring case and a trailing .git, so owner/Repo
removes a dependency declared as owner/repo.git.

Examples:
  agentdeps remove owner/repo        # From ./agents.yaml
  agentdeps remove owner/repo -g     # From the global agents.yaml
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		global, _ := cmd.Flags().GetBool("global")

		ctx := cmd.Context()
		a, err := preflight(ctx)
		if err != nil {
			return err
		}
		return a.remove(ctx, args[0], global)
	},
}

func init() {
	removeCmd.Flags().BoolP("global", "g", false, "Remove from the global agents.yaml")
}

func (a *app) remove(ctx context.Context, repo string, global bool) error {
	path := dependenciesFile(a, global)
	if !config.ProjectExists(path) {
		return errors.Errorf("no agents.yaml found at %s", path)
	}

	project, err := loadOrEmpty(path)
	if err != nil {
		return err
	}

	i := project.Find(repo)
	if i < 0 {
		return errors.Errorf("%s not found in %s", repo, path)
	}
	removed := project.Dependencies[i].Repo
	project.Remove(repo)

	if err := config.SaveProject(path, project); err != nil {
		return errors.Wrapf(err, "failed to save %s", path)
	}
	presenter.Success(fmt.Sprintf("Removed %s from %s", removed, path))

	return a.install(ctx, scopeSelection{Global: true, Project: true})
}
