package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// InstallConfig holds configuration for the install command
type InstallConfig struct {
	GlobalOnly  bool
	ProjectOnly bool
}

// NewInstallConfig creates an InstallConfig covering both scopes
func NewInstallConfig() *InstallConfig {
	return &InstallConfig{}
}

// Validate rejects contradictory scope flags
func (c *InstallConfig) Validate() error {
	if c.GlobalOnly && c.ProjectOnly {
		return errors.New("--global and --project cannot be used together")
	}
	return nil
}

// Scopes returns the dependency lists the install covers
func (c *InstallConfig) Scopes() scopeSelection {
	return scopeSelection{
		Global:  !c.ProjectOnly,
		Project: !c.GlobalOnly,
	}
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install dependencies from agents.yaml",
	Long: `Install the skills and agents declared in the global and project agents.yaml.

Every dependency repository is cloned into the cache or updated, its skills
and agents are discovered and filtered by the dependency's selection, and the
_agentdeps_managed directory of every configured agent is brought exactly in
line with the result. Items no longer declared are removed.

A dependency that cannot be cloned is skipped and the remaining dependencies
are still installed. Details of every error are appended to the log file.

Examples:
  agentdeps install              # Global and project dependencies
  agentdeps install --project    # Only ./agents.yaml
  agentdeps install -g           # Only the global agents.yaml
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ic := getInstallConfigFromFlags(cmd)
		if err := ic.Validate(); err != nil {
			return err
		}

		a, err := preflight(cmd.Context())
		if err != nil {
			return err
		}
		return a.install(cmd.Context(), ic.Scopes())
	},
}

func init() {
	installCmd.Flags().BoolP("global", "g", false, "Only install global dependencies")
	installCmd.Flags().Bool("project", false, "Only install project dependencies")
}

// getInstallConfigFromFlags extracts install configuration from command flags
func getInstallConfigFromFlags(cmd *cobra.Command) *InstallConfig {
	config := NewInstallConfig()

	if global, err := cmd.Flags().GetBool("global"); err == nil {
		config.GlobalOnly = global
	}
	if project, err := cmd.Flags().GetBool("project"); err == nil {
		config.ProjectOnly = project
	}

	return config
}
