package main

import (
	"fmt"
	"sort"

	"github.com/jingkaihe/agentdeps/pkg/cache"
	"github.com/jingkaihe/agentdeps/pkg/config"
	"github.com/jingkaihe/agentdeps/pkg/install"
	"github.com/jingkaihe/agentdeps/pkg/paths"
	"github.com/jingkaihe/agentdeps/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// ConfigConfig holds the values given to the config command
type ConfigConfig struct {
	CloneMethod   string
	Agents        []string
	InstallMethod string
	Show          bool
}

// NewConfigConfig creates a ConfigConfig with no changes requested
func NewConfigConfig() *ConfigConfig {
	return &ConfigConfig{}
}

// HasChanges reports whether any value was given on the command line
func (c *ConfigConfig) HasChanges() bool {
	return c.CloneMethod != "" || len(c.Agents) > 0 || c.InstallMethod != ""
}

// Apply copies the requested values onto cfg and validates the result
func (c *ConfigConfig) Apply(cfg *config.GlobalConfig) error {
	if c.CloneMethod != "" {
		cfg.CloneMethod = cache.CloneMethod(c.CloneMethod)
	}
	if len(c.Agents) > 0 {
		cfg.Agents = append([]string(nil), c.Agents...)
	}
	if c.InstallMethod != "" {
		cfg.InstallMethod = install.Method(c.InstallMethod)
	}
	return cfg.Validate()
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configure agentdeps",
	Long: `Configure the clone method, the coding agents you use and the install method.

Without flags the interactive setup runs again, pre-filled with the current
values. With flags the given values are written directly. Custom agents and
other keys of config.yaml are preserved.

Examples:
  agentdeps config                                  # Interactive setup
  agentdeps config --agents claude-code,pi          # Set the agents
  agentdeps config --install-method copy            # Copy instead of symlinking
  agentdeps config --show                           # Print the current configuration
`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cc := getConfigConfigFromFlags(cmd)
		path := paths.ConfigFile()

		current := config.DefaultGlobal()
		existing := config.GlobalExists(path)
		if existing {
			loaded, err := config.LoadGlobal(path)
			if err != nil {
				return err
			}
			current = *loaded
		}

		if cc.Show {
			if !existing {
				return errors.Errorf("no configuration found at %s", path)
			}
			showConfig(path, &current)
			return nil
		}

		var updated *config.GlobalConfig
		switch {
		case cc.HasChanges():
			if err := cc.Apply(&current); err != nil {
				return err
			}
			updated = &current
		case isInteractive():
			cfg, err := runSetup(current.Catalog(), &current)
			if err != nil {
				return err
			}
			updated = cfg
		default:
			return errors.New("terminal is not interactive, pass --clone-method, --agents or --install-method")
		}

		if unknown := updated.Catalog().Unknown(updated.Agents); len(unknown) > 0 {
			presenter.Warning(fmt.Sprintf("Unknown agents in config: %s", joinNames(unknown)))
		}
		if err := config.SaveGlobal(path, updated); err != nil {
			return errors.Wrap(err, "failed to save configuration")
		}
		presenter.Success(fmt.Sprintf("Configuration saved to %s", path))
		return nil
	},
}

func init() {
	configCmd.Flags().String("clone-method", "", "Clone method (ssh, https)")
	configCmd.Flags().StringSlice("agents", nil, "Coding agents to install for, e.g. claude-code,pi")
	configCmd.Flags().String("install-method", "", "Install method (link, copy)")
	configCmd.Flags().Bool("show", false, "Print the current configuration")
}

// getConfigConfigFromFlags extracts the config command values from flags
func getConfigConfigFromFlags(cmd *cobra.Command) *ConfigConfig {
	cc := NewConfigConfig()

	if v, err := cmd.Flags().GetString("clone-method"); err == nil {
		cc.CloneMethod = v
	}
	if v, err := cmd.Flags().GetStringSlice("agents"); err == nil {
		cc.Agents = v
	}
	if v, err := cmd.Flags().GetString("install-method"); err == nil {
		cc.InstallMethod = v
	}
	if v, err := cmd.Flags().GetBool("show"); err == nil {
		cc.Show = v
	}

	return cc
}

func showConfig(path string, cfg *config.GlobalConfig) {
	presenter.Section(path)
	presenter.Info(fmt.Sprintf("clone_method:   %s", cfg.CloneMethod))
	presenter.Info(fmt.Sprintf("agents:         %s", joinNames(cfg.Agents)))
	presenter.Info(fmt.Sprintf("install_method: %s", cfg.InstallMethod))
	presenter.Info(fmt.Sprintf("git_timeout:    %s", cfg.GitTimeout))
	presenter.Info(fmt.Sprintf("fetch_attempts: %d", cfg.FetchAttempts))
	presenter.Info(fmt.Sprintf("concurrency:    %d", cfg.Concurrency))
	names := make([]string, 0, len(cfg.CustomAgents))
	for name := range cfg.CustomAgents {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		agent := cfg.CustomAgents[name]
		presenter.Info(fmt.Sprintf("custom agent %s: %s, %s", name, agent.ProjectSkills, agent.ProjectAgents))
	}
}
