package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jingkaihe/agentdeps/pkg/logger"
	"github.com/jingkaihe/agentdeps/pkg/paths"
	"github.com/jingkaihe/agentdeps/pkg/presenter"
	"github.com/jingkaihe/agentdeps/pkg/version"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "agentdeps",
	Short: "Declarative dependency manager for AI coding agent skills and subagents",
	Long: `agentdeps installs skills and subagents published in git repositories into
the directories of the coding agents you use.

Dependencies are declared in agents.yaml, either in the current project or in
the global configuration directory. Installed items live in a directory named
_agentdeps_managed next to anything you manage by hand, and are kept exactly in
sync with the declared dependencies on every install.`,
	Version:       version.Get().Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			return errors.Wrap(err, "invalid log level")
		}
		logger.SetLogFormat(viper.GetString("log_format"))
		presenter.SetQuiet(viper.GetBool("quiet"))

		ctx := cmd.Context()
		closeLog, err := logger.AttachFile(logger.L.Logger, paths.LogFile())
		if err != nil {
			logger.G(ctx).WithError(err).Warn("durable log disabled")
		} else {
			cleanups = append(cleanups, func(context.Context) error { return closeLog() })
		}

		shutdown, err := initTracing(ctx, cmd.Root().PersistentFlags())
		if err != nil {
			logger.G(ctx).WithError(err).Warn("failed to initialize tracing")
			return nil
		}
		cleanups = append(cleanups, shutdown)
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

// cleanups run in reverse order after the command finishes
var cleanups []func(context.Context) error

func init() {
	viper.SetEnvPrefix("AGENTDEPS")
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format of stderr output (fmt, json)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Only print errors")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))

	rootCmd.AddCommand(withTracing(installCmd))
	rootCmd.AddCommand(withTracing(addCmd))
	rootCmd.AddCommand(withTracing(removeCmd))
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	for i := len(cleanups) - 1; i >= 0; i-- {
		if cerr := cleanups[i](context.Background()); cerr != nil {
			logger.L.WithError(cerr).Warn("cleanup failed")
		}
	}

	if err != nil {
		presenter.Error(err, "")
		os.Exit(1)
	}
}
