package main

import (
	"context"

	"github.com/jingkaihe/agentdeps/pkg/config"
	"github.com/jingkaihe/agentdeps/pkg/paths"
	"github.com/jingkaihe/agentdeps/pkg/telemetry"
	"github.com/jingkaihe/agentdeps/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// initTracing initializes the OpenTelemetry tracing system. Flags win over
// the tracing section of the global config.
func initTracing(ctx context.Context, flags *pflag.FlagSet) (func(context.Context) error, error) {
	var fromFile *config.TracingConfig
	if config.GlobalExists(paths.ConfigFile()) {
		if cfg, err := config.LoadGlobal(paths.ConfigFile()); err == nil {
			fromFile = &cfg.Tracing
		}
	}

	return telemetry.InitTracer(ctx, tracingConfig(fromFile, flags))
}

func tracingConfig(fromFile *config.TracingConfig, flags *pflag.FlagSet) telemetry.Config {
	cfg := telemetry.Config{
		Enabled:        viper.GetBool("tracing.enabled"),
		ServiceName:    telemetry.DefaultServiceName,
		ServiceVersion: version.Get().Version,
		SamplerType:    viper.GetString("tracing.sampler"),
		SamplerRatio:   viper.GetFloat64("tracing.ratio"),
	}
	if fromFile == nil {
		return cfg
	}

	if !flags.Changed("tracing-enabled") {
		cfg.Enabled = fromFile.Enabled
	}
	if !flags.Changed("tracing-sampler") && fromFile.Sampler != "" {
		cfg.SamplerType = fromFile.Sampler
	}
	if !flags.Changed("tracing-ratio") {
		cfg.SamplerRatio = fromFile.Ratio
	}
	return cfg
}

var tracer = telemetry.Tracer("agentdeps.cli")

// withTracing wraps a Cobra command with a span covering its run
func withTracing(cmd *cobra.Command) *cobra.Command {
	originalRunE := cmd.RunE

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		attrs := []attribute.KeyValue{
			attribute.String("command.name", cmd.Name()),
			attribute.String("command.path", cmd.CommandPath()),
			attribute.Int("args.count", len(args)),
		}
		cmd.Flags().Visit(func(flag *pflag.Flag) {
			attrs = append(attrs, attribute.String("flag."+flag.Name, flag.Value.String()))
		})

		ctx, span := tracer.Start(cmd.Context(), "cli.command", trace.WithAttributes(attrs...))
		cmd.SetContext(ctx)

		err := originalRunE(cmd, args)
		telemetry.EndSpan(span, err)
		return err
	}

	return cmd
}

func init() {
	rootCmd.PersistentFlags().Bool("tracing-enabled", false, "Enable OpenTelemetry tracing")
	rootCmd.PersistentFlags().String("tracing-sampler", "always", "Tracing sampler type (always, never, ratio)")
	rootCmd.PersistentFlags().Float64("tracing-ratio", 1, "Sampling ratio when using ratio sampler")

	viper.BindPFlag("tracing.enabled", rootCmd.PersistentFlags().Lookup("tracing-enabled"))
	viper.BindPFlag("tracing.sampler", rootCmd.PersistentFlags().Lookup("tracing-sampler"))
	viper.BindPFlag("tracing.ratio", rootCmd.PersistentFlags().Lookup("tracing-ratio"))
}
