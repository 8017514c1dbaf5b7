// Command audioflow runs audio files through a configured chain of
// preprocessing and feature-extraction stages.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/MrWong99/audioflow/internal/app"
	"github.com/MrWong99/audioflow/internal/config"
	"github.com/MrWong99/audioflow/internal/observe"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// errInputsFailed is returned by commands whose inputs were processed but at
// least one of them failed. The failures have already been logged.
var errInputsFailed = errors.New("one or more inputs failed")

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errInputsFailed) {
			fmt.Fprintf(os.Stderr, "audioflow: %v\n", err)
		}
		return 1
	}
	return 0
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "audioflow",
		Short: "File-based audio preprocessing pipeline",
		Long: `audioflow feeds audio files through a tree of stages declared in a YAML
file. Each stage runs an external tool (transcoder, resampler, feature
extractor, segmenter, recognizer) and hands its output files to the next.
Outputs that are newer than their inputs are reused.

Examples:
  audioflow run -c pipeline.yaml recordings/
  audioflow watch -c pipeline.yaml incoming/
  audioflow validate -c pipeline.yaml
  audioflow stages`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "pipeline.yaml", "path to the YAML pipeline configuration")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log_level from the configuration (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(flags),
		newWatchCmd(flags),
		newValidateCmd(flags),
		newStagesCmd(),
	)
	return root
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run <input>...",
		Short: "Process files and directories once",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := setup(ctx, flags)
			if err != nil {
				return err
			}
			defer env.close()

			inputs, err := env.app.Inputs(args)
			if err != nil {
				return err
			}
			slog.Info("processing", "inputs", len(inputs), "config", flags.configPath)
			rep := env.app.Run(ctx, inputs)
			printReport(cmd, rep)
			if !rep.OK() {
				return errInputsFailed
			}
			return nil
		},
	}
}

func newValidateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and assemble the pipeline without processing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer env.close()

			for _, n := range env.app.Pipeline().Nodes() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s -> %s\n", n.Name(), env.app.OutDirs()[n.Name()])
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration OK")
			return nil
		},
	}
}

func newStagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List the available stage kinds",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, k := range app.DefaultRegistry().Kinds() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
		},
	}
}

// env is the assembled runtime shared by the run, watch and validate commands.
type env struct {
	cfg      *config.Config
	app      *app.App
	level    *slog.LevelVar
	metrics  *observe.Metrics
	gatherer prometheus.Gatherer
	shutdown func(context.Context) error
}

func setup(ctx context.Context, flags *globalFlags) (*env, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found", flags.configPath)
		}
		return nil, err
	}
	if flags.logLevel != "" {
		lvl := config.LogLevel(flags.logLevel)
		if !lvl.IsValid() {
			return nil, fmt.Errorf("--log-level %q is invalid; valid values: debug, info, warn, error", flags.logLevel)
		}
		cfg.LogLevel = lvl
	}

	e := &env{cfg: cfg, level: new(slog.LevelVar)}
	e.level.Set(cfg.LogLevel.Level())
	slog.SetDefault(newLogger(e.level))

	reg := prometheus.NewRegistry()
	e.gatherer = reg
	e.shutdown, err = observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		Registerer:     reg,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	if e.metrics, err = observe.NewMetrics(otel.GetMeterProvider()); err != nil {
		e.close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	if e.app, err = e.build(cfg); err != nil {
		e.close()
		return nil, err
	}
	return e, nil
}

// build assembles an App for cfg using the env's logger and telemetry.
func (e *env) build(cfg *config.Config) (*app.App, error) {
	return app.New(cfg,
		app.WithLogger(slog.Default()),
		app.WithMetrics(e.metrics),
		app.WithGatherer(e.gatherer),
	)
}

func (e *env) close() {
	if e.shutdown == nil {
		return
	}
	if err := e.shutdown(context.Background()); err != nil {
		slog.Warn("telemetry shutdown", "err", err)
	}
}

func printReport(cmd *cobra.Command, rep *app.Report) {
	w := cmd.OutOrStdout()
	failed := rep.Failed()
	fmt.Fprintf(w, "%d input(s), %d failed, %d output(s)\n", len(rep.Results), len(failed), len(rep.Outputs()))
	for _, res := range failed {
		for _, f := range res.Failures {
			fmt.Fprintf(w, "  %s: %s\n", res.Input, f)
		}
	}
	if rep.Cancelled > 0 {
		fmt.Fprintf(w, "interrupted, %d input(s) not processed\n", rep.Cancelled)
	}
}

func newLogger(level slog.Leveler) *slog.Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(observe.NewTraceHandler(h))
}
