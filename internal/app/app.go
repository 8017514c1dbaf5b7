// Package app wires configuration, stages and observability into a runnable
// pipeline.
//
// New builds the stage tree declared by a [config.Config], sets every stage
// up with its output directory, logger, runner and observer, and attaches
// the roots to a [pipeline.Pipeline]. Run feeds inputs through it one at a
// time.
//
// For testing, inject doubles via functional options (WithRunner,
// WithRegistry, etc.). When an option is not provided, New uses the real
// implementations.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MrWong99/audioflow/internal/config"
	"github.com/MrWong99/audioflow/internal/observe"
	"github.com/MrWong99/audioflow/pkg/pipeline"
	"github.com/MrWong99/audioflow/pkg/runner"
)

// App owns an assembled pipeline and the observers attached to it.
type App struct {
	cfg      *config.Config
	registry *config.Registry
	runner   runner.Runner
	logger   *slog.Logger
	metrics  *observe.Metrics
	gatherer prometheus.Gatherer
	extra    []pipeline.Observer

	pipe    *pipeline.Pipeline
	outDirs map[string]string
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRegistry replaces the registry of built-in stage kinds.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithRunner injects the process runner handed to every stage.
func WithRunner(r runner.Runner) Option {
	return func(a *App) { a.runner = r }
}

// WithLogger sets the parent logger of every stage. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithMetrics records pipeline events to m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithGatherer sets the source of the metrics file written after each
// batch. Without it no metrics file is written.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(a *App) { a.gatherer = g }
}

// WithObserver adds observers that receive every pipeline event.
func WithObserver(obs ...pipeline.Observer) Option {
	return func(a *App) { a.extra = append(a.extra, obs...) }
}

// New assembles the pipeline declared by cfg. Every stage is constructed,
// connected and set up before New returns; any failure aborts assembly and
// all problems found are returned joined.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.registry == nil {
		a.registry = DefaultRegistry()
	}
	if a.runner == nil {
		a.runner = runner.Exec{}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	a.outDirs = make(map[string]string)
	var errs []error
	roots := a.build(cfg.Stages, &errs)
	if len(errs) > 0 {
		return nil, fmt.Errorf("app: build stages: %w", errors.Join(errs...))
	}
	if err := pipeline.CheckOutDirs(a.outDirs); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	observers := append([]pipeline.Observer{a.metrics}, a.extra...)
	a.pipe = pipeline.New(observers...)
	a.pipe.Attach(roots...)

	for _, n := range a.pipe.Nodes() {
		env := pipeline.Env{
			OutDir:   a.outDirs[n.Name()],
			Logger:   a.logger,
			Runner:   a.runner,
			Observer: a.pipe,
		}
		if err := n.Setup(env); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("app: setup stages: %w", errors.Join(errs...))
	}
	return a, nil
}

// build constructs the nodes declared by stages and, recursively, their
// consumers. Errors are collected into errs so that one pass reports every
// broken stage.
func (a *App) build(stages []config.StageConfig, errs *[]error) []pipeline.Node {
	nodes := make([]pipeline.Node, 0, len(stages))
	for _, sc := range stages {
		a.outDirs[sc.Name] = a.outDir(sc)
		node, err := a.registry.Create(sc, a.cfg.Tools)
		children := a.build(sc.Next, errs)
		if err != nil {
			*errs = append(*errs, err)
			continue
		}
		node.Connect(children...)
		nodes = append(nodes, node)
	}
	return nodes
}

func (a *App) outDir(sc config.StageConfig) string {
	if sc.OutDir != "" {
		return filepath.Clean(sc.OutDir)
	}
	return filepath.Join(a.cfg.OutputRoot, sc.Name)
}

// Pipeline returns the assembled pipeline.
func (a *App) Pipeline() *pipeline.Pipeline { return a.pipe }

// OutDirs returns the output directory of every stage by name.
func (a *App) OutDirs() map[string]string { return a.outDirs }

// Process feeds one input through the pipeline and records the outcome.
func (a *App) Process(ctx context.Context, input string) pipeline.Result {
	start := time.Now()
	res := a.pipe.Process(ctx, input)
	a.metrics.RecordInput(ctx, res)

	log := a.logger.With("input", input, "outputs", len(res.Outputs), "elapsed", time.Since(start))
	if res.OK() {
		log.InfoContext(ctx, "input processed", "done", res.Done, "skipped", res.Skipped)
	} else {
		log.WarnContext(ctx, "input processed with failures", "failures", len(res.Failures))
	}
	return res
}

// Run processes inputs sequentially and returns the report. It stops early,
// leaving the remaining inputs unprocessed, when ctx is cancelled. The
// metrics file, if configured, is written once at the end.
func (a *App) Run(ctx context.Context, inputs []string) *Report {
	rep := &Report{}
	for _, in := range inputs {
		if ctx.Err() != nil {
			rep.Cancelled = len(inputs) - len(rep.Results)
			a.logger.WarnContext(ctx, "interrupted", "remaining", rep.Cancelled)
			break
		}
		rep.Results = append(rep.Results, a.Process(ctx, in))
	}
	a.WriteMetrics()
	return rep
}

// WriteMetrics dumps the gathered metrics to the configured metrics file.
// Errors are logged; metrics never fail a run.
func (a *App) WriteMetrics() {
	if a.cfg.MetricsFile == "" || a.gatherer == nil {
		return
	}
	if err := observe.WriteTextfile(a.cfg.MetricsFile, a.gatherer); err != nil {
		a.logger.Warn("could not write metrics file", "path", a.cfg.MetricsFile, "err", err)
	}
}
