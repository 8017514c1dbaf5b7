// Package pipeline implements the execution contract shared by every stage of
// an audioflow pipeline.
//
// A pipeline is a tree of [Node] values. An [Artifact] handed to a node's Run
// is validated, mapped to a deterministic output path inside the node's own
// output directory, recomputed only when stale (see [ShouldRun]) and finally
// emitted to every connected consumer. A node that rejects its input or whose
// work fails logs the failure, reports it to its [Observer] and emits nothing;
// the failure never propagates to the caller as a panic or return value.
//
// Execution is synchronous and depth-first: Run returns only after the
// artifact and everything derived from it has travelled through the subtree.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/audioflow/pkg/runner"
)

const tracerName = "github.com/MrWong99/audioflow/pkg/pipeline"

// Node is one stage of a pipeline.
type Node interface {
	// Name returns the stage name used in logs, metrics and failures.
	Name() string

	// Setup binds the node to its environment. It is called exactly once
	// while the pipeline is assembled and must fail fast when a required
	// external executable cannot be located.
	Setup(env Env) error

	// Run processes one input artifact and emits zero or more outputs.
	Run(ctx context.Context, in Artifact)

	// Emit hands out to every connected consumer, in connection order.
	Emit(ctx context.Context, out Artifact)

	// Connect registers downstream consumers.
	Connect(consumers ...Node)

	// Consumers returns the registered downstream consumers.
	Consumers() []Node
}

// Env is the environment injected into a node by [Node.Setup].
type Env struct {
	// OutDir is the directory owned exclusively by the node. It is created
	// during Setup when missing.
	OutDir string

	// Logger receives the node's structured log lines. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// Runner executes external tools. Defaults to [runner.Exec].
	Runner runner.Runner

	// Observer receives execution events. Optional.
	Observer Observer
}

// Step describes the file-to-file work of a stage for [Base.Process].
type Step struct {
	// Accept is the required input extension. Empty accepts any input.
	Accept string

	// Produce is the extension of the derived output path.
	Produce string

	// Work computes out from in. It is only called when out is stale.
	Work func(ctx context.Context, in, out string) error
}

// Base carries the state and behaviour common to all nodes. Concrete stages
// embed it and implement Setup (calling [Base.Setup]) and Run.
type Base struct {
	name      string
	outDir    string
	log       *slog.Logger
	runner    runner.Runner
	observer  Observer
	consumers []Node
}

// NewBase returns a Base for a stage called name.
func NewBase(name string) Base {
	return Base{name: name}
}

// Name implements [Node].
func (b *Base) Name() string { return b.name }

// OutDir returns the node's output directory.
func (b *Base) OutDir() string { return b.outDir }

// Logger returns the node's logger, tagged with the stage name.
func (b *Base) Logger() *slog.Logger {
	if b.log == nil {
		return slog.Default().With("stage", b.name)
	}
	return b.log
}

// Runner returns the node's external process runner.
func (b *Base) Runner() runner.Runner {
	if b.runner == nil {
		return runner.Exec{}
	}
	return b.runner
}

// Setup binds env to the node and creates its output directory.
func (b *Base) Setup(env Env) error {
	if env.OutDir == "" {
		return fmt.Errorf("pipeline: stage %q: output directory is required", b.name)
	}
	if err := os.MkdirAll(env.OutDir, 0o755); err != nil {
		return fmt.Errorf("pipeline: stage %q: create output directory: %w", b.name, err)
	}
	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b.outDir = env.OutDir
	b.log = logger.With("stage", b.name)
	b.runner = env.Runner
	b.observer = env.Observer
	return nil
}

// Connect implements [Node].
func (b *Base) Connect(consumers ...Node) {
	b.consumers = append(b.consumers, consumers...)
}

// Consumers implements [Node].
func (b *Base) Consumers() []Node { return b.consumers }

// Emit implements [Node].
func (b *Base) Emit(ctx context.Context, out Artifact) {
	b.notify(ctx, Event{Outcome: OutcomeEmitted, Output: out, Leaf: len(b.consumers) == 0})
	for _, c := range b.consumers {
		c.Run(ctx, out)
	}
}

// DerivePath returns the output path for input inside the node's output
// directory, with extension ext.
func (b *Base) DerivePath(input, ext string) string {
	return DerivePath(b.outDir, input, ext)
}

// Process runs the validate, derive, gate, work, emit sequence for in. An
// up-to-date output skips the work but is still emitted.
func (b *Base) Process(ctx context.Context, in Artifact, step Step) {
	out, ok := b.process(ctx, in, step)
	if ok {
		b.Emit(ctx, Artifact{Path: out})
	}
}

func (b *Base) process(ctx context.Context, in Artifact, step Step) (string, bool) {
	ctx, span := b.Begin(ctx, in)
	defer span.End()

	if step.Accept != "" && !in.HasExt(step.Accept) {
		b.Fail(ctx, in.Path, fmt.Errorf("%w: not a %s file", ErrInvalidInput, normalizeExt(step.Accept)))
		return "", false
	}

	out := b.DerivePath(in.Path, step.Produce)
	if !ShouldRun(in.Path, out) {
		b.Skip(ctx, in.Path, out)
		return out, true
	}

	start := time.Now()
	if err := step.Work(ctx, in.Path, out); err != nil {
		// A half-written output would look fresh to the staleness gate on
		// the next run.
		if rmErr := os.Remove(out); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			b.Logger().WarnContext(ctx, "could not remove partial output", "output", out, "err", rmErr)
		}
		b.Fail(ctx, in.Path, err)
		return "", false
	}
	b.Done(ctx, in.Path, time.Since(start), out)
	return out, true
}

// Begin logs the start of a run and opens a tracing span for it. The caller
// must end the returned span.
func (b *Base) Begin(ctx context.Context, in Artifact) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "stage "+b.name,
		trace.WithAttributes(
			attribute.String("audioflow.stage", b.name),
			attribute.String("audioflow.input", in.Path),
		),
	)
	b.Logger().InfoContext(ctx, "starting", "input", in.Path)
	b.notify(ctx, Event{Input: in.Path, Outcome: OutcomeStarted})
	return ctx, span
}

// Done logs and reports a successful computation of outputs from input.
func (b *Base) Done(ctx context.Context, input string, elapsed time.Duration, outputs ...string) {
	b.Logger().InfoContext(ctx, "done", "input", input, "outputs", outputs, "elapsed", elapsed)
	b.notify(ctx, Event{Input: input, Outcome: OutcomeDone, Elapsed: elapsed})
}

// Skip logs and reports that output was already up to date.
func (b *Base) Skip(ctx context.Context, input, output string) {
	b.Logger().InfoContext(ctx, "up to date", "input", input, "output", output)
	b.notify(ctx, Event{Input: input, Outcome: OutcomeSkipped})
}

// Fail logs err as the reason the stage stopped processing input and
// reports it. It writes exactly one error log line.
func (b *Base) Fail(ctx context.Context, input string, err error) {
	f := &Failure{Stage: b.name, Input: input, Err: err}
	b.Logger().ErrorContext(ctx, "failed", "input", input, "kind", f.Kind(), "err", err)

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, f.Kind())

	b.notify(ctx, Event{Input: input, Outcome: OutcomeFailed, Failure: f})
}

func (b *Base) notify(ctx context.Context, ev Event) {
	if b.observer == nil {
		return
	}
	ev.Stage = b.name
	b.observer.Observe(ctx, ev)
}
