package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// Result summarises what happened to one top-level input.
type Result struct {
	Input string

	// Outputs are the artifacts emitted by leaf nodes.
	Outputs []Artifact

	// Failures lists every stage that stopped processing this input or
	// something derived from it.
	Failures []*Failure

	Done    int
	Skipped int
}

// OK reports whether no stage failed.
func (r Result) OK() bool { return len(r.Failures) == 0 }

// Err joins all failures into one error, or returns nil.
func (r Result) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// Pipeline composes nodes into a tree and feeds inputs to its roots. It is
// itself the [Observer] handed to its nodes during setup, so that it can
// attribute events to the input currently being processed; every event is
// forwarded to the observers given to [New].
//
// A Pipeline is not safe for concurrent use: inputs are processed one at a
// time.
type Pipeline struct {
	roots     []Node
	observers Observers
	current   *Result
}

// New returns an empty Pipeline that forwards events to observers.
func New(observers ...Observer) *Pipeline {
	return &Pipeline{observers: observers}
}

// Attach adds root nodes. Every input is handed to each root in order.
func (p *Pipeline) Attach(roots ...Node) {
	p.roots = append(p.roots, roots...)
}

// Roots returns the root nodes.
func (p *Pipeline) Roots() []Node { return p.roots }

// Nodes returns every node reachable from the roots, depth-first in
// connection order. A node reachable along several paths is listed once.
func (p *Pipeline) Nodes() []Node {
	var out []Node
	seen := make(map[Node]bool)
	var walk func(n Node)
	walk = func(n Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		out = append(out, n)
		for _, c := range n.Consumers() {
			walk(c)
		}
	}
	for _, r := range p.roots {
		walk(r)
	}
	return out
}

// Observe implements [Observer].
func (p *Pipeline) Observe(ctx context.Context, ev Event) {
	if r := p.current; r != nil {
		switch ev.Outcome {
		case OutcomeFailed:
			r.Failures = append(r.Failures, ev.Failure)
		case OutcomeDone:
			r.Done++
		case OutcomeSkipped:
			r.Skipped++
		case OutcomeEmitted:
			if ev.Leaf {
				r.Outputs = append(r.Outputs, ev.Output)
			}
		}
	}
	p.observers.Observe(ctx, ev)
}

// Process feeds the file at input through the whole tree and returns once
// every derived artifact has been handled.
func (p *Pipeline) Process(ctx context.Context, input string) Result {
	res := &Result{Input: input}
	p.current = res
	defer func() { p.current = nil }()

	for _, r := range p.roots {
		if err := ctx.Err(); err != nil {
			res.Failures = append(res.Failures, &Failure{Stage: r.Name(), Input: input, Err: err})
			break
		}
		r.Run(ctx, Artifact{Path: input})
	}
	return *res
}

// ProcessAll feeds inputs one after another. A failing input does not stop
// the remaining ones; cancellation of ctx does.
func (p *Pipeline) ProcessAll(ctx context.Context, inputs []string) []Result {
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		if ctx.Err() != nil {
			break
		}
		results = append(results, p.Process(ctx, in))
	}
	return results
}

// CheckOutDirs returns an error when two stages resolve to the same output
// directory. Each node must own its directory exclusively.
func CheckOutDirs(dirs map[string]string) error {
	owner := make(map[string]string, len(dirs))
	var errs []error
	for stage, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			errs = append(errs, fmt.Errorf("stage %q: resolve output directory: %w", stage, err))
			continue
		}
		if prev, ok := owner[abs]; ok {
			a, b := prev, stage
			if b < a {
				a, b = b, a
			}
			errs = append(errs, fmt.Errorf("stages %q and %q share output directory %s", a, b, abs))
			continue
		}
		owner[abs] = stage
	}
	return errors.Join(errs...)
}
