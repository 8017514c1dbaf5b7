package pipeline

import (
	"context"
	"time"
)

// Outcome classifies an [Event].
type Outcome string

const (
	OutcomeStarted Outcome = "started"
	OutcomeSkipped Outcome = "skipped"
	OutcomeDone    Outcome = "done"
	OutcomeFailed  Outcome = "failed"

	// OutcomeEmitted is reported once per emitted artifact.
	OutcomeEmitted Outcome = "emitted"
)

// Event is a single step in the life of one input at one stage.
type Event struct {
	Stage   string
	Input   string
	Outcome Outcome

	// Elapsed is the duration of the stage's work. Set for OutcomeDone.
	Elapsed time.Duration

	// Output is the emitted artifact. Set for OutcomeEmitted.
	Output Artifact

	// Leaf reports whether the emitting node has no consumers. Set for
	// OutcomeEmitted.
	Leaf bool

	// Failure is set for OutcomeFailed.
	Failure *Failure
}

// Observer receives execution events from nodes.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to the [Observer] interface.
type ObserverFunc func(ctx context.Context, ev Event)

// Observe calls f(ctx, ev).
func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// Observers fans an event out to several observers in order.
type Observers []Observer

// Observe implements [Observer].
func (o Observers) Observe(ctx context.Context, ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ctx, ev)
		}
	}
}
