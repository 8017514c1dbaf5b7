// Package mock provides test doubles for the pipeline package.
//
// Sink is a node that records every artifact it receives, so that a stage
// under test can be connected to it and its emissions inspected:
//
//	sink := &mock.Sink{}
//	stage.Connect(sink)
//	stage.Run(ctx, pipeline.Artifact{Path: "in.wav"})
//	got := sink.Received()
//
// Observer records every event a node reports.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/audioflow/pkg/pipeline"
)

// Sink is a mock pipeline.Node that records received artifacts and
// forwards them to its own consumers.
type Sink struct {
	mu        sync.Mutex
	NodeName  string
	SetupErr  error
	Env       pipeline.Env
	received  []pipeline.Artifact
	consumers []pipeline.Node
}

var _ pipeline.Node = (*Sink)(nil)

// Name returns NodeName, or "sink" when empty.
func (s *Sink) Name() string {
	if s.NodeName == "" {
		return "sink"
	}
	return s.NodeName
}

// Setup records env and returns SetupErr.
func (s *Sink) Setup(env pipeline.Env) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Env = env
	return s.SetupErr
}

// Run records in and emits it unchanged.
func (s *Sink) Run(ctx context.Context, in pipeline.Artifact) {
	s.mu.Lock()
	s.received = append(s.received, in)
	s.mu.Unlock()
	s.Emit(ctx, in)
}

// Emit forwards out to the consumers.
func (s *Sink) Emit(ctx context.Context, out pipeline.Artifact) {
	for _, c := range s.Consumers() {
		c.Run(ctx, out)
	}
}

// Connect registers consumers.
func (s *Sink) Connect(consumers ...pipeline.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumers = append(s.consumers, consumers...)
}

// Consumers returns the registered consumers.
func (s *Sink) Consumers() []pipeline.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pipeline.Node(nil), s.consumers...)
}

// Received returns a copy of every artifact passed to Run.
func (s *Sink) Received() []pipeline.Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pipeline.Artifact(nil), s.received...)
}

// Observer is a mock pipeline.Observer that records events.
type Observer struct {
	mu     sync.Mutex
	events []pipeline.Event
}

var _ pipeline.Observer = (*Observer)(nil)

// Observe records ev.
func (o *Observer) Observe(_ context.Context, ev pipeline.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

// Events returns a copy of the recorded events.
func (o *Observer) Events() []pipeline.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]pipeline.Event(nil), o.events...)
}

// Count returns the number of recorded events with the given outcome.
func (o *Observer) Count(outcome pipeline.Outcome) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, ev := range o.events {
		if ev.Outcome == outcome {
			n++
		}
	}
	return n
}
