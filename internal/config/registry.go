package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/audioflow/pkg/pipeline"
)

// ErrStageNotRegistered is returned by [Registry.Create] when no factory has
// been registered under the requested stage kind.
var ErrStageNotRegistered = errors.New("config: stage kind not registered")

// StageFactory builds an unconnected, not yet set up node from its
// declaration and the configured tool locations.
type StageFactory func(sc StageConfig, tools Tools) (pipeline.Node, error)

// Registry maps stage kinds to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]StageFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]StageFactory)}
}

// Register registers a stage factory under kind.
// Subsequent calls with the same kind overwrite the previous registration.
func (r *Registry) Register(kind string, factory StageFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[kind] = factory
}

// Create instantiates the stage declared by sc using the factory registered
// under sc.Kind. Returns [ErrStageNotRegistered] if there is none.
func (r *Registry) Create(sc StageConfig, tools Tools) (pipeline.Node, error) {
	r.mu.RLock()
	factory, ok := r.stages[sc.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (stage %q)", ErrStageNotRegistered, sc.Kind, sc.Name)
	}
	node, err := factory(sc, tools)
	if err != nil {
		return nil, fmt.Errorf("config: stage %q (%s): %w", sc.Name, sc.Kind, err)
	}
	return node, nil
}

// Kinds returns the registered stage kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.stages))
	for k := range r.stages {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
