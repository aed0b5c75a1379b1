package config

import (
	"fmt"
	"sync"

	"github.com/c360/flowpipe/errors"
	"github.com/c360/flowpipe/graph"
	"github.com/c360/flowpipe/stage"
)

// Factory builds a transform from the parameters declared in a stage config.
type Factory[T any] func(params map[string]any) (stage.Transform[T], error)

// Registry maps transform names to factories. It is the bridge between a
// declarative graph definition and the transforms compiled into the binary.
type Registry[T any] struct {
	mu        sync.RWMutex
	factories map[string]Factory[T]
}

// NewRegistry creates an empty transform registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		factories: make(map[string]Factory[T]),
	}
}

// Register adds a factory under the given name. Duplicate names are rejected.
func (r *Registry[T]) Register(name string, factory Factory[T]) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register",
			"empty transform name")
	}
	if factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register",
			fmt.Sprintf("nil factory for transform %q", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("transform %q already registered", name),
			"Registry", "Register", "duplicate registration")
	}

	r.factories[name] = factory
	return nil
}

// Names returns the registered transform names.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// Build turns a validated graph definition into graph wiring, constructing
// one stage per declaration through the registered factories.
func (r *Registry[T]) Build(cfg *GraphConfig) (map[string]graph.Node[T], error) {
	if cfg == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Registry", "Build", "nil definition")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	wiring := make(map[string]graph.Node[T], len(cfg.Stages))
	for name, sc := range cfg.Stages {
		factory, ok := r.factories[sc.Transform]
		if !ok {
			return nil, errors.WrapInvalid(
				fmt.Errorf("unknown transform %q", sc.Transform),
				"Registry", "Build", fmt.Sprintf("stage %q", name))
		}

		transform, err := factory(sc.Params)
		if err != nil {
			return nil, errors.Wrap(err, "Registry", "Build",
				fmt.Sprintf("build transform %q for stage %q", sc.Transform, name))
		}

		wiring[name] = graph.Node[T]{
			Stage:   stage.New(transform, stage.WithPollInterval[T](cfg.PollInterval.Std())),
			Outputs: sc.Outputs,
		}
	}

	return wiring, nil
}
