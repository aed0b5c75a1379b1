// Package graph builds and runs a pipeline from a declarative wiring
// description: a map from stage name to the stage instance and the names of
// its downstream targets.
//
// Resolution happens exactly once, eagerly, at construction time. A
// downstream name that matches a declared stage resolves to that stage's
// inbound queue; any other name creates a named external output queue,
// shared by every stage that references it and reachable through Source.
// A stage with no targets is a terminal sink of the flow.
//
// The graph performs no cycle detection. A wiring path that feeds back into
// an upstream stage is the supported feedback mechanism - typically a sink
// pushing a control item to re-arm a source per unit of data consumed. What
// control value re-arms versus halts is the transform's policy; the graph
// moves opaque items only.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/c360/flowpipe/errors"
	"github.com/c360/flowpipe/metric"
	"github.com/c360/flowpipe/queue"
	"github.com/c360/flowpipe/stage"
)

// Node declares one stage and the names of its downstream targets.
type Node[T any] struct {
	Stage   *stage.Stage[T]
	Outputs []string
}

// Graph owns a set of wired stages and their external output queues.
type Graph[T any] struct {
	id      string
	nodes   map[string]Node[T]
	names   []string // sorted stage names for deterministic iteration
	outputs map[string]*queue.Queue[T]
	logger  *slog.Logger
	metrics *metric.Metrics

	mu      sync.Mutex
	started bool
}

// Option configures a Graph.
type Option[T any] func(*graphOptions)

type graphOptions struct {
	logger  *slog.Logger
	metrics *metric.Metrics
}

// WithLogger sets the graph logger. Stages receive child loggers carrying
// their names.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(o *graphOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics instruments the graph's stages and queues with the given
// runtime metrics.
func WithMetrics[T any](m *metric.Metrics) Option[T] {
	return func(o *graphOptions) {
		o.metrics = m
	}
}

// New resolves the wiring description into concrete queues and binds every
// stage. It fails fast, before any stage starts, on empty wiring, nil stages
// or a stage instance declared under more than one name.
func New[T any](wiring map[string]Node[T], opts ...Option[T]) (*Graph[T], error) {
	if len(wiring) == 0 {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Graph", "New", "empty wiring description")
	}

	options := &graphOptions{logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	g := &Graph[T]{
		id:      uuid.NewString(),
		nodes:   make(map[string]Node[T], len(wiring)),
		outputs: make(map[string]*queue.Queue[T]),
		metrics: options.metrics,
	}
	g.logger = options.logger.With("graph_id", g.id)

	seen := make(map[*stage.Stage[T]]string, len(wiring))
	for name, node := range wiring {
		if name == "" {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Graph", "New", "empty stage name")
		}
		if node.Stage == nil {
			return nil, errors.WrapInvalid(errors.ErrNilStage, "Graph", "New",
				fmt.Sprintf("stage %q", name))
		}
		if prev, ok := seen[node.Stage]; ok {
			return nil, errors.WrapInvalid(
				fmt.Errorf("stage instance declared as both %q and %q", prev, name),
				"Graph", "New", "duplicate stage instance")
		}
		seen[node.Stage] = name

		g.nodes[name] = node
		g.names = append(g.names, name)
	}
	sort.Strings(g.names)

	// Resolve every downstream name exactly once, before any stage starts.
	for _, name := range g.names {
		node := g.nodes[name]

		resolved := make([]*queue.Queue[T], len(node.Outputs))
		for i, target := range node.Outputs {
			if target == "" {
				return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Graph", "New",
					fmt.Sprintf("stage %q has an empty output name", name))
			}

			if downstream, ok := g.nodes[target]; ok {
				resolved[i] = downstream.Stage.In()
				continue
			}

			// Not a declared stage: a named external output, one queue
			// instance shared by every stage that references it.
			out, ok := g.outputs[target]
			if !ok {
				out = queue.New[T]()
				if g.metrics != nil {
					out.Instrument(g.metrics, target)
				}
				g.outputs[target] = out
			}
			resolved[i] = out
		}

		node.Stage.Bind(name, g.logger.With("stage", name), g.metrics)
		if err := node.Stage.SetOutputs(resolved); err != nil {
			return nil, errors.WrapInvalid(err, "Graph", "New",
				fmt.Sprintf("assign outputs of stage %q", name))
		}
	}

	g.logger.Info("graph wired",
		"stages", len(g.nodes),
		"external_outputs", len(g.outputs))

	return g, nil
}

// ID returns the unique identifier of this graph instance.
func (g *Graph[T]) ID() string {
	return g.id
}

// Start starts every declared stage. Order carries no meaning: stages only
// communicate through queues that already exist. If any stage fails to start,
// the ones already started are stopped and the error is returned.
func (g *Graph[T]) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Graph", "Start", "start stages")
	}

	var startedStages []*stage.Stage[T]
	for _, name := range g.names {
		node := g.nodes[name]
		if err := node.Stage.Start(ctx); err != nil {
			for _, st := range startedStages {
				_ = st.Stop(time.Second)
			}
			return errors.Wrap(err, "Graph", "Start", fmt.Sprintf("start stage %q", name))
		}
		startedStages = append(startedStages, node.Stage)
	}

	g.started = true
	g.logger.Info("graph started")
	return nil
}

// Stop stops every declared stage, each with the given timeout, concurrently.
// Order carries no meaning: stopping only waits on each stage's own worker.
// Idempotent for stages that already halted on their own.
func (g *Graph[T]) Stop(timeout time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var eg errgroup.Group
	for _, name := range g.names {
		name := name
		node := g.nodes[name]
		eg.Go(func() error {
			if err := node.Stage.Stop(timeout); err != nil {
				return errors.Wrap(err, "Graph", "Stop", fmt.Sprintf("stop stage %q", name))
			}
			return nil
		})
	}

	err := eg.Wait()
	g.started = false
	if err != nil {
		return err
	}
	g.logger.Info("graph stopped")
	return nil
}

// Running reports whether the named stage's worker is alive.
func (g *Graph[T]) Running(name string) (bool, error) {
	node, ok := g.nodes[name]
	if !ok {
		return false, errors.WrapInvalid(errors.ErrStageNotFound, "Graph", "Running",
			fmt.Sprintf("stage %q", name))
	}
	return node.Stage.Running(), nil
}

// Err returns the error that stopped the named stage's last run, if any.
func (g *Graph[T]) Err(name string) (error, error) {
	node, ok := g.nodes[name]
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrStageNotFound, "Graph", "Err",
			fmt.Sprintf("stage %q", name))
	}
	return node.Stage.Err(), nil
}

// Sink returns the inbound queue of the named declared stage, for injecting
// the item(s) that drive the whole graph.
func (g *Graph[T]) Sink(name string) (*queue.Queue[T], error) {
	node, ok := g.nodes[name]
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrStageNotFound, "Graph", "Sink",
			fmt.Sprintf("stage %q", name))
	}
	return node.Stage.In(), nil
}

// Source returns the external output queue registered under name. It fails
// if no stage declared the name as a downstream target.
func (g *Graph[T]) Source(name string) (*queue.Queue[T], error) {
	out, ok := g.outputs[name]
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrOutputNotFound, "Graph", "Source",
			fmt.Sprintf("output %q", name))
	}
	return out, nil
}

// Outputs returns the names of all external output queues.
func (g *Graph[T]) Outputs() []string {
	names := make([]string, 0, len(g.outputs))
	for name := range g.outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stages returns the sorted names of all declared stages.
func (g *Graph[T]) Stages() []string {
	names := make([]string, len(g.names))
	copy(names, g.names)
	return names
}
