// Package stage implements the processing unit of a pipeline: one worker
// goroutine that polls an inbound queue, applies an injected transform to each
// item, and forwards the result to every outbound queue.
//
// The transform contract is a single function:
//
//	func(ctx context.Context, item T) (T, error)
//
// Returning a nil error forwards the (possibly transformed) item to all
// outbound queues and continues the loop - forwarding is owned by the stage,
// not the transform. Returning ErrHalt stops the worker without forwarding,
// the way an exhausted source or a closed sink bows out. Any other error is
// logged, recorded (see Err) and stops the worker.
//
// A stage is not self-named. The graph that wires it assigns its identity,
// logger and metrics through Bind. Stages are restartable: after Stop (or a
// self-halt) the worker is gone and Start may be called again.
package stage

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/flowpipe/errors"
	"github.com/c360/flowpipe/metric"
	"github.com/c360/flowpipe/queue"
)

// DefaultPollInterval is how long the worker waits on its inbound queue before
// re-checking the stop signal. It bounds the worst-case latency of Stop.
const DefaultPollInterval = 100 * time.Millisecond

// ErrHalt signals, from inside a transform, that the stage should stop its
// worker without forwarding the current item. It is a control value, not a
// failure: a halt is not recorded as the stage's error.
var ErrHalt = stderrors.New("stage halt requested")

// Transform is the per-stage processing function. See the package
// documentation for the forwarding and halt contract.
type Transform[T any] func(ctx context.Context, item T) (T, error)

// Stage runs a Transform against items from its inbound queue on a dedicated
// worker goroutine.
type Stage[T any] struct {
	transform Transform[T]
	in        *queue.Queue[T]
	poll      time.Duration

	// Identity, assigned by the graph via Bind
	name    string
	logger  *slog.Logger
	metrics *metric.Metrics

	mu       sync.Mutex
	outputs  []*queue.Queue[T]
	shutdown chan struct{}
	done     chan struct{}
	lastErr  error
	running  atomic.Bool
}

// Option configures a Stage.
type Option[T any] func(*Stage[T])

// WithPollInterval sets the inbound poll timeout. Values <= 0 keep the default.
func WithPollInterval[T any](d time.Duration) Option[T] {
	return func(s *Stage[T]) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithLogger sets the stage logger. Bind overrides it with a child logger
// carrying the stage's graph-assigned name.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(s *Stage[T]) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an idle stage. A nil transform forwards items unchanged.
func New[T any](transform Transform[T], opts ...Option[T]) *Stage[T] {
	if transform == nil {
		transform = func(_ context.Context, item T) (T, error) {
			return item, nil
		}
	}

	s := &Stage[T]{
		transform: transform,
		in:        queue.New[T](),
		poll:      DefaultPollInterval,
		name:      "stage",
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// In returns the stage's inbound queue. The stage exclusively owns the
// consuming end; producers (upstream stages or the driver) share the other.
func (s *Stage[T]) In() *queue.Queue[T] {
	return s.in
}

// Name returns the graph-assigned name, or "stage" before Bind.
func (s *Stage[T]) Name() string {
	return s.name
}

// Bind assigns the stage its externally-owned identity: name, logger and
// metrics. The graph calls it during wiring, before Start. The inbound queue
// is instrumented under the stage name.
func (s *Stage[T]) Bind(name string, logger *slog.Logger, m *metric.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name != "" {
		s.name = name
	}
	if logger != nil {
		s.logger = logger
	}
	s.metrics = m
	if m != nil {
		s.in.Instrument(m, s.name)
		m.SetStageStatus(s.name, metric.StageIdle)
	}
}

// SetOutputs replaces the outbound queue list. It fails once the worker is
// running; the list is fixed for the lifetime of a run.
func (s *Stage[T]) SetOutputs(outputs []*queue.Queue[T]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return errors.WrapInvalid(errors.ErrOutputsSealed, "Stage", "SetOutputs", "replace outbound queues")
	}

	s.outputs = outputs
	return nil
}

// Outputs returns the current outbound queue list.
func (s *Stage[T]) Outputs() []*queue.Queue[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputs
}

// Start spawns the worker goroutine. It fails if a worker is already active.
func (s *Stage[T]) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Stage", "Start", "spawn worker")
	}

	s.shutdown = make(chan struct{})
	s.done = make(chan struct{})
	s.lastErr = nil
	s.running.Store(true)

	if s.metrics != nil {
		s.metrics.SetStageStatus(s.name, metric.StageRunning)
	}
	s.logger.Debug("stage started", "poll_interval", s.poll)

	go s.run(ctx, s.shutdown, s.done)
	return nil
}

// Running reports whether the worker is alive. It turns false on its own when
// the transform halts or fails, without any external intervention.
func (s *Stage[T]) Running() bool {
	return s.running.Load()
}

// Err returns the error that stopped the last run, if any. A halt via ErrHalt
// or an external Stop leaves it nil.
func (s *Stage[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Stop requests the worker to exit at its next poll and waits for it, up to
// timeout. Stopping an idle or already-stopped stage returns nil immediately.
func (s *Stage[T]) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if s.done == nil {
		// Never started
		s.mu.Unlock()
		return nil
	}
	done := s.done
	select {
	case <-s.shutdown:
	default:
		close(s.shutdown)
	}
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrStopTimeout, "Stage", "Stop", "wait for worker exit")
	}
}

// run is the worker loop. It exits when the shutdown channel closes, the
// context is cancelled, or the transform halts or fails.
func (s *Stage[T]) run(ctx context.Context, shutdown, done chan struct{}) {
	status := metric.StageIdle

	defer func() {
		s.running.Store(false)
		if s.metrics != nil {
			s.metrics.SetStageStatus(s.name, status)
		}
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("stage context cancelled")
			return
		case <-shutdown:
			s.logger.Debug("stage stop requested")
			return
		default:
		}

		item, ok := s.in.GetWait(s.poll)
		if !ok {
			continue
		}

		start := time.Now()
		out, err := s.transform(ctx, item)
		elapsed := time.Since(start)

		if err != nil {
			if stderrors.Is(err, ErrHalt) {
				if s.metrics != nil {
					s.metrics.RecordProcessed(s.name, "halt", elapsed)
				}
				s.logger.Info("stage halted by transform")
				status = metric.StageHalted
				return
			}

			if s.metrics != nil {
				s.metrics.RecordProcessed(s.name, "error", elapsed)
				s.metrics.RecordTransformError(s.name)
			}
			s.logger.Error("transform failed, stopping stage", "error", err)
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
			status = metric.StageFailed
			return
		}

		if s.metrics != nil {
			s.metrics.RecordProcessed(s.name, "success", elapsed)
		}

		s.mu.Lock()
		outputs := s.outputs
		s.mu.Unlock()
		for _, q := range outputs {
			q.Put(out)
		}
		if s.metrics != nil {
			s.metrics.RecordForwarded(s.name, len(outputs))
		}
	}
}
