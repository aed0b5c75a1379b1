package natsbridge

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/flowpipe/errors"
	"github.com/c360/flowpipe/queue"
)

// Sink drains a queue and publishes each item to a NATS subject. Items
// that fail to encode are logged and dropped; publish failures are
// logged and the item is discarded, on the assumption the transport
// will recover via reconnect.
type Sink[T any] struct {
	cfg    Config
	encode Encode[T]
	in     *queue.Queue[T]
	logger *slog.Logger

	conn *nats.Conn

	shutdown chan struct{}
	done     chan struct{}
	running  atomic.Bool
}

// NewSink creates a sink that drains in. The encode function is
// required.
func NewSink[T any](cfg Config, encode Encode[T], in *queue.Queue[T], logger *slog.Logger) (*Sink[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if encode == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Sink", "NewSink", "check encode func")
	}
	if in == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Sink", "NewSink", "check input queue")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink[T]{
		cfg:    cfg.withDefaults(),
		encode: encode,
		in:     in,
		logger: logger.With("component", "nats_sink", "subject", cfg.Subject),
	}, nil
}

// Start connects and begins draining the queue.
func (s *Sink[T]) Start(ctx context.Context) error {
	if s.running.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Sink", "Start", "check state")
	}

	conn, err := connect(s.cfg, s.logger)
	if err != nil {
		return err
	}

	s.conn = conn
	s.shutdown = make(chan struct{})
	s.done = make(chan struct{})
	s.running.Store(true)

	go s.run(ctx, s.shutdown, s.done)

	s.logger.Info("sink started", "url", s.cfg.URL)
	return nil
}

func (s *Sink[T]) run(ctx context.Context, shutdown <-chan struct{}, done chan<- struct{}) {
	defer func() {
		s.conn.Close()
		s.running.Store(false)
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-shutdown:
			return
		default:
		}

		item, ok := s.in.GetWait(s.cfg.PollInterval)
		if !ok {
			continue
		}
		s.publish(item)
	}
}

func (s *Sink[T]) publish(item T) {
	data, err := s.encode(item)
	if err != nil {
		s.logger.Warn("item dropped", "error", err)
		return
	}
	if err := s.conn.Publish(s.cfg.Subject, data); err != nil {
		err = errors.WrapTransient(err, "Sink", "publish", "publish message")
		s.logger.Warn("publish failed", "error", err)
	}
}

// Running reports whether the sink is draining.
func (s *Sink[T]) Running() bool {
	return s.running.Load()
}

// Stop disconnects and waits up to timeout for the worker to exit.
func (s *Sink[T]) Stop(timeout time.Duration) error {
	if s.shutdown == nil {
		return nil
	}
	select {
	case <-s.shutdown:
	default:
		close(s.shutdown)
	}
	select {
	case <-s.done:
		s.logger.Info("sink stopped")
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrStopTimeout, "Sink", "Stop", "wait for worker")
	}
}
