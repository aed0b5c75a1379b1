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

// Source subscribes to a NATS subject and pushes each decoded message
// onto a queue. Messages that fail to decode are logged and dropped.
type Source[T any] struct {
	cfg    Config
	decode Decode[T]
	out    *queue.Queue[T]
	logger *slog.Logger

	conn *nats.Conn
	sub  *nats.Subscription

	shutdown chan struct{}
	done     chan struct{}
	running  atomic.Bool
}

// NewSource creates a source that feeds out. The decode function is
// required.
func NewSource[T any](cfg Config, decode Decode[T], out *queue.Queue[T], logger *slog.Logger) (*Source[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if decode == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Source", "NewSource", "check decode func")
	}
	if out == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Source", "NewSource", "check output queue")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source[T]{
		cfg:    cfg.withDefaults(),
		decode: decode,
		out:    out,
		logger: logger.With("component", "nats_source", "subject", cfg.Subject),
	}, nil
}

// Start connects and subscribes. The subscription callback runs on the
// NATS client's delivery goroutine; the worker goroutine only watches
// for shutdown.
func (s *Source[T]) Start(ctx context.Context) error {
	if s.running.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Source", "Start", "check state")
	}

	conn, err := connect(s.cfg, s.logger)
	if err != nil {
		return err
	}

	sub, err := conn.Subscribe(s.cfg.Subject, func(msg *nats.Msg) {
		item, err := s.decode(msg.Data)
		if err != nil {
			s.logger.Warn("message dropped", "error", err)
			return
		}
		s.out.Put(item)
	})
	if err != nil {
		conn.Close()
		return errors.WrapTransient(err, "Source", "Start", "subscribe")
	}

	s.conn = conn
	s.sub = sub
	s.shutdown = make(chan struct{})
	s.done = make(chan struct{})
	s.running.Store(true)

	go s.run(ctx, s.shutdown, s.done)

	s.logger.Info("source started", "url", s.cfg.URL)
	return nil
}

func (s *Source[T]) run(ctx context.Context, shutdown <-chan struct{}, done chan<- struct{}) {
	defer func() {
		if err := s.sub.Unsubscribe(); err != nil {
			s.logger.Warn("unsubscribe failed", "error", err)
		}
		s.conn.Close()
		s.running.Store(false)
		close(done)
	}()

	select {
	case <-ctx.Done():
	case <-shutdown:
	}
}

// Running reports whether the source is consuming.
func (s *Source[T]) Running() bool {
	return s.running.Load()
}

// Stop disconnects and waits up to timeout for the worker to exit.
func (s *Source[T]) Stop(timeout time.Duration) error {
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
		s.logger.Info("source stopped")
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrStopTimeout, "Source", "Stop", "wait for worker")
	}
}
