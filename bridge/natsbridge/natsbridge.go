// Package natsbridge connects a pipeline to NATS subjects.
//
// A Source subscribes to a subject and feeds decoded messages into a
// queue, typically one obtained from graph.Sink. A Sink drains a queue,
// typically one obtained from graph.Source, and publishes each item to
// a subject. Both run a single worker goroutine with the same
// start/stop lifecycle as a pipeline stage, so a process can tie their
// shutdown to the graph's.
package natsbridge

import (
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/flowpipe/errors"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReconnectWait  = 2 * time.Second
	DefaultPollInterval   = 100 * time.Millisecond
)

// Config holds connection settings shared by Source and Sink.
type Config struct {
	// URL is the NATS server URL, e.g. nats://localhost:4222.
	URL string

	// Subject to subscribe or publish to.
	Subject string

	// Name identifies the client connection on the server. Optional.
	Name string

	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout time.Duration

	// ReconnectWait is the delay between reconnection attempts.
	ReconnectWait time.Duration

	// PollInterval bounds how long a Sink waits on its queue before
	// rechecking for shutdown. Sources do not poll.
	PollInterval time.Duration
}

// Validate checks that required fields are set.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "check URL")
	}
	if c.Subject == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "check subject")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = DefaultReconnectWait
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// Decode converts a raw NATS payload into a pipeline item. Returning an
// error drops the message.
type Decode[T any] func(data []byte) (T, error)

// Encode converts a pipeline item into a NATS payload.
type Encode[T any] func(item T) ([]byte, error)

// connect dials NATS with reconnect handlers that log through the
// given logger.
func connect(cfg Config, logger *slog.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats connection closed")
		}),
	}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, errors.WrapTransient(err, "natsbridge", "connect", "dial server")
	}
	return nc, nil
}
