package stage

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"
)

// Chain composes transforms left to right into a single Transform. Each step
// receives the previous step's output. The first error (including ErrHalt)
// short-circuits the chain.
func Chain[T any](transforms ...Transform[T]) Transform[T] {
	return func(ctx context.Context, item T) (T, error) {
		var err error
		for _, transform := range transforms {
			if transform == nil {
				continue
			}
			item, err = transform(ctx, item)
			if err != nil {
				return item, err
			}
		}
		return item, nil
	}
}

// Tap returns a transform that observes each item and forwards it unchanged.
func Tap[T any](fn func(item T)) Transform[T] {
	return func(_ context.Context, item T) (T, error) {
		if fn != nil {
			fn(item)
		}
		return item, nil
	}
}

// Throttle wraps a transform with a rate limiter. The worker blocks in the
// limiter until the next permit or until the context is cancelled; a
// cancellation error stops the stage like any other transform failure.
func Throttle[T any](next Transform[T], limiter *rate.Limiter) Transform[T] {
	if limiter == nil {
		return next
	}
	return func(ctx context.Context, item T) (T, error) {
		if err := limiter.Wait(ctx); err != nil {
			var zero T
			return zero, err
		}
		return next(ctx, item)
	}
}

// Logged wraps a transform with debug logging of each invocation outcome.
func Logged[T any](next Transform[T], logger *slog.Logger) Transform[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, item T) (T, error) {
		out, err := next(ctx, item)
		if err != nil {
			logger.Debug("transform returned error", "error", err)
			return out, err
		}
		logger.Debug("transform processed item")
		return out, nil
	}
}
