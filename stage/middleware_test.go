package stage

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestChain(t *testing.T) {
	addOne := func(_ context.Context, item int) (int, error) { return item + 1, nil }
	double := func(_ context.Context, item int) (int, error) { return item * 2, nil }

	chained := Chain(addOne, double, nil)

	value, err := chained(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 8, value, "steps apply left to right")
}

func TestChainShortCircuitsOnError(t *testing.T) {
	boom := stderrors.New("boom")
	failing := func(_ context.Context, item int) (int, error) { return 0, boom }
	var reached bool
	after := func(_ context.Context, item int) (int, error) {
		reached = true
		return item, nil
	}

	chained := Chain(failing, after)

	_, err := chained(context.Background(), 1)
	assert.True(t, stderrors.Is(err, boom))
	assert.False(t, reached, "steps after a failure must not run")
}

func TestChainPropagatesHalt(t *testing.T) {
	halting := func(_ context.Context, item int) (int, error) { return 0, ErrHalt }

	chained := Chain(halting)

	_, err := chained(context.Background(), 1)
	assert.True(t, stderrors.Is(err, ErrHalt))
}

func TestTap(t *testing.T) {
	var seen []int
	tap := Tap(func(item int) { seen = append(seen, item) })

	value, err := tap(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, value)
	assert.Equal(t, []int{5}, seen)

	// Nil observer is a pass-through
	passthrough := Tap[int](nil)
	value, err = passthrough(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, 6, value)
}

func TestThrottlePacesInvocations(t *testing.T) {
	identity := func(_ context.Context, item int) (int, error) { return item, nil }

	// 100/s with burst 1: three calls need roughly 20ms
	throttled := Throttle(identity, rate.NewLimiter(100, 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := throttled(context.Background(), i)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestThrottleNilLimiterIsPassThrough(t *testing.T) {
	identity := func(_ context.Context, item int) (int, error) { return item, nil }

	value, err := Throttle(identity, nil)(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, value)
}

func TestThrottleStopsOnCancelledContext(t *testing.T) {
	identity := func(_ context.Context, item int) (int, error) { return item, nil }
	throttled := Throttle(identity, rate.NewLimiter(0.001, 1))

	ctx, cancel := context.WithCancel(context.Background())
	_, err := throttled(ctx, 1) // consume the burst
	require.NoError(t, err)

	cancel()
	_, err = throttled(ctx, 2)
	require.Error(t, err)
}

func TestLogged(t *testing.T) {
	boom := stderrors.New("boom")
	failing := func(_ context.Context, item int) (int, error) { return 0, boom }

	_, err := Logged(failing, nil)(context.Background(), 1)
	assert.True(t, stderrors.Is(err, boom), "logging wrapper must preserve the error")

	identity := func(_ context.Context, item int) (int, error) { return item, nil }
	value, err := Logged(identity, nil)(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, value)
}
