package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.class.String())
		})
	}
}

func TestWrap(t *testing.T) {
	base := stderrors.New("boom")

	err := Wrap(base, "Stage", "Start", "worker spawn")
	require.Error(t, err)
	assert.Equal(t, "Stage.Start: worker spawn failed: boom", err.Error())
	assert.True(t, stderrors.Is(err, base))

	assert.NoError(t, Wrap(nil, "Stage", "Start", "worker spawn"))
}

func TestWrapClassification(t *testing.T) {
	base := stderrors.New("boom")

	tests := []struct {
		name     string
		wrap     func(error, string, string, string) error
		expected ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap(base, "Graph", "New", "wiring")
			require.Error(t, err)

			var ce *ClassifiedError
			require.True(t, stderrors.As(err, &ce))
			assert.Equal(t, tt.expected, ce.Class)
			assert.Equal(t, "Graph", ce.Component)
			assert.Equal(t, "New", ce.Operation)
			assert.True(t, stderrors.Is(err, base), "wrapped error must unwrap to base")

			assert.NoError(t, tt.wrap(nil, "Graph", "New", "wiring"))
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(WrapTransient(stderrors.New("x"), "c", "m", "a")))
	assert.False(t, IsTransient(WrapInvalid(stderrors.New("x"), "c", "m", "a")))
	assert.True(t, IsTransient(ErrStopTimeout))
	assert.True(t, IsTransient(ErrConnectionLost))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(fmt.Errorf("wait: %w", ErrStopTimeout)))
}

func TestIsInvalid(t *testing.T) {
	assert.False(t, IsInvalid(nil))
	assert.True(t, IsInvalid(WrapInvalid(stderrors.New("x"), "c", "m", "a")))
	assert.True(t, IsInvalid(ErrAlreadyStarted))
	assert.True(t, IsInvalid(ErrStageNotFound))
	assert.True(t, IsInvalid(ErrOutputNotFound))
	assert.False(t, IsInvalid(ErrStopTimeout))
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.True(t, IsFatal(WrapFatal(stderrors.New("x"), "c", "m", "a")))
	assert.False(t, IsFatal(ErrAlreadyStarted))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorTransient, Classify(nil))
	assert.Equal(t, ErrorInvalid, Classify(ErrInvalidConfig))
	assert.Equal(t, ErrorFatal, Classify(WrapFatal(stderrors.New("x"), "c", "m", "a")))
	assert.Equal(t, ErrorTransient, Classify(stderrors.New("something else")))
}

func TestClassifiedErrorMessage(t *testing.T) {
	base := stderrors.New("boom")
	ce := &ClassifiedError{Class: ErrorInvalid, Err: base}
	assert.Equal(t, "boom", ce.Error(), "falls back to wrapped error text")

	ce.Message = "custom"
	assert.Equal(t, "custom", ce.Error())
}
