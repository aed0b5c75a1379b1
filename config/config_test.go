package config

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/flowpipe/errors"
	"github.com/c360/flowpipe/graph"
	"github.com/c360/flowpipe/stage"
)

const sampleDefinition = `
poll_interval: 10ms
stages:
  double:
    transform: scale
    params:
      factor: 2
    outputs: [offset]
  offset:
    transform: add
    params:
      amount: 10
    outputs: [result]
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleDefinition))
	require.NoError(t, err)

	assert.Equal(t, 10*time.Millisecond, cfg.PollInterval.Std())
	require.Len(t, cfg.Stages, 2)

	double := cfg.Stages["double"]
	assert.Equal(t, "scale", double.Transform)
	assert.Equal(t, 2, double.Params["factor"])
	assert.Equal(t, []string{"offset"}, double.Outputs)
}

func TestDurationForms(t *testing.T) {
	cfg, err := Parse([]byte("poll_interval: 250ms\nstages:\n  a:\n    transform: x\n"))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval.Std())

	// Plain integers are nanoseconds
	cfg, err = Parse([]byte("poll_interval: 1000\nstages:\n  a:\n    transform: x\n"))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(1000), cfg.PollInterval.Std())

	_, err = Parse([]byte("poll_interval: soon\nstages:\n  a:\n    transform: x\n"))
	require.Error(t, err)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("stages: ["))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		cfg      GraphConfig
		expected error
	}{
		{
			name:     "no stages",
			cfg:      GraphConfig{},
			expected: errors.ErrMissingConfig,
		},
		{
			name: "negative poll interval",
			cfg: GraphConfig{
				PollInterval: Duration(-time.Second),
				Stages:       map[string]StageConfig{"a": {Transform: "x"}},
			},
			expected: errors.ErrInvalidConfig,
		},
		{
			name: "missing transform",
			cfg: GraphConfig{
				Stages: map[string]StageConfig{"a": {}},
			},
			expected: errors.ErrMissingConfig,
		},
		{
			name: "empty output name",
			cfg: GraphConfig{
				Stages: map[string]StageConfig{"a": {Transform: "x", Outputs: []string{""}}},
			},
			expected: errors.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, tt.expected))
		})
	}

	valid := GraphConfig{
		Stages: map[string]StageConfig{"a": {Transform: "x", Outputs: []string{"out"}}},
	}
	assert.NoError(t, valid.Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDefinition), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Stages, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry[int]()

	identity := func(map[string]any) (stage.Transform[int], error) {
		return nil, nil
	}

	require.NoError(t, r.Register("identity", identity))
	assert.Equal(t, []string{"identity"}, r.Names())

	err := r.Register("identity", identity)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	require.Error(t, r.Register("", identity))
	require.Error(t, r.Register("nil-factory", nil))
}

func intParam(params map[string]any, key string) int {
	if v, ok := params[key].(int); ok {
		return v
	}
	return 0
}

func testRegistry(t *testing.T) *Registry[int] {
	t.Helper()
	r := NewRegistry[int]()

	require.NoError(t, r.Register("scale", func(params map[string]any) (stage.Transform[int], error) {
		factor := intParam(params, "factor")
		return func(_ context.Context, item int) (int, error) {
			return item * factor, nil
		}, nil
	}))
	require.NoError(t, r.Register("add", func(params map[string]any) (stage.Transform[int], error) {
		amount := intParam(params, "amount")
		return func(_ context.Context, item int) (int, error) {
			return item + amount, nil
		}, nil
	}))

	return r
}

func TestBuildAndRun(t *testing.T) {
	cfg, err := Parse([]byte(sampleDefinition))
	require.NoError(t, err)

	wiring, err := testRegistry(t).Build(cfg)
	require.NoError(t, err)
	require.Len(t, wiring, 2)

	g, err := graph.New(wiring)
	require.NoError(t, err)

	require.NoError(t, g.Start(context.Background()))
	defer g.Stop(time.Second)

	in, err := g.Sink("double")
	require.NoError(t, err)
	out, err := g.Source("result")
	require.NoError(t, err)

	in.Put(3)
	value, ok := out.GetWait(time.Second)
	require.True(t, ok)
	assert.Equal(t, 16, value, "3*2+10 flows through the built graph")
}

func TestBuildUnknownTransform(t *testing.T) {
	cfg := &GraphConfig{
		Stages: map[string]StageConfig{
			"a": {Transform: "does-not-exist"},
		},
	}

	_, err := testRegistry(t).Build(cfg)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestBuildNilConfig(t *testing.T) {
	_, err := testRegistry(t).Build(nil)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrMissingConfig))
}
