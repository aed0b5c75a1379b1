// Package config loads declarative graph definitions and turns them into
// runnable wiring through a registry of named transform factories.
//
// A definition is a YAML document naming each stage, the transform it runs,
// optional transform parameters, and its downstream targets:
//
//	poll_interval: 100ms
//	stages:
//	  source:
//	    transform: frames
//	    params:
//	      width: 320
//	    outputs: [mirror]
//	  mirror:
//	    transform: mirror
//	    outputs: [display]
//	  display:
//	    transform: display
//	    outputs: [source]
//
// Downstream names follow graph resolution rules: a declared stage name wires
// to that stage, anything else becomes a named external output.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/flowpipe/errors"
)

// Duration wraps time.Duration with YAML support for strings like "100ms"
// and plain integers (nanoseconds).
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}

	return fmt.Errorf("cannot decode %q as duration", value.Value)
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// GraphConfig is a declarative description of a pipeline.
type GraphConfig struct {
	// PollInterval applies to every stage; zero keeps the stage default.
	PollInterval Duration `yaml:"poll_interval"`

	// Stages maps stage name to its declaration.
	Stages map[string]StageConfig `yaml:"stages"`
}

// StageConfig declares one stage.
type StageConfig struct {
	// Transform names a factory in the Registry used to build the graph.
	Transform string `yaml:"transform"`

	// Params is passed verbatim to the transform factory.
	Params map[string]any `yaml:"params"`

	// Outputs lists downstream names.
	Outputs []string `yaml:"outputs"`
}

// Load reads and validates a graph definition from a YAML file.
func Load(path string) (*GraphConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config", "Load", "read definition file")
	}
	return Parse(data)
}

// Parse parses and validates a YAML graph definition.
func Parse(data []byte) (*GraphConfig, error) {
	var cfg GraphConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Parse", "decode YAML")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures the definition is structurally sound. Whether transform
// names resolve is checked later, against a Registry.
func (c *GraphConfig) Validate() error {
	if len(c.Stages) == 0 {
		return errors.WrapInvalid(errors.ErrMissingConfig, "GraphConfig", "Validate",
			"definition declares no stages")
	}
	if c.PollInterval < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "GraphConfig", "Validate",
			"poll_interval must not be negative")
	}

	for name, sc := range c.Stages {
		if name == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "GraphConfig", "Validate",
				"empty stage name")
		}
		if sc.Transform == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "GraphConfig", "Validate",
				fmt.Sprintf("stage %q declares no transform", name))
		}
		for _, target := range sc.Outputs {
			if target == "" {
				return errors.WrapInvalid(errors.ErrInvalidConfig, "GraphConfig", "Validate",
					fmt.Sprintf("stage %q has an empty output name", name))
			}
		}
	}

	return nil
}
