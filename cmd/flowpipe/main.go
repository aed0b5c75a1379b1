// Package main implements the entry point for the flowpipe demo
// application: a feedback-driven frame pipeline that renders synthetic
// frames, pushes them through mirror and jitter filters, and loops the
// display's ack back to the generator.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/flowpipe/config"
	"github.com/c360/flowpipe/graph"
	"github.com/c360/flowpipe/metric"
	"github.com/c360/flowpipe/stage"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "flowpipe"
)

// pollInterval for watching pipeline liveness from the driver loop.
const watchInterval = 200 * time.Millisecond

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting flowpipe",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	metricsRegistry := metric.NewMetricsRegistry()

	wiring, sentinel, err := buildWiring(cliCfg, logger)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Pipeline definition is valid")
		return nil
	}

	g, err := graph.New(wiring,
		graph.WithLogger[Frame](logger),
		graph.WithMetrics[Frame](metricsRegistry.CoreMetrics()),
	)
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}

	var metricsServer *metric.Server
	if cliCfg.MetricsPort > 0 {
		metricsServer = metric.NewServer(cliCfg.MetricsPort, "/metrics", metricsRegistry)
		go func() {
			if err := metricsServer.Start(); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			if err := metricsServer.Stop(); err != nil {
				slog.Warn("metrics server stop failed", "error", err)
			}
		}()
	}

	ctx := context.Background()
	if err := g.Start(ctx); err != nil {
		return fmt.Errorf("start graph: %w", err)
	}

	// Kick the feedback loop with one render token.
	seed, err := g.Sink("source")
	if err != nil {
		return fmt.Errorf("seed pipeline: %w", err)
	}
	seed.Put(Frame{})

	return watch(g, sentinel, cliCfg.ShutdownTimeout)
}

// watch blocks until the sentinel stage halts or a termination signal
// arrives, then stops the whole graph.
func watch(g *graph.Graph[Frame], sentinel string, shutdownTimeout time.Duration) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case sig := <-sigCh:
			slog.Info("Shutdown signal received", "signal", sig.String())
			return stopGraph(g, shutdownTimeout)
		case <-ticker.C:
			running, err := g.Running(sentinel)
			if err != nil {
				return fmt.Errorf("watch sentinel: %w", err)
			}
			if !running {
				if failure, _ := g.Err(sentinel); failure != nil {
					slog.Error("Pipeline failed", "stage", sentinel, "error", failure)
					_ = stopGraph(g, shutdownTimeout)
					return failure
				}
				slog.Info("Pipeline finished", "stage", sentinel)
				return stopGraph(g, shutdownTimeout)
			}
		}
	}
}

func stopGraph(g *graph.Graph[Frame], timeout time.Duration) error {
	if err := g.Stop(timeout); err != nil {
		return fmt.Errorf("stop graph: %w", err)
	}
	slog.Info("Pipeline stopped")
	return nil
}

// buildWiring builds either the configured pipeline or the built-in
// demo. It returns the wiring plus the stage name to watch for
// completion.
func buildWiring(cliCfg *CLIConfig, logger *slog.Logger) (map[string]graph.Node[Frame], string, error) {
	registry := config.NewRegistry[Frame]()
	if err := registerTransforms(registry, logger); err != nil {
		return nil, "", err
	}

	if cliCfg.ConfigPath != "" {
		cfg, err := config.Load(cliCfg.ConfigPath)
		if err != nil {
			return nil, "", fmt.Errorf("load pipeline definition: %w", err)
		}
		wiring, err := registry.Build(cfg)
		if err != nil {
			return nil, "", fmt.Errorf("build pipeline: %w", err)
		}
		sentinel, err := findSentinel(cfg)
		if err != nil {
			return nil, "", err
		}
		return wiring, sentinel, nil
	}

	return builtinWiring(cliCfg), "display", nil
}

// builtinWiring replicates the demo topology: generator feeding mirror
// and jitter filters into the display, whose output both re-arms the
// generator and feeds a heart/tint branch draining to the "preview"
// output queue.
func builtinWiring(cliCfg *CLIConfig) map[string]graph.Node[Frame] {
	return map[string]graph.Node[Frame]{
		"source": {
			Stage:   stage.New(newGenerator(64, 48)),
			Outputs: []string{"mirror"},
		},
		"mirror": {
			Stage:   stage.New(newMirror()),
			Outputs: []string{"jitter"},
		},
		"jitter": {
			Stage:   stage.New(newJitter(2)),
			Outputs: []string{"display"},
		},
		"display": {
			Stage:   stage.New(newDisplay(cliCfg.FrameBudget, 10, slog.Default())),
			Outputs: []string{"source", "heart"},
		},
		"heart": {
			Stage:   stage.New(newHeartOverlay()),
			Outputs: []string{"tint"},
		},
		"tint": {
			Stage:   stage.New(newTint(40)),
			Outputs: []string{"preview"},
		},
	}
}

// findSentinel picks the stage to watch in configured pipelines: the
// one running the display transform, since that is where the frame
// budget halts.
func findSentinel(cfg *config.GraphConfig) (string, error) {
	for name, sc := range cfg.Stages {
		if sc.Transform == "display" {
			return name, nil
		}
	}
	return "", fmt.Errorf("pipeline definition has no display stage to watch")
}
