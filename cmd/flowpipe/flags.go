package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	MetricsPort     int
	ShutdownTimeout time.Duration
	FrameBudget     int
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("FLOWPIPE_CONFIG", ""),
		"Path to pipeline definition, empty for the built-in demo (env: FLOWPIPE_CONFIG)")

	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("FLOWPIPE_CONFIG", ""),
		"Path to pipeline definition, empty for the built-in demo (env: FLOWPIPE_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("FLOWPIPE_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: FLOWPIPE_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("FLOWPIPE_LOG_FORMAT", "text"),
		"Log format: json, text (env: FLOWPIPE_LOG_FORMAT)")

	flag.BoolVar(&cfg.Debug, "debug",
		getEnvBool("FLOWPIPE_DEBUG", false),
		"Enable debug mode (env: FLOWPIPE_DEBUG)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("FLOWPIPE_METRICS_PORT", 0),
		"Prometheus metrics port, 0 to disable (env: FLOWPIPE_METRICS_PORT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("FLOWPIPE_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: FLOWPIPE_SHUTDOWN_TIMEOUT)")

	flag.IntVar(&cfg.FrameBudget, "frames",
		getEnvInt("FLOWPIPE_FRAMES", 100),
		"Frames to render before the demo halts itself, 0 for unlimited (env: FLOWPIPE_FRAMES)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate pipeline definition and exit")

	// Custom usage
	flag.Usage = func() {
		printDetailedHelp()
	}

	flag.Parse()

	// Override log level if debug is set
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	// Validate pipeline definition exists when given
	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("pipeline definition not found: %s", cfg.ConfigPath)
		}
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	// Validate log format
	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	// Validate metrics port
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}

	if cfg.FrameBudget < 0 {
		return fmt.Errorf("invalid frame budget: %d", cfg.FrameBudget)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Dataflow Pipeline Runtime

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run the built-in demo pipeline
  %s

  # Run a pipeline definition
  %s --config=/path/to/pipeline.yaml

  # Run with debug logging and metrics
  %s --log-level=debug --metrics-port=9090

  # Run with environment variables
  export FLOWPIPE_CONFIG=/etc/flowpipe/pipeline.yaml
  export FLOWPIPE_LOG_LEVEL=debug
  %s

  # Validate a pipeline definition only
  %s --config=pipeline.yaml --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
