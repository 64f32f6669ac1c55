// Package app wires the defacing pipeline together: dataset validation,
// subject discovery, graph assembly, bounded-parallel execution, synthetic
// anatomical cleanup, and output reconciliation.
package app

import (
	"io"
	"log/slog"
	"os"

	"github.com/openneuropet/petdeface/internal/tools"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	runner tools.Runner

	// checkTools is set when the default subprocess runner is in use, so
	// the run verifies the external environment before scheduling work.
	checkTools bool
}

// New is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger. A nil runner
// selects the subprocess-based default.
func New(outW io.Writer, config *Config, runner tools.Runner) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	checkTools := false
	if runner == nil {
		runner = tools.ExecRunner{}
		checkTools = true
	}

	return &App{
		outW:       outW,
		logger:     logger,
		config:     config,
		runner:     runner,
		checkTools: checkTools,
	}
}

// debugEnabled reports whether the operator asked to keep intermediate
// artifacts for inspection.
func debugEnabled() bool {
	return os.Getenv("PETDEFACE_DEBUG") != ""
}
