// Package tools wraps the external binaries the pipeline drives.
//
// Each tool is a pure command builder: a typed options struct that maps to an
// argv list plus the output files the invocation is declared to produce.
// Actual process execution goes through the Runner interface so tests can
// substitute a fake and never exec anything.
package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/openneuropet/petdeface/internal/ctxlog"
)

// Binary names.
const (
	binMideface = "mideface"
	binMRICoreg = "mri_coreg"
)

// Command is a fully assembled external-tool invocation.
type Command struct {
	// Name is the binary to invoke.
	Name string
	// Args is the full argument list, excluding the binary name.
	Args []string
	// Outputs lists the files the invocation is expected to produce.
	// Declared up front so callers can verify and wire dependencies
	// without parsing tool output.
	Outputs []string
}

// Runner executes assembled commands. The one non-test implementation shells
// out; tests inject fakes that record invocations and fabricate outputs.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands as subprocesses, surfacing the tool's combined
// output unmodified inside the returned error for debuggability.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, cmd Command) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Running external tool.", "binary", cmd.Name, "args", cmd.Args)

	var buf bytes.Buffer
	proc := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	proc.Stdout = &buf
	proc.Stderr = &buf
	if err := proc.Run(); err != nil {
		return fmt.Errorf("%s failed: %w\n%s", cmd.Name, err, buf.String())
	}
	logger.Debug("External tool finished.", "binary", cmd.Name)
	return nil
}
