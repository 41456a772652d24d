package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Result is the outcome of a finished command. A nonzero exit code is not an
// error; callers inspect Code themselves.
type Result struct {
	Code   int
	Stdout []byte
	Stderr []byte
}

// Success reports whether the command exited with code 0.
func (r Result) Success() bool {
	return r.Code == 0
}

// StdoutString returns stdout with surrounding whitespace removed.
func (r Result) StdoutString() string {
	return strings.TrimSpace(string(r.Stdout))
}

// StderrString returns stderr with surrounding whitespace removed.
func (r Result) StderrString() string {
	return strings.TrimSpace(string(r.Stderr))
}

// Runner executes external commands.
type Runner interface {
	// Run executes name with args and waits for it to exit. The returned error
	// is non-nil only when the process could not be run at all.
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs commands on the host with os/exec.
type ExecRunner struct{}

// NewExecRunner creates a runner backed by os/exec
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}
	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Killed by the context: the process did not finish on its own.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("%s: %w", name, ctxErr)
		}
		result.Code = exitErr.ExitCode()
		return result, nil
	}

	return result, fmt.Errorf("failed to run %s: %w", name, err)
}
