// Package procexec runs collaborator executables through a typed invocation:
// binary, arguments and working directory in, captured stdout, stderr and
// exit code out. Callers never format shell strings.
package procexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Invocation describes a single process run.
type Invocation struct {
	Binary string
	Args   []string
	Dir    string
	// Stdout, when set, receives standard output instead of the in-memory
	// buffer. Used for collaborators that stream large dumps to a file.
	Stdout io.Writer
}

// String renders the invocation for logs.
func (inv Invocation) String() string {
	parts := make([]string, 0, len(inv.Args)+1)
	parts = append(parts, inv.Binary)
	parts = append(parts, inv.Args...)
	return strings.Join(parts, " ")
}

// Result carries everything a caller needs to validate a run.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// StdoutLines splits captured stdout into non-empty trimmed lines.
func (r Result) StdoutLines() []string {
	return splitLines(r.Stdout)
}

// StderrText returns trimmed stderr.
func (r Result) StderrText() string {
	return strings.TrimSpace(string(r.Stderr))
}

// ExitError reports a non-zero exit status together with the captured stderr.
type ExitError struct {
	Invocation Invocation
	Result     Result
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Invocation.Binary, e.Result.ExitCode)
	if stderr := e.Result.StderrText(); stderr != "" {
		msg += ": " + firstLine(stderr)
	}
	return msg
}

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, inv Invocation) (Result, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, inv Invocation) (Result, error) {
	return f(ctx, inv)
}

// ExecRunner runs processes with os/exec.
type ExecRunner struct {
	// Env is appended to the inherited environment.
	Env []string
}

// Run executes the invocation and waits for it. A non-zero exit returns the
// captured Result together with an *ExitError.
func (r ExecRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	if strings.TrimSpace(inv.Binary) == "" {
		return Result{ExitCode: -1}, errors.New("procexec: binary required")
	}
	cmd := exec.CommandContext(ctx, inv.Binary, inv.Args...) //nolint:gosec
	cmd.Dir = inv.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	if inv.Stdout != nil {
		cmd.Stdout = inv.Stdout
	} else {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return result, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, &ExitError{Invocation: inv, Result: result}
	}
	result.ExitCode = -1
	return result, fmt.Errorf("run %s: %w", inv.Binary, err)
}

func splitLines(data []byte) []string {
	raw := strings.Split(string(data), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return text[:idx]
	}
	return text
}
