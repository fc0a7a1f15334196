// Package scheduler submits profile reconstruction jobs to the batch
// scheduler and lists the jobs still outstanding.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"stereomatch/internal/config"
	"stereomatch/internal/jobs"
	"stereomatch/internal/procexec"
	"stereomatch/internal/services"
)

// Request describes one job.
type Request struct {
	// Name identifies the job in listings; callers use the output path.
	Name    string
	Command []string
	Stdout  string
	Stderr  string
	Dir     string
}

// Option configures the client.
type Option func(*Client)

// WithRunner injects a custom process runner (primarily for tests).
func WithRunner(r procexec.Runner) Option {
	return func(c *Client) {
		if r != nil {
			c.runner = r
		}
	}
}

// Client wraps the scheduler's submit and list commands.
type Client struct {
	submitBinary string
	submitArgs   []string
	listBinary   string
	listArgs     []string
	runner       procexec.Runner
}

// New constructs a scheduler client from configuration.
func New(cfg config.Scheduler, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.SubmitBinary) == "" || strings.TrimSpace(cfg.ListBinary) == "" {
		return nil, errors.New("scheduler submit and list binaries required")
	}
	c := &Client{
		submitBinary: cfg.SubmitBinary,
		submitArgs:   append([]string(nil), cfg.SubmitArgs...),
		listBinary:   cfg.ListBinary,
		listArgs:     append([]string(nil), cfg.ListArgs...),
		runner:       procexec.ExecRunner{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Binaries lists the executables the client needs.
func (c *Client) Binaries() []string {
	return []string{c.submitBinary, c.listBinary}
}

// Submit queues req and returns the job the scheduler assigned.
func (c *Client) Submit(ctx context.Context, req Request) (jobs.Job, error) {
	if len(req.Command) == 0 {
		return jobs.Job{}, services.Wrap(services.ErrValidation, "scheduler", "submit", "Job command is empty", nil)
	}
	command := ShellJoin(req.Command)
	replacer := strings.NewReplacer(
		"{name}", req.Name,
		"{stdout}", req.Stdout,
		"{stderr}", req.Stderr,
		"{command}", command,
	)
	args := make([]string, len(c.submitArgs))
	for i, arg := range c.submitArgs {
		args[i] = replacer.Replace(arg)
	}
	inv := procexec.Invocation{Binary: c.submitBinary, Args: args, Dir: req.Dir}
	res, err := c.runner.Run(ctx, inv)
	if err != nil {
		return jobs.Job{}, services.Wrap(services.ErrExternalTool, "scheduler", "submit", "Scheduler rejected the job", err)
	}
	id, err := parseJobID(res.StdoutLines())
	if err != nil {
		return jobs.Job{}, services.Wrap(services.ErrExternalTool, "scheduler", "submit", "Scheduler did not report a job id", err)
	}
	name := req.Name
	if name == "" {
		name = command
	}
	return jobs.Job{ID: id, Status: "SUBMITTED", Name: name}, nil
}

// List returns every outstanding job. Each output line must read
// "<id> <status> <job name>".
func (c *Client) List(ctx context.Context) ([]jobs.Job, error) {
	res, err := c.runner.Run(ctx, procexec.Invocation{Binary: c.listBinary, Args: c.listArgs})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "scheduler", "list", "Could not list scheduler jobs", err)
	}
	lines := res.StdoutLines()
	out := make([]jobs.Job, 0, len(lines))
	for _, line := range lines {
		job, err := parseJobLine(line)
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "scheduler", "list", "Unexpected job listing", err)
		}
		out = append(out, job)
	}
	return out, nil
}

func parseJobID(lines []string) (int64, error) {
	if len(lines) == 0 {
		return 0, errors.New("empty submit output")
	}
	fields := strings.Fields(lines[0])
	if len(fields) == 0 {
		return 0, errors.New("empty submit output")
	}
	// "--parsable" prints "<id>[;cluster]"; the verbose form ends with the id.
	raw := fields[len(fields)-1]
	if idx := strings.IndexByte(raw, ';'); idx >= 0 {
		raw = raw[:idx]
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("job id %q is not a positive integer", raw)
	}
	return id, nil
}

func parseJobLine(line string) (jobs.Job, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return jobs.Job{}, fmt.Errorf("job line %q has fewer than two fields", line)
	}
	raw := fields[0]
	// Array jobs list as "<id>_<task>".
	if idx := strings.IndexByte(raw, '_'); idx >= 0 {
		raw = raw[:idx]
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("job id %q: %w", fields[0], err)
	}
	return jobs.Job{ID: id, Status: fields[1], Name: strings.Join(fields[2:], " ")}, nil
}

// ShellJoin quotes args for a POSIX shell.
func ShellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(arg string) string {
	if arg == "" {
		return "''"
	}
	safe := true
	for _, r := range arg {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:,+@%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
