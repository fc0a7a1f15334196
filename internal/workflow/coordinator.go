package workflow

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stereomatch/internal/checkpoint"
	"stereomatch/internal/config"
	"stereomatch/internal/jobs"
	"stereomatch/internal/logging"
	"stereomatch/internal/stage"
)

// Coordinator runs nights through an ordered list of step handlers.
type Coordinator struct {
	cfg      *config.Config
	ledger   *checkpoint.Ledger
	tracker  *jobs.Tracker
	logger   *slog.Logger
	handlers []stage.Handler
	now      func() time.Time
}

// Option configures the coordinator.
type Option func(*Coordinator)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source (primarily for tests).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a coordinator. Handlers must be listed in step order with
// each step at most once; the list is fixed for the coordinator's lifetime.
func New(cfg *config.Config, ledger *checkpoint.Ledger, tracker *jobs.Tracker, handlers []stage.Handler, opts ...Option) (*Coordinator, error) {
	if cfg == nil {
		return nil, errors.New("workflow: config required")
	}
	if ledger == nil {
		return nil, errors.New("workflow: ledger required")
	}
	var prev stage.StepName
	for i, h := range handlers {
		if h == nil {
			return nil, fmt.Errorf("workflow: handler %d is nil", i)
		}
		step := h.Step()
		if !step.Valid() {
			return nil, fmt.Errorf("workflow: handler %d has invalid step %s", i, step)
		}
		if step <= prev {
			return nil, fmt.Errorf("workflow: step %s registered out of order after %s", step, prev)
		}
		prev = step
		if aware, ok := h.(stage.JobAware); ok && aware.NeedsJobSnapshot() && tracker == nil {
			return nil, fmt.Errorf("workflow: step %s needs a job tracker", step)
		}
	}
	c := &Coordinator{
		cfg:      cfg,
		ledger:   ledger,
		tracker:  tracker,
		logger:   logging.NewNop(),
		handlers: append([]stage.Handler(nil), handlers...),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "workflow")
	return c, nil
}

// Steps lists the registered steps in execution order.
func (c *Coordinator) Steps() []stage.StepName {
	out := make([]stage.StepName, len(c.handlers))
	for i, h := range c.handlers {
		out[i] = h.Step()
	}
	return out
}

// RunOptions bounds one invocation.
type RunOptions struct {
	Start stage.StepName
	End   stage.StepName
	Retry stage.RetryLevel
}

func (o RunOptions) normalize() (RunOptions, error) {
	if o.Start == 0 {
		o.Start = stage.BuildDownlists
	}
	if o.End == 0 {
		o.End = stage.Consolidate
	}
	if !o.Start.Valid() || !o.End.Valid() {
		return o, fmt.Errorf("invalid step bounds %s..%s", o.Start, o.End)
	}
	if o.Start > o.End {
		return o, fmt.Errorf("start step %s comes after end step %s", o.Start, o.End)
	}
	if o.Retry < stage.RetryTrust || o.Retry > stage.RetryForce {
		return o, fmt.Errorf("retry level %d must be 0, 1 or 2", o.Retry)
	}
	return o, nil
}

func (o RunOptions) includes(step stage.StepName) bool {
	return step >= o.Start && step <= o.End
}
