package workflow

import (
	"context"
	"fmt"
	"runtime/debug"

	"stereomatch/internal/logging"
	"stereomatch/internal/metrics"
	"stereomatch/internal/services"
	"stereomatch/internal/stage"
)

func (c *Coordinator) executeStep(ctx context.Context, h stage.Handler, unit *stage.Unit, shared *stage.Shared) (result StepResult) {
	step := h.Step()
	result.Step = step
	ctx = services.WithStep(ctx, step.String())
	logger := logging.WithContext(ctx, c.logger)
	start := c.now()
	logger.Info(
		"step started",
		logging.String(logging.FieldEventType, "step_start"),
		logging.String("label", step.Label()),
	)

	defer func() {
		if r := recover(); r != nil {
			result.Reason = stage.Continue
			result.Err = fmt.Errorf("%s panicked: %v", step, r)
			logger.Debug("step panic stack", logging.String("stack", string(debug.Stack())))
		}
		result.Duration = c.now().Sub(start)
		switch {
		case result.Err != nil:
			metrics.ObserveStep(step.String(), metrics.OutcomeException, result.Duration)
			logging.ErrorWithContext(logger, "step failed", "step_exception",
				logging.Error(result.Err),
				logging.Duration("step_duration", result.Duration),
			)
		case result.Reason.Halts():
			metrics.ObserveStep(step.String(), metrics.OutcomeHalted, result.Duration)
			logger.Info(
				"step halted",
				logging.String(logging.FieldEventType, "step_halt"),
				logging.String("reason", result.Reason.String()),
				logging.Duration("step_duration", result.Duration),
			)
		default:
			metrics.ObserveStep(step.String(), metrics.OutcomeContinue, result.Duration)
			logger.Info(
				"step completed",
				logging.String(logging.FieldEventType, "step_complete"),
				logging.Duration("step_duration", result.Duration),
			)
		}
	}()

	if aware, ok := h.(stage.JobAware); ok && aware.NeedsJobSnapshot() {
		polled, err := c.tracker.Refresh(ctx)
		if err != nil {
			result.Err = services.Wrap(services.ErrTransient, step.String(), "refresh jobs", "", err)
			return result
		}
		if polled {
			snap := c.tracker.Snapshot()
			logger.Debug("scheduler snapshot refreshed",
				logging.Int("outstanding", snap.Outstanding()),
				logging.Int("headroom", c.tracker.Headroom()),
			)
		}
	}

	result.Reason, result.Err = h.Run(ctx, unit, shared)
	return result
}
