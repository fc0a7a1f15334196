package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"stereomatch/internal/checkpoint"
	"stereomatch/internal/fileutil"
	"stereomatch/internal/logging"
	"stereomatch/internal/metrics"
	"stereomatch/internal/night"
	"stereomatch/internal/services"
	"stereomatch/internal/stage"
)

// RunNights processes nights sequentially and returns one report per night.
// The error is non-nil only when the options are unusable; per-night faults
// live in the reports.
func (c *Coordinator) RunNights(ctx context.Context, nights []night.Night, opts RunOptions) ([]NightReport, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	reports := make([]NightReport, 0, len(nights))
	for _, n := range nights {
		if err := ctx.Err(); err != nil {
			reports = append(reports, NightReport{Night: n, Outcome: OutcomeException, Err: err})
			continue
		}
		reports = append(reports, c.runNight(ctx, n, opts))
	}
	if path := c.cfg.Metrics.TextfilePath; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			logging.WarnWithContext(c.logger, "metrics textfile not written", "metrics_textfile_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "run metrics unavailable to node exporter"),
			)
		}
	}
	return reports, nil
}

// RunNight processes one night.
func (c *Coordinator) RunNight(ctx context.Context, n night.Night, opts RunOptions) (NightReport, error) {
	opts, err := opts.normalize()
	if err != nil {
		return NightReport{}, err
	}
	return c.runNight(ctx, n, opts), nil
}

func (c *Coordinator) runNight(ctx context.Context, n night.Night, opts RunOptions) NightReport {
	runID := uuid.NewString()
	ctx = services.WithRunID(services.WithNight(ctx, n.Key()), runID)
	logger := logging.WithContext(ctx, c.logger)
	report := NightReport{Night: n, RunID: runID, StartedAt: c.now()}

	c.process(ctx, logger, n, opts, &report)

	report.FinishedAt = c.now()
	c.finish(ctx, logger, &report)
	return report
}

func (c *Coordinator) process(ctx context.Context, logger *slog.Logger, n night.Night, opts RunOptions, report *NightReport) {
	fail := func(err error) {
		report.Outcome = OutcomeException
		report.Err = err
	}
	if err := n.Validate(); err != nil {
		fail(services.Wrap(services.ErrValidation, "", "night", n.Key(), err))
		return
	}
	if err := c.cfg.EnsureDirectories(); err != nil {
		fail(services.Wrap(services.ErrConfiguration, "", "directories", "", err))
		return
	}

	if opts.Retry == stage.RetryTrust {
		memo, ok, err := c.ledger.Outcome(ctx, n.Key())
		if err != nil {
			fail(err)
			return
		}
		if ok {
			report.Reason = stage.Reason(memo)
			report.Outcome = outcomeFor(report.Reason)
			report.Memoized = true
			logger.Debug("memoized outcome reused", logging.String("reason", memo))
			return
		}
	}

	lock, err := night.Acquire(c.cfg.LockDir(), n)
	if err != nil {
		if errors.Is(err, night.ErrLocked) {
			report.Outcome = OutcomeHalted
			report.Reason = stage.Reason(night.ErrLocked.Error())
			return
		}
		fail(err)
		return
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("night lock release failed", logging.Error(err))
		}
	}()

	if opts.Retry > stage.RetryTrust {
		if err := c.ledger.ClearOutcome(ctx, n.Key()); err != nil {
			fail(err)
			return
		}
	}

	layout := night.NewLayout(c.cfg, n)
	if opts.Retry == stage.RetryTrust && fileutil.Exists(layout.CompletePath(c.cfg.Profile.TubeLabel, c.cfg.Profile.PlaneLabel)) {
		c.halt(ctx, logger, report, stage.Complete)
		return
	}

	sources, err := night.Discover(layout)
	if err != nil {
		fail(services.Wrap(services.ErrMissingInput, "", "discover", "", err))
		return
	}
	stations := sources.Stations()
	if len(stations) < 2 {
		logger.Info("too few stations", logging.Int("stations", len(stations)))
		c.halt(ctx, logger, report, stage.NothingToDo)
		return
	}

	unit := &stage.Unit{Night: n, Layout: layout, Sources: sources}
	shared := &stage.Shared{
		Config:  c.cfg,
		Retry:   opts.Retry,
		RunID:   report.RunID,
		Logger:  c.logger,
		Markers: checkpoint.NewMarkers(c.ledger, report.RunID),
		Jobs:    c.tracker,
	}
	logger.Info("night started",
		logging.String(logging.FieldEventType, "night_start"),
		logging.Int("stations", len(stations)),
		logging.String("retry", opts.Retry.String()),
		logging.String("start_step", opts.Start.String()),
		logging.String("end_step", opts.End.String()),
	)

	for _, h := range c.handlers {
		step := h.Step()
		if !opts.includes(step) {
			metrics.ObserveStep(step.String(), metrics.OutcomeSkipped, 0)
			continue
		}
		if err := ctx.Err(); err != nil {
			fail(err)
			return
		}
		result := c.executeStep(ctx, h, unit, shared)
		report.Steps = append(report.Steps, result)
		if result.Err != nil {
			fail(result.Err)
			return
		}
		if result.Reason.Halts() {
			c.halt(ctx, logger, report, result.Reason)
			return
		}
	}
	report.Outcome = OutcomeStopped
}

// halt records a halting reason and memoizes it when benign.
func (c *Coordinator) halt(ctx context.Context, logger *slog.Logger, report *NightReport, reason stage.Reason) {
	report.Reason = reason
	report.Outcome = outcomeFor(reason)
	if !reason.Benign() {
		return
	}
	if err := c.ledger.SetOutcome(ctx, report.Night.Key(), reason.String(), c.now()); err != nil {
		logger.Warn("outcome not memoized",
			logging.String("reason", reason.String()),
			logging.Error(err),
		)
	}
}

func (c *Coordinator) finish(ctx context.Context, logger *slog.Logger, report *NightReport) {
	metrics.ObserveNight(string(report.Outcome))
	run := checkpoint.Run{
		RunID:      report.RunID,
		Night:      report.Night.Key(),
		Outcome:    string(report.Outcome),
		Reason:     report.Reason.String(),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
	if report.Err != nil {
		run.Error = report.Err.Error()
	}
	// A memoized answer did no work; the run that produced the memo is
	// already on record.
	if !report.Memoized {
		if err := c.ledger.RecordRun(context.WithoutCancel(ctx), run); err != nil {
			logger.Warn("run not recorded", logging.Error(err))
		}
	}

	attrs := []logging.Attr{
		logging.String("outcome", string(report.Outcome)),
		logging.Int("steps", len(report.Steps)),
		logging.Bool("memoized", report.Memoized),
		logging.Duration("night_duration", report.FinishedAt.Sub(report.StartedAt)),
	}
	switch report.Outcome {
	case OutcomeException:
		kind, detail := services.Details(report.Err)
		logging.ErrorWithContext(logger, "night failed", "night_exception",
			append(attrs,
				logging.String("error_kind", kind),
				logging.String("error_detail", detail),
				logging.String(logging.FieldErrorHint, fmt.Sprintf("inspect the run log, then re-run %s", report.Night)),
			)...,
		)
	default:
		attrs = append(attrs,
			logging.String(logging.FieldEventType, "night_complete"),
			logging.String("reason", report.Reason.String()),
		)
		logger.LogAttrs(ctx, slog.LevelInfo, "night finished", attrs...)
	}
}
