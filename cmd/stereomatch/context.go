package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"stereomatch/internal/checkpoint"
	"stereomatch/internal/config"
	"stereomatch/internal/jobs"
	"stereomatch/internal/logging"
	"stereomatch/internal/services/dsttools"
	"stereomatch/internal/services/scheduler"
	"stereomatch/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// runLogger builds the console plus per-run file logger and prunes old run
// logs. The caller closes the returned RunLog.
func (c *commandContext) runLogger() (*logging.RunLog, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	runLog, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if removed := logging.CleanupOldLogs(runLog.Logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, runLog.Path); removed > 0 {
		runLog.Logger.Debug("old run logs removed", logging.Int("count", removed))
	}
	return runLog, nil
}

func (c *commandContext) withLedger(logger *slog.Logger, fn func(*checkpoint.Ledger) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	ledger, err := checkpoint.Open(cfg.LedgerPath(), logger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()
	return fn(ledger)
}

// coordinator wires the production step handlers.
func (c *commandContext) coordinator(ledger *checkpoint.Ledger, logger *slog.Logger) (*workflow.Coordinator, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	tools := dsttools.New(cfg.Tools, dsttools.WithLogger(logger))
	sched, err := scheduler.New(cfg.Scheduler)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	interval := time.Duration(cfg.Scheduler.PollIntervalSeconds) * time.Second
	tracker := jobs.NewTracker(sched, interval, cfg.Scheduler.MaxOutstanding)
	steps := workflow.NewStepSet(cfg, tools, sched)
	return workflow.New(cfg, ledger, tracker, steps.Handlers(), workflow.WithLogger(logger))
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
