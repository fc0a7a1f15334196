package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validatePaths,
		c.validateCorrelation,
		c.validateContamination,
		c.validateGeometry,
		c.validatePlausibility,
		c.validateScheduler,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StereoRoot == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("paths.stereo_root is required. Set STEREOMATCH_ROOT or edit %s (create with 'stereomatch config init')", defaultPath)
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateCorrelation() error {
	if c.Correlation.WindowSeconds <= 0 {
		return errors.New("correlation.window_seconds must be positive")
	}
	if c.Correlation.WindowSeconds >= 1 {
		return errors.New("correlation.window_seconds must be below one second")
	}
	return nil
}

func (c *Config) validateContamination() error {
	if c.Contamination.PeriodSeconds <= 0 {
		return errors.New("contamination.period_seconds must be positive")
	}
	if c.Contamination.BeforeSeconds < 0 || c.Contamination.AfterSeconds < 0 {
		return errors.New("contamination.before_seconds and contamination.after_seconds must not be negative")
	}
	if c.Contamination.BeforeSeconds+c.Contamination.AfterSeconds >= c.Contamination.PeriodSeconds {
		return errors.New("contamination window must be shorter than contamination.period_seconds")
	}
	return nil
}

func (c *Config) validateGeometry() error {
	switch c.Geometry.PrimaryPair {
	case "bl", "bm", "lm":
	default:
		return fmt.Errorf("geometry.primary_pair must be one of bl, bm, lm (got %q)", c.Geometry.PrimaryPair)
	}
	if c.Geometry.MaxPrimaryDeviation <= 0 || c.Geometry.MaxPrimaryDeviation > 90 {
		return errors.New("geometry.max_primary_deviation_degrees must be in (0, 90]")
	}
	return nil
}

func (c *Config) validatePlausibility() error {
	if c.Plausibility.MinDurationRatio < 0 || c.Plausibility.MinDurationRatio >= 1 {
		return errors.New("plausibility.min_duration_ratio must be in [0, 1)")
	}
	if c.Plausibility.MaxZenith <= 0 || c.Plausibility.MaxZenith > 180 {
		return errors.New("plausibility.max_zenith_degrees must be in (0, 180]")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.SubmitBinary == "" || c.Scheduler.ListBinary == "" {
		return errors.New("scheduler.submit_binary and scheduler.list_binary must be set")
	}
	if c.Scheduler.MaxOutstanding <= 0 {
		return errors.New("scheduler.max_outstanding must be positive")
	}
	if c.Scheduler.MaxOutstanding > maxSchedulerJobID {
		return fmt.Errorf("scheduler.max_outstanding must not exceed %d", maxSchedulerJobID)
	}
	joined := strings.Join(c.Scheduler.SubmitArgs, " ")
	if !strings.Contains(joined, "{command}") {
		return errors.New("scheduler.submit_args must reference {command}")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}
