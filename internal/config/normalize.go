package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeNight()
	c.normalizeGeometry()
	c.normalizeProfile()
	c.normalizeScheduler()
	c.normalizeTools()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.StereoRoot) == "" {
		if value, ok := os.LookupEnv("STEREOMATCH_ROOT"); ok {
			c.Paths.StereoRoot = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Paths.MonoRoot) == "" {
		if value, ok := os.LookupEnv("STEREOMATCH_MONO_ROOT"); ok {
			c.Paths.MonoRoot = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}

	fields := []struct {
		name  string
		value *string
	}{
		{"paths.stereo_root", &c.Paths.StereoRoot},
		{"paths.mono_root", &c.Paths.MonoRoot},
		{"paths.geometry_dir", &c.Paths.GeometryDir},
		{"paths.state_dir", &c.Paths.StateDir},
		{"paths.log_dir", &c.Paths.LogDir},
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	if c.Paths.GeometryDir == "" && c.Paths.StereoRoot != "" {
		c.Paths.GeometryDir = filepath.Join(c.Paths.StereoRoot, "geometry")
	}
	return nil
}

func (c *Config) normalizeNight() {
	c.Night.Calibration = strings.TrimSpace(c.Night.Calibration)
	c.Night.Model = strings.TrimSpace(c.Night.Model)
	c.Night.Source = strings.TrimSpace(c.Night.Source)
	if c.Night.Source == "" {
		c.Night.Source = defaultSource
	}
}

func (c *Config) normalizeGeometry() {
	c.Geometry.PrimaryPair = strings.ToLower(strings.TrimSpace(c.Geometry.PrimaryPair))
	if c.Geometry.PrimaryPair == "" {
		c.Geometry.PrimaryPair = defaultPrimaryPair
	}
}

func (c *Config) normalizeProfile() {
	c.Profile.TubeLabel = strings.TrimSpace(c.Profile.TubeLabel)
	if c.Profile.TubeLabel == "" {
		c.Profile.TubeLabel = defaultTubeLabel
	}
	c.Profile.PlaneLabel = strings.TrimSpace(c.Profile.PlaneLabel)
	if c.Profile.PlaneLabel == "" {
		c.Profile.PlaneLabel = defaultPlaneLabel
	}
}

func (c *Config) normalizeScheduler() {
	c.Scheduler.SubmitBinary = strings.TrimSpace(c.Scheduler.SubmitBinary)
	c.Scheduler.ListBinary = strings.TrimSpace(c.Scheduler.ListBinary)
	if c.Scheduler.PollIntervalSeconds <= 0 {
		c.Scheduler.PollIntervalSeconds = defaultPollIntervalSeconds
	}
}

func (c *Config) normalizeTools() {
	defaults := Default().Tools
	pairs := []struct {
		value    *string
		fallback string
	}{
		{&c.Tools.DetectionDump, defaults.DetectionDump},
		{&c.Tools.Split, defaults.Split},
		{&c.Tools.PlaneSolver, defaults.PlaneSolver},
		{&c.Tools.PlaneFit, defaults.PlaneFit},
		{&c.Tools.Inspect, defaults.Inspect},
		{&c.Tools.EventMerge, defaults.EventMerge},
		{&c.Tools.BankSum, defaults.BankSum},
		{&c.Tools.TupleDump, defaults.TupleDump},
		{&c.Tools.ProfileDump, defaults.ProfileDump},
		{&c.Tools.TubeProfile, defaults.TubeProfile},
		{&c.Tools.PlaneProfile, defaults.PlaneProfile},
	}
	for _, pair := range pairs {
		*pair.value = strings.TrimSpace(*pair.value)
		if *pair.value == "" {
			*pair.value = pair.fallback
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
