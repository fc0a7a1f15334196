package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory roots.
type Paths struct {
	StereoRoot  string `toml:"stereo_root"`
	MonoRoot    string `toml:"mono_root"`
	GeometryDir string `toml:"geometry_dir"`
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
}

// Night holds the default night identity used when the CLI omits a flag.
type Night struct {
	Calibration string `toml:"calibration"`
	Model       string `toml:"model"`
	Source      string `toml:"source"`
}

// Correlation contains the coincidence window.
type Correlation struct {
	WindowSeconds float64 `toml:"window_seconds"`
}

// Contamination describes the periodic calibration laser cadence.
type Contamination struct {
	PeriodSeconds int `toml:"period_seconds"`
	BeforeSeconds int `toml:"before_seconds"`
	AfterSeconds  int `toml:"after_seconds"`
}

// Geometry contains the triple tie-break policy.
type Geometry struct {
	PrimaryPair         string  `toml:"primary_pair"`
	MaxPrimaryDeviation float64 `toml:"max_primary_deviation_degrees"`
}

// Plausibility contains the geometry acceptance thresholds.
type Plausibility struct {
	MinDurationRatio float64 `toml:"min_duration_ratio"`
	MaxZenith        float64 `toml:"max_zenith_degrees"`
}

// Profile names the two profile reconstructions and their extra arguments.
type Profile struct {
	TubeLabel  string   `toml:"tube_label"`
	PlaneLabel string   `toml:"plane_label"`
	TubeArgs   []string `toml:"tube_args"`
	PlaneArgs  []string `toml:"plane_args"`
}

// Scheduler describes how jobs are submitted to and listed from the batch
// scheduler. SubmitArgs may reference {name}, {stdout}, {stderr} and {command}.
// ListArgs must make the scheduler print "<id> <status> <name or command>".
type Scheduler struct {
	SubmitBinary        string   `toml:"submit_binary"`
	SubmitArgs          []string `toml:"submit_args"`
	ListBinary          string   `toml:"list_binary"`
	ListArgs            []string `toml:"list_args"`
	MaxOutstanding      int      `toml:"max_outstanding"`
	PollIntervalSeconds int      `toml:"poll_interval_seconds"`
}

// Tools names the collaborator executables.
type Tools struct {
	DetectionDump string `toml:"detection_dump"`
	Split         string `toml:"split"`
	PlaneSolver   string `toml:"plane_solver"`
	PlaneFit      string `toml:"plane_fit"`
	Inspect       string `toml:"inspect"`
	EventMerge    string `toml:"event_merge"`
	BankSum       string `toml:"bank_sum"`
	TupleDump     string `toml:"tuple_dump"`
	ProfileDump   string `toml:"profile_dump"`
	TubeProfile   string `toml:"tube_profile"`
	PlaneProfile  string `toml:"plane_profile"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Metrics configures the prometheus textfile written after each run.
type Metrics struct {
	TextfilePath string `toml:"textfile_path"`
}

// Config encapsulates all configuration values for stereomatch.
//
// Configuration sections by subsystem:
//   - Paths: stereo/mono roots, station geometry, state and log directories
//   - Night: default calibration/model/source tags
//   - Correlation, Contamination: matching thresholds
//   - Geometry, Plausibility: reconstruction selection and acceptance
//   - Profile, Scheduler: asynchronous profile reconstruction
//   - Tools: collaborator executables
//   - Logging, Metrics: observability
type Config struct {
	Paths         Paths         `toml:"paths"`
	Night         Night         `toml:"night"`
	Correlation   Correlation   `toml:"correlation"`
	Contamination Contamination `toml:"contamination"`
	Geometry      Geometry      `toml:"geometry"`
	Plausibility  Plausibility  `toml:"plausibility"`
	Profile       Profile       `toml:"profile"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Tools         Tools         `toml:"tools"`
	Logging       Logging       `toml:"logging"`
	Metrics       Metrics       `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("stereomatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the coordinator writes to
// outside of night trees.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.LockDir()} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the sqlite checkpoint ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// LockDir returns the directory holding per-night lock files.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.StateDir, "locks")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
