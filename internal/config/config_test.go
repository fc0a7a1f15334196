package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"stereomatch/internal/config"
)

func TestLoadDefaultConfigUsesEnvRootAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("STEREOMATCH_ROOT", "~/stereo")
	t.Setenv("STEREOMATCH_MONO_ROOT", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Paths.StereoRoot != filepath.Join(tempHome, "stereo") {
		t.Fatalf("unexpected stereo root: %q", cfg.Paths.StereoRoot)
	}
	if cfg.Paths.GeometryDir != filepath.Join(tempHome, "stereo", "geometry") {
		t.Fatalf("unexpected geometry dir: %q", cfg.Paths.GeometryDir)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, ".local", "share", "stereomatch") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.LedgerPath() != filepath.Join(cfg.Paths.StateDir, "ledger.db") {
		t.Fatalf("unexpected ledger path: %q", cfg.LedgerPath())
	}
	if cfg.Correlation.WindowSeconds != 0.002 {
		t.Fatalf("unexpected window: %v", cfg.Correlation.WindowSeconds)
	}
	if cfg.Scheduler.MaxOutstanding != 28800 {
		t.Fatalf("unexpected scheduler ceiling: %d", cfg.Scheduler.MaxOutstanding)
	}
	if cfg.Plausibility.MaxZenith != 82 {
		t.Fatalf("unexpected zenith bound: %v", cfg.Plausibility.MaxZenith)
	}
}

func TestLoadRequiresStereoRoot(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STEREOMATCH_ROOT", "")

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected error without stereo root")
	}
	if !strings.Contains(err.Error(), "paths.stereo_root") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadCustomConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("STEREOMATCH_ROOT", "")

	configPath := filepath.Join(tempHome, "config.toml")
	content := `
[paths]
stereo_root = "~/data/stereo"
mono_root = "/srv/mono"

[correlation]
window_seconds = 0.001

[geometry]
primary_pair = "BM"

[tools]
split = "  mysplit  "

[logging]
format = "JSON"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.StereoRoot != filepath.Join(tempHome, "data", "stereo") {
		t.Fatalf("unexpected stereo root: %q", cfg.Paths.StereoRoot)
	}
	if cfg.Paths.MonoRoot != "/srv/mono" {
		t.Fatalf("unexpected mono root: %q", cfg.Paths.MonoRoot)
	}
	if cfg.Correlation.WindowSeconds != 0.001 {
		t.Fatalf("unexpected window: %v", cfg.Correlation.WindowSeconds)
	}
	if cfg.Geometry.PrimaryPair != "bm" {
		t.Fatalf("expected primary pair to be lowercased, got %q", cfg.Geometry.PrimaryPair)
	}
	if cfg.Tools.Split != "mysplit" {
		t.Fatalf("expected trimmed split tool, got %q", cfg.Tools.Split)
	}
	if cfg.Tools.PlaneSolver != "stplane" {
		t.Fatalf("expected default plane solver, got %q", cfg.Tools.PlaneSolver)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased log format, got %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	configPath := filepath.Join(tempHome, "config.toml")
	if err := os.WriteFile(configPath, []byte("[paths]\nstereo_root = \"/x\"\nstero_root = \"/y\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"window", func(c *config.Config) { c.Correlation.WindowSeconds = 0 }, "correlation.window_seconds"},
		{"period", func(c *config.Config) { c.Contamination.PeriodSeconds = 30 }, "contamination window"},
		{"pair", func(c *config.Config) { c.Geometry.PrimaryPair = "blm" }, "geometry.primary_pair"},
		{"ratio", func(c *config.Config) { c.Plausibility.MinDurationRatio = 1.5 }, "plausibility.min_duration_ratio"},
		{"ceiling", func(c *config.Config) { c.Scheduler.MaxOutstanding = 1 << 32 }, "scheduler.max_outstanding"},
		{"ceiling zero", func(c *config.Config) { c.Scheduler.MaxOutstanding = 0 }, "scheduler.max_outstanding"},
		{"submit template", func(c *config.Config) { c.Scheduler.SubmitArgs = []string{"--parsable"} }, "{command}"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.StereoRoot = "/data/stereo"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestSampleConfigDecodes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample does not decode: %v", err)
	}
	if cfg.Scheduler.MaxOutstanding != 28800 {
		t.Fatalf("unexpected sample ceiling %d", cfg.Scheduler.MaxOutstanding)
	}

	t.Setenv("HOME", dir)
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.LockDir()} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
