package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"stereomatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StereoRoot = filepath.Join(base, "stereo")
	cfgVal.Paths.MonoRoot = filepath.Join(base, "mono")
	cfgVal.Paths.GeometryDir = filepath.Join(base, "geometry")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "state", "logs")
	cfgVal.Night.Model = "qgsjet"
	cfgVal.Night.Calibration = "cal1.4"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSource overrides the default night source tag.
func WithSource(source string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Night.Source = source
	}
}

// WithMaxOutstanding overrides the scheduler ceiling.
func WithMaxOutstanding(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scheduler.MaxOutstanding = n
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, every configured collaborator
// is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			t := b.cfg.Tools
			names = []string{
				t.DetectionDump, t.Split, t.PlaneSolver, t.PlaneFit, t.Inspect, t.EventMerge,
				t.BankSum, t.TupleDump, t.ProfileDump, t.TubeProfile, t.PlaneProfile,
				b.cfg.Scheduler.SubmitBinary, b.cfg.Scheduler.ListBinary,
			}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
