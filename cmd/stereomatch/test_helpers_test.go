package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stereomatch/internal/config"
	"stereomatch/internal/testsupport"
)

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// setupCLIConfig writes a config rooted in a temp directory and returns it
// with its path.
func setupCLIConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, path, cfg)
	return cfg, path
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nstereo_root = %q\nmono_root = %q\ngeometry_dir = %q\nstate_dir = %q\nlog_dir = %q\n\n[night]\ncalibration = %q\nmodel = %q\nsource = %q\n",
		cfg.Paths.StereoRoot,
		cfg.Paths.MonoRoot,
		cfg.Paths.GeometryDir,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Night.Calibration,
		cfg.Night.Model,
		cfg.Night.Source,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
