package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"stereomatch/internal/config"
	"stereomatch/internal/logging"
	"stereomatch/internal/services"
)

func TestNewFromConfigWritesRunLog(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	runLog, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if runLog.Path == "" || filepath.Dir(runLog.Path) != cfg.Paths.LogDir {
		t.Fatalf("unexpected log path %q", runLog.Path)
	}
	runLog.Logger.Info("run started", logging.String("k", "v"))
	if err := runLog.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := runLog.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	content, err := os.ReadFile(runLog.Path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"msg":"run started"`) {
		t.Fatalf("expected json record in run log, got %q", content)
	}
	if !runLogStamp.Match(content) || !strings.Contains(string(content), `"level":"info"`) {
		t.Fatalf("expected millisecond UTC stamp and lower-case level, got %q", content)
	}
}

var runLogStamp = regexp.MustCompile(`"ts":"\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z"`)

func TestWarnWithContextFillsMissingFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logging.WarnWithContext(logger, "stderr seen", "collaborator_stderr",
		logging.String(logging.FieldImpact, "none"))

	out := buf.String()
	for _, want := range []string{"event_type=collaborator_stderr", "error_hint=", "impact=none"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
	if strings.Count(out, "impact=") != 1 {
		t.Fatalf("caller impact must not be duplicated: %q", out)
	}
}

func TestNewFromConfigWithoutLogDirHasNothingToClose(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = " "

	runLog, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if runLog.Path != "" {
		t.Fatalf("expected no run log path, got %q", runLog.Path)
	}
	if err := runLog.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestConsoleLoggerOmitsSourceForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesSourceForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerRendersSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "subject.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithNight(context.Background(), "cal/mod/nature/20080401")
	ctx = services.WithCombination(ctx, "bl")
	ctx = services.WithStep(ctx, "find-matches")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "matching")).Info("matches written", logging.Int("count", 3))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, want := range []string{"INFO [matching]", "cal/mod/nature/20080401 · bl (find-matches)", "matches written", "- count: 3"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := services.WithNight(context.Background(), "n1")
	ctx = services.WithStep(ctx, "consolidate")
	ctx = services.WithRunID(ctx, "run-xyz")

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))
	logging.WithContext(ctx, base).Info("contextual log")

	out := buf.String()
	for _, want := range []string{"night=n1", "step=consolidate", "run_id=run-xyz"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestCleanupOldLogsKeepsCurrentRun(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "stereomatch-20200101T000000Z.log")
	current := filepath.Join(dir, "stereomatch-20200102T000000Z.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, current, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		stale := time.Now().AddDate(0, 0, -30)
		if err := os.Chtimes(path, stale, stale); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	if removed := logging.CleanupOldLogs(logging.NewNop(), dir, 7, current); removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, path := range []string{current, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain: %v", path, err)
		}
	}
}
