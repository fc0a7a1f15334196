package stage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"stereomatch/internal/checkpoint"
	"stereomatch/internal/config"
	"stereomatch/internal/logging"
	"stereomatch/internal/night"
	"stereomatch/internal/stereo"
)

func TestStepNames(t *testing.T) {
	steps := Steps()
	if len(steps) != 9 || steps[0] != BuildDownlists || steps[8] != Consolidate {
		t.Fatalf("unexpected steps %v", steps)
	}
	for _, s := range steps {
		parsed, err := ParseStepName(s.String())
		if err != nil || parsed != s {
			t.Fatalf("ParseStepName(%q) = %v, %v", s, parsed, err)
		}
	}
	if FindMatches.Label() != "Find Matches" {
		t.Fatalf("unexpected label %q", FindMatches.Label())
	}
	if _, err := ParseStepName("find-match"); err == nil {
		t.Fatal("expected typo to be rejected")
	}
	if StepName(42).Valid() {
		t.Fatal("expected out of range step to be invalid")
	}
}

func TestShouldRun(t *testing.T) {
	tests := []struct {
		level   RetryLevel
		marker  bool
		outputs bool
		want    bool
	}{
		{RetryTrust, false, false, true},
		{RetryTrust, true, false, false},
		{RetryTrust, true, true, false},
		{RetryMissing, true, true, false},
		{RetryMissing, true, false, true},
		{RetryMissing, false, true, true},
		{RetryForce, true, true, true},
	}
	for _, tt := range tests {
		if got := ShouldRun(tt.level, tt.marker, tt.outputs); got != tt.want {
			t.Errorf("ShouldRun(%d, %v, %v) = %v, want %v", tt.level, tt.marker, tt.outputs, got, tt.want)
		}
	}
	if _, err := ParseRetryLevel("3"); err == nil {
		t.Fatal("expected retry level 3 to be rejected")
	}
	if lvl, err := ParseRetryLevel(" 1 "); err != nil || lvl != RetryMissing {
		t.Fatalf("ParseRetryLevel = %v, %v", lvl, err)
	}
}

func TestReasons(t *testing.T) {
	if Continue.Halts() {
		t.Fatal("continue must not halt")
	}
	if !NothingToDo.Benign() || !Complete.Benign() {
		t.Fatal("expected benign reasons")
	}
	pending := Haltf("submitted %d jobs", 3)
	if !pending.Halts() || pending.Benign() {
		t.Fatalf("unexpected classification for %q", pending)
	}
}

func newUnit(t *testing.T) (*Unit, *Shared) {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StereoRoot = filepath.Join(base, "stereo")
	n := night.Night{Calibration: "c", Model: "m", Source: "trump", Date: "20140321"}
	layout := night.NewLayout(&cfg, n)
	unit := &Unit{
		Night:  n,
		Layout: layout,
		Sources: night.Sources{
			stereo.BlackRock: {"a"},
			stereo.LongRidge: {"b"},
		},
	}
	shared := &Shared{
		Config:  &cfg,
		Logger:  logging.NewNop(),
		Markers: checkpoint.NewMarkers(nil, "run"),
	}
	return unit, shared
}

func TestPerCombinationMarksAndSkips(t *testing.T) {
	unit, shared := newUnit(t)
	outputs := func(cl night.CombinationLayout) []string { return []string{cl.MatchesPath()} }
	calls := 0
	fn := func(_ context.Context, cl night.CombinationLayout) (Reason, error) {
		calls++
		return Continue, os.WriteFile(cl.MatchesPath(), nil, 0o644)
	}
	if err := os.MkdirAll(unit.Layout.Combination(stereo.PairBL).Dir(), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := PerCombination(context.Background(), unit, shared, RemoveCLF, outputs, fn); err != nil {
		t.Fatalf("PerCombination: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
	if _, err := PerCombination(context.Background(), unit, shared, RemoveCLF, outputs, fn); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("checkpointed combination reran at retry 0")
	}

	if err := os.Remove(unit.Layout.Combination(stereo.PairBL).MatchesPath()); err != nil {
		t.Fatal(err)
	}
	shared.Retry = RetryMissing
	if _, err := PerCombination(context.Background(), unit, shared, RemoveCLF, outputs, fn); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("expected rerun of missing output at retry 1, calls=%d", calls)
	}
	if _, err := PerCombination(context.Background(), unit, shared, RemoveCLF, outputs, fn); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("present outputs must not rerun at retry 1, calls=%d", calls)
	}
	shared.Retry = RetryForce
	if _, err := PerCombination(context.Background(), unit, shared, RemoveCLF, outputs, fn); err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Fatalf("expected forced rerun, calls=%d", calls)
	}
}

func TestPerCombinationStopsOnReason(t *testing.T) {
	unit, shared := newUnit(t)
	outputs := func(night.CombinationLayout) []string { return nil }
	reason, err := PerCombination(context.Background(), unit, shared, ExtractEvents, outputs,
		func(context.Context, night.CombinationLayout) (Reason, error) { return "missing events", nil })
	if err != nil || reason != "missing events" {
		t.Fatalf("unexpected result %q, %v", reason, err)
	}
	cl := unit.Layout.Combination(stereo.PairBL)
	if shared.Markers.Done(cl.CheckpointDir(), ExtractEvents.String()) {
		t.Fatal("halted combination must not be marked")
	}

	boom := errors.New("boom")
	if _, err := PerCombination(context.Background(), unit, shared, ExtractEvents, outputs,
		func(context.Context, night.CombinationLayout) (Reason, error) { return Continue, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestForcedRerunClearsCheckpoint(t *testing.T) {
	unit, shared := newUnit(t)
	ledger, err := checkpoint.Open(filepath.Join(t.TempDir(), "ledger.db"), logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })
	shared.Markers = checkpoint.NewMarkers(ledger, "run")

	cl := unit.Layout.Combination(stereo.PairBL)
	if err := os.MkdirAll(cl.CheckpointDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	key := unit.Key(string(stereo.PairBL), RemoveCLF)
	if err := shared.Markers.Mark(ctx, key, cl.CheckpointDir()); err != nil {
		t.Fatal(err)
	}

	shared.Retry = RetryForce
	outputs := func(night.CombinationLayout) []string { return nil }
	reason, err := PerCombination(ctx, unit, shared, RemoveCLF, outputs,
		func(context.Context, night.CombinationLayout) (Reason, error) { return "interrupted", nil })
	if err != nil || reason != "interrupted" {
		t.Fatalf("unexpected result %q, %v", reason, err)
	}
	if shared.Markers.Done(cl.CheckpointDir(), RemoveCLF.String()) {
		t.Fatal("forced rerun left the old sentinel in place")
	}
	rows, err := ledger.Completions(ctx, unit.Night.Key())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Fatalf("forced rerun left ledger rows %+v", rows)
	}
}

func TestNeedsRunKeepsTrustedCheckpoint(t *testing.T) {
	unit, shared := newUnit(t)
	dir := unit.Layout.CheckpointDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	key := unit.Key(checkpoint.ScopeNight, BuildDownlists)
	if err := shared.Markers.Mark(ctx, key, dir); err != nil {
		t.Fatal(err)
	}
	run, err := shared.NeedsRun(ctx, key, dir, filepath.Join(dir, "absent"))
	if err != nil || run {
		t.Fatalf("NeedsRun at retry 0 = %v, %v", run, err)
	}
	if !shared.Markers.Done(dir, BuildDownlists.String()) {
		t.Fatal("trusted checkpoint was cleared")
	}
}
