package plausibility_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"stereomatch/internal/geometry"
	"stereomatch/internal/plausibility"
	"stereomatch/internal/stage"
	"stereomatch/internal/stereo"
	"stereomatch/internal/testsupport"
)

var limits = plausibility.Thresholds{MinRatio: 0.5, MaxZenith: 82}

func TestCheckDurations(t *testing.T) {
	tests := []struct {
		name   string
		d      [4]float64
		reason plausibility.Rejection
		detail string
	}{
		{"good", [4]float64{9, 9, 10, 10}, plausibility.Accepted, ""},
		{"low", [4]float64{5, 5, 10, 10}, plausibility.BadRatio, "ratio 0.250000"},
		{"exactly half", [4]float64{5, 10, 10, 10}, plausibility.BadRatio, "ratio 0.500000"},
		{"zero total a", [4]float64{5, 5, 0, 10}, plausibility.BadRatio, plausibility.ZeroDetail},
		{"zero total b", [4]float64{5, 5, 10, 0}, plausibility.BadRatio, plausibility.ZeroDetail},
		{"negative total", [4]float64{5, 5, -1, -1}, plausibility.BadRatio, plausibility.ZeroDetail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := limits.CheckDurations(tt.d)
			if v.Reason != tt.reason || v.Detail != tt.detail {
				t.Fatalf("CheckDurations = %+v, want %q/%q", v, tt.reason, tt.detail)
			}
		})
	}
}

func TestCheckZenith(t *testing.T) {
	ok := limits.CheckDurations([4]float64{1, 1, 1, 1})
	if v := limits.CheckZenith(ok, 45); !v.Accepted() {
		t.Fatalf("expected 45 degrees accepted, got %+v", v)
	}
	if v := limits.CheckZenith(ok, 82); !v.Accepted() {
		t.Fatalf("expected the bound itself accepted, got %+v", v)
	}
	if v := limits.CheckZenith(ok, 85); v.Reason != plausibility.BadZenith {
		t.Fatalf("expected bad zenith, got %+v", v)
	}
	bad := limits.CheckDurations([4]float64{0, 0, 0, 0})
	if v := limits.CheckZenith(bad, 10); v.Reason != plausibility.BadRatio {
		t.Fatalf("zenith must not override a ratio rejection, got %+v", v)
	}
}

type fakeInspector struct {
	durations map[string][4]float64
	zenith    map[string]float64
}

func (f *fakeInspector) Durations(_ context.Context, file string, pair stereo.Combination) ([4]float64, error) {
	if pair.IsTriple() {
		return [4]float64{}, fmt.Errorf("durations need a pairing, got %s", pair)
	}
	d, ok := f.durations[filepath.Base(file)]
	if !ok {
		return d, fmt.Errorf("no durations for %s", filepath.Base(file))
	}
	return d, nil
}

func (f *fakeInspector) Zenith(_ context.Context, file string) (float64, error) {
	z, ok := f.zenith[filepath.Base(file)]
	if !ok {
		return 0, fmt.Errorf("no zenith for %s", filepath.Base(file))
	}
	return z, nil
}

func TestRunSplitsValidatedAndRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	unit := testsupport.NewUnit(t, cfg, stereo.BlackRock, stereo.LongRidge, stereo.MiddleDrum)
	shared := testsupport.NewShared(cfg, nil)
	for _, c := range stereo.Pairs {
		testsupport.WriteFile(t, unit.Layout.Combination(c).GeometryTablePath(), nil)
	}
	bl := unit.Layout.Combination(stereo.PairBL)
	testsupport.WriteFile(t, bl.GeometryTablePath(), geometry.EncodeTable([]geometry.Solution{
		{Index: 0, Pair: stereo.PairBL, Angle: 90},
		{Index: 1, Pair: stereo.PairBL, Angle: 90},
		{Index: 2, Pair: stereo.PairBL, Angle: 90},
	}))
	blm := unit.Layout.Combination(stereo.Triple)
	testsupport.WriteFile(t, blm.GeometryTablePath(), geometry.EncodeTable([]geometry.Solution{
		{Index: 0, Pair: stereo.PairLM, Angle: 95},
	}))

	inspector := &fakeInspector{
		durations: map[string][4]float64{
			"br-00000.spln.dst.gz":    {9, 9, 10, 10},
			"br-00001.spln.dst.gz":    {9, 9, 0, 10},
			"br-00002.spln.dst.gz":    {9, 9, 10, 10},
			"lr-00000.lm.spln.dst.gz": {8, 8, 10, 10},
		},
		zenith: map[string]float64{
			"br-00000.spln.dst.gz": 40,
			"br-00002.spln.dst.gz": 85,
		},
	}
	reason, err := plausibility.NewHandler(inspector, cfg.Tools.Inspect).Run(context.Background(), unit, shared)
	if err != nil || reason.Halts() {
		t.Fatalf("Run = %q, %v", reason, err)
	}

	validated, err := plausibility.LoadValidated(bl.ValidatedPath())
	if err != nil {
		t.Fatalf("LoadValidated: %v", err)
	}
	if diff := cmp.Diff([]plausibility.Validated{{Index: 0, Pair: stereo.PairBL, Ratio: 0.81, Zenith: 40}}, validated); diff != "" {
		t.Fatalf("validated mismatch (-want +got):\n%s", diff)
	}
	wantRejected := "00001 bl bad ratio: zero total duration\n00002 bl bad zenith: zenith 85.000\n"
	if got := testsupport.ReadFile(t, bl.RejectGeometryPath()); got != wantRejected {
		t.Fatalf("rejectgeom mismatch:\n%s", got)
	}

	tripleValid, err := plausibility.LoadValidated(blm.ValidatedPath())
	if err != nil {
		t.Fatalf("LoadValidated triple: %v", err)
	}
	if len(tripleValid) != 1 || tripleValid[0].Pair != stereo.PairLM {
		t.Fatalf("unexpected triple validation %+v", tripleValid)
	}
	if !shared.Markers.Done(blm.CheckpointDir(), stage.CheckPlausibility.String()) {
		t.Fatal("expected triple marker")
	}
}

func TestRunMissingGeometryHalts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	unit := testsupport.NewUnit(t, cfg, stereo.BlackRock, stereo.LongRidge)
	reason, err := plausibility.NewHandler(&fakeInspector{}, cfg.Tools.Inspect).Run(context.Background(), unit, testsupport.NewShared(cfg, nil))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reason != "missing bl/geometry.txt" {
		t.Fatalf("unexpected reason %q", reason)
	}
}
