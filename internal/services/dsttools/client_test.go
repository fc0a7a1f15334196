package dsttools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"stereomatch/internal/config"
	"stereomatch/internal/procexec"
	"stereomatch/internal/services"
	"stereomatch/internal/stereo"
)

func newTestClient(fn procexec.RunnerFunc) *Client {
	cfg := config.Default()
	if fn == nil {
		return New(cfg.Tools)
	}
	return New(cfg.Tools, WithRunner(fn))
}

func TestDownlistParsesAndSorts(t *testing.T) {
	var got procexec.Invocation
	c := newTestClient(func(_ context.Context, inv procexec.Invocation) (procexec.Result, error) {
		got = inv
		return procexec.Result{Stdout: []byte("20.5 4.2 1 3 7\n10.000000001 3 1 0 2\n")}, nil
	})
	events, err := c.Downlist(context.Background(), stereo.LongRidge, []string{"a.down.dst.gz", "b.down.dst.gz"})
	if err != nil {
		t.Fatalf("Downlist: %v", err)
	}
	if diff := cmp.Diff([]string{"-lr", "a.down.dst.gz", "b.down.dst.gz"}, got.Args); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
	want := []stereo.DetectionEvent{
		{Station: stereo.LongRidge, Timestamp: 10.000000001, TrackLength: "3", Part: 1, Index: 0, Code: 2},
		{Station: stereo.LongRidge, Timestamp: 20.5, TrackLength: "4.2", Part: 1, Index: 3, Code: 7},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDownlistRejectsMalformedOutput(t *testing.T) {
	c := newTestClient(func(context.Context, procexec.Invocation) (procexec.Result, error) {
		return procexec.Result{Stdout: []byte("10.0 3 1\n")}, nil
	})
	_, err := c.Downlist(context.Background(), stereo.BlackRock, []string{"x"})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if _, err := c.Downlist(context.Background(), stereo.BlackRock, nil); !errors.Is(err, services.ErrMissingInput) {
		t.Fatalf("expected missing input, got %v", err)
	}
}

func TestSplitPlacesOutputsByPosition(t *testing.T) {
	dir := t.TempDir()
	var want string
	c := newTestClient(func(_ context.Context, inv procexec.Invocation) (procexec.Result, error) {
		data, err := os.ReadFile(inv.Args[1])
		if err != nil {
			return procexec.Result{}, err
		}
		want = string(data)
		for i, pos := range strings.Fields(want) {
			out := fmt.Sprintf("%s-%05d.dst.gz", inv.Args[3], i)
			if err := os.WriteFile(out, []byte("event "+pos), 0o644); err != nil {
				return procexec.Result{}, err
			}
		}
		return procexec.Result{Stderr: []byte("warning: odd bank\n")}, nil
	})
	dests := map[int]string{
		9: filepath.Join(dir, "bl", "events", "br-00001.dst.gz"),
		4: filepath.Join(dir, "bl", "events", "br-00000.dst.gz"),
	}
	if err := c.Split(context.Background(), "/src/y2014m03d21p01.down.dst.gz", dests); err != nil {
		t.Fatalf("Split: %v", err)
	}
	if want != "4\n9\n" {
		t.Fatalf("unexpected want list %q", want)
	}
	for pos, path := range dests {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if string(data) != fmt.Sprintf("event %d", pos) {
			t.Fatalf("%s holds %q", path, data)
		}
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "bl", "events"))
	if len(entries) != 2 {
		t.Fatalf("expected split work directory removed, found %d entries", len(entries))
	}
}

func TestSplitMissingOutput(t *testing.T) {
	dir := t.TempDir()
	c := newTestClient(func(context.Context, procexec.Invocation) (procexec.Result, error) {
		return procexec.Result{}, nil
	})
	err := c.Split(context.Background(), "src", map[int]string{1: filepath.Join(dir, "x.dst.gz")})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestSolvePlaneWritesLogsAndOutputs(t *testing.T) {
	dir := t.TempDir()
	c := newTestClient(func(_ context.Context, inv procexec.Invocation) (procexec.Result, error) {
		for _, out := range []string{inv.Args[1], inv.Args[3]} {
			if err := os.WriteFile(out, []byte("spln"), 0o644); err != nil {
				return procexec.Result{}, err
			}
		}
		return procexec.Result{Stdout: []byte("fit ok\n n dot n angle: 87.5\n")}, nil
	})
	req := PlaneRequest{
		Inputs:   [2]string{"br.dst.gz", "lr.dst.gz"},
		Geometry: [2]string{"geobr.dst.gz", "geolr.dst.gz"},
		Outputs:  [2]string{filepath.Join(dir, "g", "br.spln.dst.gz"), filepath.Join(dir, "g", "lr.spln.dst.gz")},
		LogBase:  filepath.Join(dir, "g", "00000.bl.spln"),
	}
	sol, err := c.SolvePlane(context.Background(), req)
	if err != nil {
		t.Fatalf("SolvePlane: %v", err)
	}
	if sol.Angle != 87.5 {
		t.Fatalf("unexpected angle %v", sol.Angle)
	}
	for _, path := range append(req.Outputs[:], req.LogBase+".out", req.LogBase+".err") {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s: %v", path, err)
		}
	}
}

func TestSolvePlaneFailureLeavesNoOutputs(t *testing.T) {
	dir := t.TempDir()
	c := newTestClient(func(_ context.Context, inv procexec.Invocation) (procexec.Result, error) {
		_ = os.WriteFile(inv.Args[1], []byte("partial"), 0o644)
		return procexec.Result{Stderr: []byte("crash"), ExitCode: 2}, errors.New("exit 2")
	})
	out := filepath.Join(dir, "br.spln.dst.gz")
	_, err := c.SolvePlane(context.Background(), PlaneRequest{
		Outputs: [2]string{out, filepath.Join(dir, "lr.spln.dst.gz")},
		LogBase: filepath.Join(dir, "log"),
	})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if diff := cmp.Diff([]string{"log.err", "log.out"}, names); diff != "" {
		t.Fatalf("directory mismatch (-want +got):\n%s", diff)
	}
}

func TestDurationsAndZenith(t *testing.T) {
	var calls []procexec.Invocation
	c := newTestClient(func(_ context.Context, inv procexec.Invocation) (procexec.Result, error) {
		calls = append(calls, inv)
		return procexec.Result{Stdout: []byte(
			"Active duration A: 2.0\nActive duration B: 3.0\nTotal duration A: 4\nTotal duration B: 6\nZenith angle: 45.5\n")}, nil
	})
	d, err := c.Durations(context.Background(), "f.dst.gz", stereo.PairBM)
	if err != nil {
		t.Fatalf("Durations: %v", err)
	}
	if d != [4]float64{2, 3, 4, 6} {
		t.Fatalf("unexpected durations %v", d)
	}
	if diff := cmp.Diff([]string{"-brplane", "-fdplane", "-stplane", "f.dst.gz"}, calls[0].Args); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
	z, err := c.Zenith(context.Background(), "f.dst.gz")
	if err != nil || z != 45.5 {
		t.Fatalf("Zenith = %v, %v", z, err)
	}
}

func TestMergeAndRecombine(t *testing.T) {
	dir := t.TempDir()
	c := newTestClient(func(_ context.Context, inv procexec.Invocation) (procexec.Result, error) {
		// Both programs take the output as their third argument.
		return procexec.Result{}, os.WriteFile(inv.Args[2], []byte(inv.Binary), 0o644)
	})
	merged := filepath.Join(dir, "merged", "00001.tbst.dst.gz")
	if err := c.Merge(context.Background(), "a", "b", merged); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	united := filepath.Join(dir, "merged", "00001.tbst-pfst.dst.gz")
	if err := c.Recombine(context.Background(), united, merged, "md"); err != nil {
		t.Fatalf("Recombine: %v", err)
	}
	data, _ := os.ReadFile(united)
	if string(data) != "dstsum" {
		t.Fatalf("unexpected recombined content %q", data)
	}
	if err := c.Recombine(context.Background(), united); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProfileCommands(t *testing.T) {
	c := newTestClient(nil)
	tube := c.TubeProfileCommand(stereo.BlackRock, "in.dst.gz", "geobr.dst.gz", "out.dst.gz", []string{"-st"})
	if diff := cmp.Diff([]string{"fdtubeprofile", "-o", "out.dst.gz", "-geo", "geobr.dst.gz", "-force_br", "-st", "in.dst.gz"}, tube); diff != "" {
		t.Fatalf("tube command mismatch (-want +got):\n%s", diff)
	}
	plane := c.PlaneProfileCommand("in.dst.gz", "out.dst.gz", []string{"-fit", "3"})
	if diff := cmp.Diff([]string{"stpfl", "-fit", "3", "-o", "out.dst.gz", "in.dst.gz"}, plane); diff != "" {
		t.Fatalf("plane command mismatch (-want +got):\n%s", diff)
	}
}

func tubeRow(sigma string, status string) string {
	fields := make([]string, 21)
	for i := range fields {
		fields[i] = "0"
	}
	fields[16] = sigma
	fields[18] = status
	return strings.Join(fields, " ")
}

func TestIsFlash(t *testing.T) {
	tests := []struct {
		name string
		rows []string
		want bool
	}{
		{"shower", []string{tubeRow("40.0", "1"), tubeRow("35.0", "1"), tubeRow("50.0", "0")}, false},
		{"flash", []string{tubeRow("10.0", "1"), tubeRow("20.0", "0"), tubeRow("30.0", "0"), tubeRow("5.0", "0")}, true},
		{"tie is not higher", []string{tubeRow("10.0", "1"), tubeRow("10.0", "0"), tubeRow("10.0", "0")}, false},
		{"no accepted tubes", []string{tubeRow("10.0", "0"), tubeRow("12.0", "0")}, false},
		{"other rows ignored", []string{"header line", tubeRow("10.0", "1")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got procexec.Invocation
			c := newTestClient(func(_ context.Context, inv procexec.Invocation) (procexec.Result, error) {
				got = inv
				return procexec.Result{Stdout: []byte(strings.Join(tt.rows, "\n") + "\n")}, nil
			})
			flash, err := c.IsFlash(context.Background(), "br-00001.dst.gz")
			if err != nil {
				t.Fatalf("IsFlash: %v", err)
			}
			if flash != tt.want {
				t.Fatalf("IsFlash = %v, want %v", flash, tt.want)
			}
			if diff := cmp.Diff([]string{"+brplane", "+lrplane", "br-00001.dst.gz"}, got.Args); diff != "" {
				t.Fatalf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFitPlaneWritesOutputAndLogs(t *testing.T) {
	dir := t.TempDir()
	var got procexec.Invocation
	c := newTestClient(func(_ context.Context, inv procexec.Invocation) (procexec.Result, error) {
		got = inv
		if err := os.WriteFile(inv.Args[3], []byte("fitted"), 0o644); err != nil {
			return procexec.Result{}, err
		}
		return procexec.Result{Stdout: []byte("plane ok\n")}, nil
	})
	req := PlaneFitRequest{
		Input:    "md-00002.dst.gz",
		Geometry: "geomd.dst.gz",
		Output:   filepath.Join(dir, "md-00002.pln.dst.gz"),
		LogBase:  filepath.Join(dir, "md-00002.pln"),
	}
	if err := c.FitPlane(context.Background(), req); err != nil {
		t.Fatalf("FitPlane: %v", err)
	}
	if got.Binary != "mdplane" || got.Args[0] != "-geo" || got.Args[1] != "geomd.dst.gz" || got.Args[4] != "md-00002.dst.gz" {
		t.Fatalf("unexpected invocation %+v", got)
	}
	if data, err := os.ReadFile(req.Output); err != nil || string(data) != "fitted" {
		t.Fatalf("output = %q, %v", data, err)
	}
	if data, err := os.ReadFile(req.LogBase + ".out"); err != nil || string(data) != "plane ok\n" {
		t.Fatalf("log = %q, %v", data, err)
	}
}
