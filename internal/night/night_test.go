package night

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"stereomatch/internal/config"
	"stereomatch/internal/stereo"
)

func testLayout(t *testing.T, source string) (Layout, string) {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StereoRoot = filepath.Join(base, "stereo")
	cfg.Paths.MonoRoot = filepath.Join(base, "mono")
	cfg.Paths.GeometryDir = filepath.Join(base, "geo")
	n := Night{Calibration: "cal1.4", Model: "qgsjet", Source: source, Date: "20140321"}
	return NewLayout(&cfg, n), base
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNightValidateAndKey(t *testing.T) {
	n := Night{Calibration: "cal1.4", Model: "qgsjet", Source: "nature", Date: "20140321"}
	if err := n.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	parsed, err := ParseKey(n.Key())
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if parsed != n {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}

	bad := []Night{
		{Calibration: "", Model: "m", Source: "s", Date: "20140321"},
		{Calibration: "c", Model: "a/b", Source: "s", Date: "20140321"},
		{Calibration: "c", Model: "m", Source: "s", Date: "2014032"},
		{Calibration: "c", Model: "m", Source: "s", Date: "20141341"},
	}
	for _, b := range bad {
		if err := b.Validate(); err == nil {
			t.Errorf("expected %+v to be rejected", b)
		}
	}
}

func TestLayoutPaths(t *testing.T) {
	l, base := testLayout(t, "nature")
	nightDir := filepath.Join(base, "stereo", "cal1.4", "qgsjet", "nature", "20140321")
	if l.Dir() != nightDir {
		t.Fatalf("unexpected night dir %s", l.Dir())
	}
	if got := l.StationDir(stereo.MiddleDrum); got != filepath.Join(base, "mono", "middle-drum", "20140321") {
		t.Fatalf("unexpected nature station dir %s", got)
	}
	if got := l.SourceFile(stereo.BlackRock, 3); filepath.Base(got) != "y2014m03d21p03.down.dst.gz" {
		t.Fatalf("unexpected source file %s", got)
	}
	c := l.Combination(stereo.PairBM)
	if got := c.EventPath(stereo.MiddleDrum, 12); got != filepath.Join(nightDir, "bm", "events", "md-00012.dst.gz") {
		t.Fatalf("unexpected event path %s", got)
	}
	if got := c.PairGeometryPath(stereo.BlackRock, 7, stereo.PairBL); filepath.Base(got) != "br-00007.bl.spln.dst.gz" {
		t.Fatalf("unexpected pair geometry %s", got)
	}
	out, errPath := c.ProfileLogPaths(stereo.LongRidge, 1, "tbst")
	if filepath.Base(out) != "lr-00001.tbst.out" || filepath.Base(errPath) != "lr-00001.tbst.err" {
		t.Fatalf("unexpected log paths %s %s", out, errPath)
	}
	if got := l.CompletePath("tbst", "pfst"); got != filepath.Join(nightDir, "ascii", "tbst-pfst", "COMPLETE") {
		t.Fatalf("unexpected complete path %s", got)
	}

	sim, _ := testLayout(t, "trump")
	if got := sim.StationDir(stereo.LongRidge); got != filepath.Join(sim.Dir(), "trump", "long-ridge") {
		t.Fatalf("unexpected simulated station dir %s", got)
	}
}

func TestDiscover(t *testing.T) {
	l, _ := testLayout(t, "nature")
	touch(t, l.SourceFile(stereo.BlackRock, 2))
	touch(t, l.SourceFile(stereo.BlackRock, 1))
	touch(t, filepath.Join(l.StationDir(stereo.BlackRock), "notes.txt"))
	touch(t, l.SourceFile(stereo.MiddleDrum, 1))
	if err := os.MkdirAll(l.StationDir(stereo.LongRidge), 0o755); err != nil {
		t.Fatal(err)
	}

	sources, err := Discover(l)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if diff := cmp.Diff([]stereo.Station{stereo.BlackRock, stereo.MiddleDrum}, sources.Stations()); diff != "" {
		t.Fatalf("stations mismatch (-want +got):\n%s", diff)
	}
	want := []string{l.SourceFile(stereo.BlackRock, 1), l.SourceFile(stereo.BlackRock, 2)}
	if diff := cmp.Diff(want, sources[stereo.BlackRock]); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]stereo.Combination{stereo.PairBM}, sources.Combinations()); diff != "" {
		t.Fatalf("combinations mismatch (-want +got):\n%s", diff)
	}

	part, err := PartOf(want[1])
	if err != nil || part != 2 {
		t.Fatalf("PartOf = %d, %v", part, err)
	}
	if _, err := PartOf("/tmp/readme.txt"); err == nil {
		t.Fatal("expected PartOf to reject foreign names")
	}
}

func TestListDates(t *testing.T) {
	l, base := testLayout(t, "nature")
	if err := os.MkdirAll(filepath.Join(l.SourceRoot(), "20140320"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(base, "mono", "long-ridge", "20140322"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(l.SourceRoot(), "scratch"), 0o755); err != nil {
		t.Fatal(err)
	}
	dates, err := ListDates(l)
	if err != nil {
		t.Fatalf("ListDates: %v", err)
	}
	if diff := cmp.Diff([]string{"20140320", "20140322"}, dates); diff != "" {
		t.Fatalf("dates mismatch (-want +got):\n%s", diff)
	}
}

func TestLockIsExclusive(t *testing.T) {
	dir := t.TempDir()
	n := Night{Calibration: "c", Model: "m", Source: "nature", Date: "20140321"}
	first, err := Acquire(dir, n)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if filepath.Base(first.Path()) != "c_m_nature_20140321.lock" {
		t.Fatalf("unexpected lock path %s", first.Path())
	}
	if _, err := Acquire(dir, n); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	second, err := Acquire(dir, n)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	_ = second.Release()
}
