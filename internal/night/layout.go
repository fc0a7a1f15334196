package night

import (
	"fmt"
	"path/filepath"

	"stereomatch/internal/config"
	"stereomatch/internal/stereo"
)

// Layout derives the fixed paths of one night.
type Layout struct {
	Night       Night
	stereoRoot  string
	monoRoot    string
	geometryDir string
}

// NewLayout builds the layout of n under the configured roots.
func NewLayout(cfg *config.Config, n Night) Layout {
	return Layout{
		Night:       n,
		stereoRoot:  cfg.Paths.StereoRoot,
		monoRoot:    cfg.Paths.MonoRoot,
		geometryDir: cfg.Paths.GeometryDir,
	}
}

// SourceRoot is the directory holding every date of the night's
// calibration, model and source.
func (l Layout) SourceRoot() string {
	return filepath.Join(l.stereoRoot, l.Night.Calibration, l.Night.Model, l.Night.Source)
}

// Dir is the night directory.
func (l Layout) Dir() string {
	return filepath.Join(l.SourceRoot(), l.Night.Date)
}

// StationDir is where the station's per-part detection files live.
func (l Layout) StationDir(s stereo.Station) string {
	if l.Night.IsNature() {
		return filepath.Join(l.monoRoot, s.Name(), l.Night.Date)
	}
	return filepath.Join(l.Dir(), "trump", s.Name())
}

// SourceFile names the detection file of one part.
func (l Layout) SourceFile(s stereo.Station, part int) string {
	d := l.Night.Date
	return filepath.Join(l.StationDir(s), fmt.Sprintf("y%sm%sd%sp%02d.down.dst.gz", d[0:4], d[4:6], d[6:8], part))
}

// GeometryFile is the station's detector geometry used by the solvers.
func (l Layout) GeometryFile(s stereo.Station) string {
	return filepath.Join(l.geometryDir, fmt.Sprintf("geo%s.dst.gz", s))
}

// DownlistPath is the station's time-ordered candidate list.
func (l Layout) DownlistPath(s stereo.Station) string {
	return filepath.Join(l.Dir(), "downlists", string(s)+".txt")
}

// CheckpointDir holds the sentinels of night-wide stages.
func (l Layout) CheckpointDir() string {
	return filepath.Join(l.Dir(), ".checkpoints")
}

// Combination returns the layout of one combination directory.
func (l Layout) Combination(c stereo.Combination) CombinationLayout {
	return CombinationLayout{Combination: c, dir: filepath.Join(l.Dir(), string(c))}
}

// ASCIIDir holds the consolidated text records for one pair of profile
// reconstructions.
func (l Layout) ASCIIDir(tubeLabel, planeLabel string) string {
	return filepath.Join(l.Dir(), "ascii", tubeLabel+"-"+planeLabel)
}

// CompletePath is the sentinel written once every combination is consolidated.
func (l Layout) CompletePath(tubeLabel, planeLabel string) string {
	return filepath.Join(l.ASCIIDir(tubeLabel, planeLabel), "COMPLETE")
}

// CombinationLayout derives the paths inside one combination directory.
type CombinationLayout struct {
	Combination stereo.Combination
	dir         string
}

// Dir is the combination directory.
func (c CombinationLayout) Dir() string { return c.dir }

// PairsPath holds the raw correlator output.
func (c CombinationLayout) PairsPath() string { return filepath.Join(c.dir, "pairs.txt") }

// CoincidencesPath holds the list after triple isolation.
func (c CombinationLayout) CoincidencesPath() string {
	return filepath.Join(c.dir, "coincidences.txt")
}

// MatchesPath holds the active match list after contamination filtering.
func (c CombinationLayout) MatchesPath() string { return filepath.Join(c.dir, "matches.txt") }

// RejectCLFPath holds the records removed as calibration contamination.
func (c CombinationLayout) RejectCLFPath() string { return filepath.Join(c.dir, "rejectclf.txt") }

// EventsDir holds the extracted per-event files.
func (c CombinationLayout) EventsDir() string { return filepath.Join(c.dir, "events") }

// EventPath is the extracted file of one station's member event.
func (c CombinationLayout) EventPath(s stereo.Station, index int) string {
	return filepath.Join(c.EventsDir(), stereo.Label(s, index)+".dst.gz")
}

// GeometryDir holds solver artifacts and logs.
func (c CombinationLayout) GeometryDir() string { return filepath.Join(c.dir, "geometry") }

// PairGeometryPath is one pairing's solution for one station of a triple.
func (c CombinationLayout) PairGeometryPath(s stereo.Station, index int, pair stereo.Combination) string {
	return filepath.Join(c.GeometryDir(), fmt.Sprintf("%s.%s.spln.dst.gz", stereo.Label(s, index), pair))
}

// GeometryPath is the consolidated solution of one station's member event.
func (c CombinationLayout) GeometryPath(s stereo.Station, index int) string {
	return filepath.Join(c.GeometryDir(), stereo.Label(s, index)+".spln.dst.gz")
}

// SolverLogBase is the stdout/stderr prefix of one solver run.
func (c CombinationLayout) SolverLogBase(index int, pair stereo.Combination) string {
	return filepath.Join(c.GeometryDir(), fmt.Sprintf("%05d.%s.spln", index, pair))
}

// PlaneFitPath is the plane station fit of one event, used as solver input
// in place of the extracted event.
func (c CombinationLayout) PlaneFitPath(s stereo.Station, index int) string {
	return filepath.Join(c.GeometryDir(), stereo.Label(s, index)+".pln.dst.gz")
}

// PlaneFitLogBase is the stdout/stderr prefix of one plane fit.
func (c CombinationLayout) PlaneFitLogBase(s stereo.Station, index int) string {
	return filepath.Join(c.GeometryDir(), stereo.Label(s, index)+".pln")
}

// RejectFlashPath lists events skipped as flash triggers.
func (c CombinationLayout) RejectFlashPath() string { return filepath.Join(c.dir, "rejectflash.txt") }

// GeometryTablePath records the chosen pairing per event.
func (c CombinationLayout) GeometryTablePath() string { return filepath.Join(c.dir, "geometry.txt") }

// ValidatedPath lists the events accepted by the plausibility check.
func (c CombinationLayout) ValidatedPath() string { return filepath.Join(c.dir, "validated.txt") }

// RejectGeometryPath lists plausibility rejections with their reasons.
func (c CombinationLayout) RejectGeometryPath() string {
	return filepath.Join(c.dir, "rejectgeom.txt")
}

// ProfilesDir holds profile reconstruction outputs.
func (c CombinationLayout) ProfilesDir() string { return filepath.Join(c.dir, "profiles") }

// ProfilePath is one station's profile output for a label.
func (c CombinationLayout) ProfilePath(s stereo.Station, index int, label string) string {
	return filepath.Join(c.ProfilesDir(), fmt.Sprintf("%s.%s.dst.gz", stereo.Label(s, index), label))
}

// LogsDir holds scheduler job logs.
func (c CombinationLayout) LogsDir() string { return filepath.Join(c.dir, "logs") }

// ProfileLogPaths are the stdout and stderr files of one profile job.
func (c CombinationLayout) ProfileLogPaths(s stereo.Station, index int, label string) (stdout, stderr string) {
	base := filepath.Join(c.LogsDir(), fmt.Sprintf("%s.%s", stereo.Label(s, index), label))
	return base + ".out", base + ".err"
}

// MergedDir holds merged per-event artifacts.
func (c CombinationLayout) MergedDir() string { return filepath.Join(c.dir, "merged") }

// MergedPath is the merged artifact of one event.
func (c CombinationLayout) MergedPath(index int, suffix string) string {
	return filepath.Join(c.MergedDir(), fmt.Sprintf("%05d.%s.dst.gz", index, suffix))
}

// CheckpointDir holds the stage sentinels.
func (c CombinationLayout) CheckpointDir() string { return filepath.Join(c.dir, ".checkpoints") }
