package testsupport

import (
	"testing"
	"time"

	"stereomatch/internal/checkpoint"
	"stereomatch/internal/config"
	"stereomatch/internal/jobs"
	"stereomatch/internal/logging"
	"stereomatch/internal/night"
	"stereomatch/internal/stage"
	"stereomatch/internal/stereo"
)

// TestDate is the night date used by NewUnit.
const TestDate = "20140321"

// NewNight returns the configured night identity on TestDate.
func NewNight(cfg *config.Config) night.Night {
	return night.Night{
		Calibration: cfg.Night.Calibration,
		Model:       cfg.Night.Model,
		Source:      cfg.Night.Source,
		Date:        TestDate,
	}
}

// NewUnit writes one empty part-1 source file for every station and returns
// the discovered unit.
func NewUnit(t testing.TB, cfg *config.Config, stations ...stereo.Station) *stage.Unit {
	t.Helper()
	n := NewNight(cfg)
	layout := night.NewLayout(cfg, n)
	for _, s := range stations {
		WriteFile(t, layout.SourceFile(s, 1), nil)
	}
	sources, err := night.Discover(layout)
	if err != nil {
		t.Fatalf("night.Discover: %v", err)
	}
	return &stage.Unit{Night: n, Layout: layout, Sources: sources}
}

// NewShared returns a shared context with sentinel-only markers and a
// tracker over lister. lister may be nil for steps that never poll.
func NewShared(cfg *config.Config, lister jobs.Lister) *stage.Shared {
	return &stage.Shared{
		Config:  cfg,
		RunID:   "test-run",
		Logger:  logging.NewNop(),
		Markers: checkpoint.NewMarkers(nil, "test-run"),
		Jobs:    jobs.NewTracker(lister, time.Duration(cfg.Scheduler.PollIntervalSeconds)*time.Second, cfg.Scheduler.MaxOutstanding),
	}
}
