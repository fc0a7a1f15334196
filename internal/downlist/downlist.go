// Package downlist builds each participating station's time-ordered list of
// candidate detections from its per-part source files.
package downlist

import (
	"context"
	"log/slog"
	"time"

	"stereomatch/internal/checkpoint"
	"stereomatch/internal/fileutil"
	"stereomatch/internal/logging"
	"stereomatch/internal/services"
	"stereomatch/internal/stage"
	"stereomatch/internal/stereo"
)

// Dumper produces the detections of one station.
type Dumper interface {
	Downlist(ctx context.Context, station stereo.Station, files []string) ([]stereo.DetectionEvent, error)
}

// Handler is the build-downlists step.
type Handler struct {
	dumper Dumper
	binary string
}

// NewHandler constructs the step. binary names the dump collaborator for
// health checks.
func NewHandler(dumper Dumper, binary string) *Handler {
	return &Handler{dumper: dumper, binary: binary}
}

// Step implements stage.Handler.
func (h *Handler) Step() stage.StepName { return stage.BuildDownlists }

// HealthCheck implements stage.Handler.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	return stage.CheckBinaries(h.Step(), h.binary)
}

// Run writes one downlist per participating station. Existing downlists are
// reused unless the retry level forces a rebuild.
func (h *Handler) Run(ctx context.Context, unit *stage.Unit, shared *stage.Shared) (stage.Reason, error) {
	stations := unit.Sources.Stations()
	if len(stations) < 2 {
		return stage.NothingToDo, nil
	}
	paths := make([]string, len(stations))
	for i, s := range stations {
		paths[i] = unit.Layout.DownlistPath(s)
	}
	dir := unit.Layout.CheckpointDir()
	run, err := shared.NeedsRun(ctx, unit.Key(checkpoint.ScopeNight, stage.BuildDownlists), dir, paths...)
	if err != nil || !run {
		return stage.Continue, err
	}
	logger := shared.LoggerFor(ctx)
	for i, s := range stations {
		if shared.Retry < stage.RetryForce && fileutil.Exists(paths[i]) {
			continue
		}
		if err := h.build(ctx, logger, unit, s, paths[i]); err != nil {
			return stage.Continue, err
		}
	}
	if err := shared.Markers.Mark(ctx, unit.Key(checkpoint.ScopeNight, stage.BuildDownlists), dir); err != nil {
		return stage.Continue, err
	}
	return stage.Continue, nil
}

func (h *Handler) build(ctx context.Context, logger *slog.Logger, unit *stage.Unit, s stereo.Station, path string) error {
	start := time.Now()
	events, err := h.dumper.Downlist(ctx, s, unit.Sources[s])
	if err != nil {
		return err
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp < events[i-1].Timestamp {
			return services.Wrap(services.ErrValidation, stage.BuildDownlists.String(), "sort",
				"Detection dump for "+s.Name()+" is not time ordered", nil)
		}
	}
	if err := fileutil.WriteFileAtomic(path, stereo.EncodeDownlist(events), 0o644); err != nil {
		return err
	}
	logger.Info("downlist written",
		logging.String(logging.FieldEventType, "downlist_written"),
		logging.String("station", s.Name()),
		logging.Int("files", len(unit.Sources[s])),
		logging.Int("events", len(events)),
		logging.Duration("duration", time.Since(start)),
	)
	return nil
}
