// Package extraction copies each matched detection out of its station's
// per-part source file into a standalone per-event file.
//
// Requests are grouped by source file so every file is read once. A
// detection referenced by several combinations is extracted once and copied
// to the other destinations.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"stereomatch/internal/fileutil"
	"stereomatch/internal/logging"
	"stereomatch/internal/night"
	"stereomatch/internal/services"
	"stereomatch/internal/stage"
	"stereomatch/internal/stereo"
)

// Splitter extracts positions of one source file into separate files.
type Splitter interface {
	Split(ctx context.Context, src string, dests map[int]string) error
}

// Handler is the extract-events step.
type Handler struct {
	splitter Splitter
	binary   string
}

// NewHandler constructs the step. binary names the split collaborator for
// health checks.
func NewHandler(splitter Splitter, binary string) *Handler {
	return &Handler{splitter: splitter, binary: binary}
}

// Step implements stage.Handler.
func (h *Handler) Step() stage.StepName { return stage.ExtractEvents }

// HealthCheck implements stage.Handler.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	return stage.CheckBinaries(h.Step(), h.binary)
}

// Plan is the deduplicated extraction work of one night.
type Plan struct {
	// Sources maps a source file to its wanted positions and, per position,
	// every destination in the order they were requested.
	Sources map[string]map[int][]string
}

// Files returns the planned source files, sorted.
func (p Plan) Files() []string {
	out := make([]string, 0, len(p.Sources))
	for f := range p.Sources {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Requests counts destinations over all sources.
func (p Plan) Requests() int {
	n := 0
	for _, positions := range p.Sources {
		for _, dests := range positions {
			n += len(dests)
		}
	}
	return n
}

// Add requests that the detection at pos of src be written to dest.
func (p *Plan) Add(src string, pos int, dest string) {
	if p.Sources == nil {
		p.Sources = map[string]map[int][]string{}
	}
	positions, ok := p.Sources[src]
	if !ok {
		positions = map[int][]string{}
		p.Sources[src] = positions
	}
	positions[pos] = append(positions[pos], dest)
}

// Run extracts the events of every combination whose checkpoint calls for
// it, then marks those combinations.
func (h *Handler) Run(ctx context.Context, unit *stage.Unit, shared *stage.Shared) (stage.Reason, error) {
	parts, err := partIndex(unit.Sources)
	if err != nil {
		return stage.Continue, err
	}

	var plan Plan
	var pending []night.CombinationLayout
	for _, c := range unit.Combinations() {
		cl := unit.Layout.Combination(c)
		records, err := stereo.LoadMatches(cl.MatchesPath(), c)
		if errors.Is(err, fs.ErrNotExist) {
			return stage.Haltf("missing %s/matches.txt", c), nil
		}
		if err != nil {
			return stage.Continue, err
		}
		outputs := eventPaths(cl, records)
		run, err := shared.NeedsRun(ctx, unit.Key(string(c), h.Step()), cl.CheckpointDir(), outputs...)
		if err != nil {
			return stage.Continue, err
		}
		if !run {
			continue
		}
		for _, rec := range records {
			for _, e := range rec.Events {
				dest := cl.EventPath(e.Station, rec.Index)
				if shared.Retry < stage.RetryForce && fileutil.Exists(dest) {
					continue
				}
				src, ok := parts[e.Station][e.Part]
				if !ok {
					return stage.Haltf("missing %s source file for part %d", e.Station.Name(), e.Part), nil
				}
				plan.Add(src, e.Index, dest)
			}
		}
		pending = append(pending, cl)
	}

	if err := h.execute(ctx, shared, plan); err != nil {
		return stage.Continue, err
	}
	for _, cl := range pending {
		cctx := services.WithCombination(ctx, string(cl.Combination))
		if err := shared.Markers.Mark(cctx, unit.Key(string(cl.Combination), h.Step()), cl.CheckpointDir()); err != nil {
			return stage.Continue, err
		}
	}
	return stage.Continue, nil
}

func (h *Handler) execute(ctx context.Context, shared *stage.Shared, plan Plan) error {
	logger := shared.LoggerFor(ctx)
	for _, src := range plan.Files() {
		start := time.Now()
		positions := plan.Sources[src]
		first := make(map[int]string, len(positions))
		for pos, dests := range positions {
			first[pos] = dests[0]
		}
		if err := h.splitter.Split(ctx, src, first); err != nil {
			return err
		}
		copies := 0
		for _, dests := range positions {
			for _, dest := range dests[1:] {
				if err := fileutil.CopyFile(dests[0], dest); err != nil {
					return fmt.Errorf("copy extracted event: %w", err)
				}
				copies++
			}
		}
		logger.Info("events extracted",
			logging.String(logging.FieldEventType, "events_extracted"),
			logging.String("source", src),
			logging.Int("positions", len(positions)),
			logging.Int("copies", copies),
			logging.Duration("duration", time.Since(start)),
		)
	}
	return nil
}

func partIndex(sources night.Sources) (map[stereo.Station]map[int]string, error) {
	out := make(map[stereo.Station]map[int]string, len(sources))
	for s, files := range sources {
		byPart := make(map[int]string, len(files))
		for _, f := range files {
			part, err := night.PartOf(f)
			if err != nil {
				return nil, err
			}
			byPart[part] = f
		}
		out[s] = byPart
	}
	return out, nil
}

func eventPaths(cl night.CombinationLayout, records []stereo.MatchRecord) []string {
	var out []string
	for _, rec := range records {
		for _, e := range rec.Events {
			out = append(out, cl.EventPath(e.Station, rec.Index))
		}
	}
	return out
}
