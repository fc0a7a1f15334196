package geometry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"stereomatch/internal/fileutil"
	"stereomatch/internal/logging"
	"stereomatch/internal/metrics"
	"stereomatch/internal/night"
	"stereomatch/internal/services/dsttools"
	"stereomatch/internal/stage"
	"stereomatch/internal/stereo"
)

// Solver wraps the plane solver, plane fit, flash inspection and bank
// recombination collaborators.
type Solver interface {
	SolvePlane(ctx context.Context, req dsttools.PlaneRequest) (dsttools.PlaneSolution, error)
	FitPlane(ctx context.Context, req dsttools.PlaneFitRequest) error
	IsFlash(ctx context.Context, file string) (bool, error)
	Recombine(ctx context.Context, out string, inputs ...string) error
}

// Handler is the reconstruct-geometry step.
type Handler struct {
	solver   Solver
	binaries []string
}

// NewHandler constructs the step. binaries name the collaborators for
// health checks.
func NewHandler(solver Solver, binaries ...string) *Handler {
	return &Handler{solver: solver, binaries: binaries}
}

// Step implements stage.Handler.
func (h *Handler) Step() stage.StepName { return stage.ReconstructGeometry }

// HealthCheck implements stage.Handler.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	return stage.CheckBinaries(h.Step(), h.binaries...)
}

// Run solves every active match of every combination and writes
// geometry.txt. Events where a tube station saw a flash are left out of the
// table and listed in rejectflash.txt.
func (h *Handler) Run(ctx context.Context, unit *stage.Unit, shared *stage.Shared) (stage.Reason, error) {
	outputs := func(cl night.CombinationLayout) []string { return []string{cl.GeometryTablePath(), cl.RejectFlashPath()} }
	return stage.PerCombination(ctx, unit, shared, h.Step(), outputs,
		func(ctx context.Context, cl night.CombinationLayout) (stage.Reason, error) {
			records, err := stereo.LoadMatches(cl.MatchesPath(), cl.Combination)
			if errors.Is(err, fs.ErrNotExist) {
				return stage.Haltf("missing %s/matches.txt", cl.Combination), nil
			}
			if err != nil {
				return stage.Continue, err
			}
			for _, rec := range records {
				for _, e := range rec.Events {
					if !fileutil.Exists(cl.EventPath(e.Station, rec.Index)) {
						return stage.Haltf("missing extracted event %s/%s", cl.Combination, stereo.Label(e.Station, rec.Index)), nil
					}
				}
			}
			logger := shared.LoggerFor(ctx)
			g := &geometryRun{solver: h.solver, unit: unit, cl: cl, shared: shared, fitted: map[int]bool{}}
			solutions := make([]Solution, 0, len(records))
			var flashes []Flash
			for _, rec := range records {
				flagged, err := g.flashStations(ctx, rec.Index)
				if err != nil {
					return stage.Continue, err
				}
				if len(flagged) > 0 {
					flashes = append(flashes, Flash{Index: rec.Index, Stations: flagged})
					logger.Info("flash event skipped",
						logging.String(logging.FieldEventType, "flash_rejected"),
						logging.Int("index", rec.Index),
						logging.String("stations", stationList(flagged)),
					)
					metrics.AddRejections("flash", 1)
					continue
				}
				var sol Solution
				if cl.Combination.IsTriple() {
					sol, err = g.solveTriple(ctx, rec.Index)
				} else {
					sol, err = g.solvePair(ctx, rec.Index)
				}
				if err != nil {
					return stage.Continue, err
				}
				solutions = append(solutions, sol)
			}
			if err := fileutil.WriteFileAtomic(cl.RejectFlashPath(), EncodeFlashes(flashes), 0o644); err != nil {
				return stage.Continue, err
			}
			if err := fileutil.WriteFileAtomic(cl.GeometryTablePath(), EncodeTable(solutions), 0o644); err != nil {
				return stage.Continue, err
			}
			logger.Info("geometry reconstructed",
				logging.String(logging.FieldEventType, "geometry_reconstructed"),
				logging.Int("events", len(solutions)),
				logging.Int("flashes", len(flashes)),
			)
			return stage.Continue, nil
		})
}

type geometryRun struct {
	solver Solver
	unit   *stage.Unit
	cl     night.CombinationLayout
	shared *stage.Shared
	// fitted holds the event indexes whose plane station fit exists.
	fitted map[int]bool
}

// flashStations returns the tube members of the combination whose event
// looks like a flash.
func (g *geometryRun) flashStations(ctx context.Context, index int) ([]stereo.Station, error) {
	var out []stereo.Station
	for _, s := range g.cl.Combination.Members() {
		if s.Kind() != stereo.KindTube {
			continue
		}
		flash, err := g.solver.IsFlash(ctx, g.cl.EventPath(s, index))
		if err != nil {
			return nil, err
		}
		if flash {
			out = append(out, s)
		}
	}
	return out, nil
}

// input returns the solver input of station s, fitting plane stations first.
func (g *geometryRun) input(ctx context.Context, s stereo.Station, index int) (string, error) {
	if s.Kind() != stereo.KindPlane {
		return g.cl.EventPath(s, index), nil
	}
	out := g.cl.PlaneFitPath(s, index)
	if g.fitted[index] {
		return out, nil
	}
	req := dsttools.PlaneFitRequest{
		Input:    g.cl.EventPath(s, index),
		Geometry: g.unit.Layout.GeometryFile(s),
		Output:   out,
		LogBase:  g.cl.PlaneFitLogBase(s, index),
	}
	if err := g.solver.FitPlane(ctx, req); err != nil {
		return "", err
	}
	g.fitted[index] = true
	return out, nil
}

func stationList(stations []stereo.Station) string {
	tags := make([]string, len(stations))
	for i, s := range stations {
		tags[i] = string(s)
	}
	return strings.Join(tags, ",")
}

// solve runs one pairing for event index. dest names the output of each
// member station.
func (g *geometryRun) solve(ctx context.Context, index int, pair stereo.Combination, dest func(stereo.Station) string) (float64, error) {
	m := pair.Members()
	var inputs [2]string
	for i, s := range m {
		in, err := g.input(ctx, s, index)
		if err != nil {
			return 0, err
		}
		inputs[i] = in
	}
	req := dsttools.PlaneRequest{
		Inputs:   inputs,
		Geometry: [2]string{g.unit.Layout.GeometryFile(m[0]), g.unit.Layout.GeometryFile(m[1])},
		Outputs:  [2]string{dest(m[0]), dest(m[1])},
		LogBase:  g.cl.SolverLogBase(index, pair),
	}
	sol, err := g.solver.SolvePlane(ctx, req)
	if err != nil {
		return 0, err
	}
	return sol.Angle, nil
}

func (g *geometryRun) solvePair(ctx context.Context, index int) (Solution, error) {
	c := g.cl.Combination
	angle, err := g.solve(ctx, index, c, func(s stereo.Station) string { return g.cl.GeometryPath(s, index) })
	if err != nil {
		return Solution{}, err
	}
	return Solution{Index: index, Pair: c, Angle: angle}, nil
}

func (g *geometryRun) solveTriple(ctx context.Context, index int) (Solution, error) {
	angles := make(map[stereo.Combination]float64, len(stereo.Pairs))
	for _, p := range stereo.Pairs {
		angle, err := g.solve(ctx, index, p, func(s stereo.Station) string { return g.cl.PairGeometryPath(s, index, p) })
		if err != nil {
			return Solution{}, err
		}
		angles[p] = angle
	}
	gc := g.shared.Config.Geometry
	winner := Choose(angles, stereo.Combination(gc.PrimaryPair), gc.MaxPrimaryDeviation)
	lead := g.cl.PairGeometryPath(winner.Members()[0], index, winner)
	for _, s := range stereo.Triple.Members() {
		out := g.cl.GeometryPath(s, index)
		if winner.Contains(s) {
			if err := fileutil.CopyFile(g.cl.PairGeometryPath(s, index, winner), out); err != nil {
				return Solution{}, fmt.Errorf("place %s solution: %w", s, err)
			}
			continue
		}
		own := g.cl.PairGeometryPath(s, index, SourcePair(s, winner))
		if err := g.solver.Recombine(ctx, out, own, lead); err != nil {
			return Solution{}, err
		}
	}
	g.shared.LoggerFor(ctx).Debug("triple geometry chosen",
		logging.Int("index", index),
		logging.String("pair", string(winner)),
		logging.Float64("angle_bl", angles[stereo.PairBL]),
		logging.Float64("angle_bm", angles[stereo.PairBM]),
		logging.Float64("angle_lm", angles[stereo.PairLM]),
	)
	return Solution{Index: index, Pair: winner, Angle: angles[winner]}, nil
}
