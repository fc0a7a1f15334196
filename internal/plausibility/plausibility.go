package plausibility

import (
	"context"
	"errors"
	"io/fs"

	"stereomatch/internal/fileutil"
	"stereomatch/internal/geometry"
	"stereomatch/internal/logging"
	"stereomatch/internal/metrics"
	"stereomatch/internal/night"
	"stereomatch/internal/stage"
	"stereomatch/internal/stereo"
)

// Inspector reads durations and zenith angles from solver output.
type Inspector interface {
	Durations(ctx context.Context, file string, pair stereo.Combination) ([4]float64, error)
	Zenith(ctx context.Context, file string) (float64, error)
}

// Handler is the check-plausibility step.
type Handler struct {
	inspector Inspector
	binary    string
}

// NewHandler constructs the step. binary names the inspection collaborator
// for health checks.
func NewHandler(inspector Inspector, binary string) *Handler {
	return &Handler{inspector: inspector, binary: binary}
}

// Step implements stage.Handler.
func (h *Handler) Step() stage.StepName { return stage.CheckPlausibility }

// HealthCheck implements stage.Handler.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	return stage.CheckBinaries(h.Step(), h.binary)
}

// Run writes validated.txt and rejectgeom.txt for every combination.
func (h *Handler) Run(ctx context.Context, unit *stage.Unit, shared *stage.Shared) (stage.Reason, error) {
	p := shared.Config.Plausibility
	limits := Thresholds{MinRatio: p.MinDurationRatio, MaxZenith: p.MaxZenith}
	outputs := func(cl night.CombinationLayout) []string {
		return []string{cl.ValidatedPath(), cl.RejectGeometryPath()}
	}
	return stage.PerCombination(ctx, unit, shared, h.Step(), outputs,
		func(ctx context.Context, cl night.CombinationLayout) (stage.Reason, error) {
			solutions, err := geometry.LoadTable(cl.GeometryTablePath())
			if errors.Is(err, fs.ErrNotExist) {
				return stage.Haltf("missing %s/geometry.txt", cl.Combination), nil
			}
			if err != nil {
				return stage.Continue, err
			}
			logger := shared.LoggerFor(ctx)
			var accepted []Validated
			var rejected []Rejected
			for _, sol := range solutions {
				v, zenith, err := h.evaluate(ctx, cl, sol, limits)
				if err != nil {
					return stage.Continue, err
				}
				if !v.Accepted() {
					rejected = append(rejected, Rejected{Index: sol.Index, Pair: sol.Pair, Reason: v.Reason, Detail: v.Detail})
					logger.Info("geometry rejected",
						logging.String(logging.FieldEventType, "geometry_rejected"),
						logging.Int("index", sol.Index),
						logging.String("pair", string(sol.Pair)),
						logging.String("reason", string(v.Reason)),
						logging.String("detail", v.Detail),
					)
					metrics.AddRejections(string(v.Reason), 1)
					continue
				}
				accepted = append(accepted, Validated{Index: sol.Index, Pair: sol.Pair, Ratio: v.Ratio, Zenith: zenith})
			}
			if err := fileutil.WriteFileAtomic(cl.RejectGeometryPath(), EncodeRejected(rejected), 0o644); err != nil {
				return stage.Continue, err
			}
			if err := fileutil.WriteFileAtomic(cl.ValidatedPath(), EncodeValidated(accepted), 0o644); err != nil {
				return stage.Continue, err
			}
			logger.Info("geometry validated",
				logging.String(logging.FieldEventType, "geometry_validated"),
				logging.Int("accepted", len(accepted)),
				logging.Int("rejected", len(rejected)),
			)
			return stage.Continue, nil
		})
}

// evaluate checks one event. Durations come from the chosen pairing's own
// solution; the zenith from the first member's consolidated solution.
func (h *Handler) evaluate(ctx context.Context, cl night.CombinationLayout, sol geometry.Solution, limits Thresholds) (Verdict, float64, error) {
	lead := sol.Pair.Members()[0]
	durationFile := cl.GeometryPath(lead, sol.Index)
	if cl.Combination.IsTriple() {
		durationFile = cl.PairGeometryPath(lead, sol.Index, sol.Pair)
	}
	d, err := h.inspector.Durations(ctx, durationFile, sol.Pair)
	if err != nil {
		return Verdict{}, 0, err
	}
	v := limits.CheckDurations(d)
	if !v.Accepted() {
		return v, 0, nil
	}
	zenith, err := h.inspector.Zenith(ctx, cl.GeometryPath(cl.Combination.Members()[0], sol.Index))
	if err != nil {
		return Verdict{}, 0, err
	}
	return limits.CheckZenith(v, zenith), zenith, nil
}
