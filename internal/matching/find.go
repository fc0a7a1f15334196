package matching

import (
	"context"
	"errors"
	"io/fs"

	"stereomatch/internal/correlate"
	"stereomatch/internal/logging"
	"stereomatch/internal/night"
	"stereomatch/internal/stage"
	"stereomatch/internal/stereo"
)

// FindHandler correlates the downlists of every station pair.
type FindHandler struct{}

// NewFindHandler constructs the find-matches step.
func NewFindHandler() *FindHandler { return &FindHandler{} }

// Step implements stage.Handler.
func (h *FindHandler) Step() stage.StepName { return stage.FindMatches }

// HealthCheck implements stage.Handler.
func (h *FindHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(h.Step().String())
}

// Run writes pairs.txt for every pair the night's stations form.
func (h *FindHandler) Run(ctx context.Context, unit *stage.Unit, shared *stage.Shared) (stage.Reason, error) {
	window := shared.Config.Correlation.WindowSeconds
	outputs := func(cl night.CombinationLayout) []string { return []string{cl.PairsPath()} }
	return stage.ForCombinations(ctx, unit, shared, h.Step(), unit.Pairs(), outputs,
		func(ctx context.Context, cl night.CombinationLayout) (stage.Reason, error) {
			members := cl.Combination.Members()
			lists := make([][]stereo.DetectionEvent, len(members))
			for i, s := range members {
				events, err := stereo.LoadDownlist(unit.Layout.DownlistPath(s), s)
				if errors.Is(err, fs.ErrNotExist) {
					return stage.Haltf("missing downlist for %s", s.Name()), nil
				}
				if err != nil {
					return stage.Continue, err
				}
				lists[i] = events
			}
			records := correlate.Correlate(cl.Combination, lists[0], lists[1], window)
			if err := writeMatches(cl.PairsPath(), records); err != nil {
				return stage.Continue, err
			}
			summary := correlate.Summarize(records)
			shared.LoggerFor(ctx).Info("pairs correlated",
				logging.String(logging.FieldEventType, "pairs_correlated"),
				logging.Int("candidates_a", len(lists[0])),
				logging.Int("candidates_b", len(lists[1])),
				logging.Int("matches", summary.Count),
				logging.Float64("mean_spread_s", summary.MeanSpread),
				logging.Float64("std_spread_s", summary.StdSpread),
				logging.Float64("max_spread_s", summary.MaxSpread),
			)
			return stage.Continue, nil
		})
}
