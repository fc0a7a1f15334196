package matching

import (
	"context"
	"slices"

	"stereomatch/internal/checkpoint"
	"stereomatch/internal/correlate"
	"stereomatch/internal/logging"
	"stereomatch/internal/stage"
	"stereomatch/internal/stereo"
)

// TriplesHandler promotes events seen by all three stations out of the pair
// lists. Nights without a triple copy the pair lists unchanged.
type TriplesHandler struct{}

// NewTriplesHandler constructs the isolate-triples step.
func NewTriplesHandler() *TriplesHandler { return &TriplesHandler{} }

// Step implements stage.Handler.
func (h *TriplesHandler) Step() stage.StepName { return stage.IsolateTriples }

// HealthCheck implements stage.Handler.
func (h *TriplesHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(h.Step().String())
}

// Run writes coincidences.txt for every combination of the night.
func (h *TriplesHandler) Run(ctx context.Context, unit *stage.Unit, shared *stage.Shared) (stage.Reason, error) {
	combos := unit.Combinations()
	outputs := make([]string, len(combos))
	for i, c := range combos {
		outputs[i] = unit.Layout.Combination(c).CoincidencesPath()
	}
	dir := unit.Layout.CheckpointDir()
	run, err := shared.NeedsRun(ctx, unit.Key(checkpoint.ScopeNight, h.Step()), dir, outputs...)
	if err != nil || !run {
		return stage.Continue, err
	}

	lists := map[stereo.Combination][]stereo.MatchRecord{}
	for _, c := range unit.Pairs() {
		records, reason, err := loadMatches(unit.Layout.Combination(c).PairsPath(), c)
		if err != nil || reason.Halts() {
			return reason, err
		}
		lists[c] = records
	}

	if slices.Contains(combos, stereo.Triple) {
		if err := h.isolate(ctx, shared, lists); err != nil {
			return stage.Continue, err
		}
	}

	for _, c := range combos {
		if err := writeMatches(unit.Layout.Combination(c).CoincidencesPath(), lists[c]); err != nil {
			return stage.Continue, err
		}
	}
	if err := shared.Markers.Mark(ctx, unit.Key(checkpoint.ScopeNight, h.Step()), dir); err != nil {
		return stage.Continue, err
	}
	return stage.Continue, nil
}

// isolate promotes records common to the two pairs sharing the plane station
// and removes exact sub-tuple copies from the remaining pair.
func (h *TriplesHandler) isolate(ctx context.Context, shared *stage.Shared, lists map[stereo.Combination][]stereo.MatchRecord) error {
	triples, bm, lm, err := correlate.IsolateTriples(lists[stereo.PairBM], lists[stereo.PairLM])
	if err != nil {
		return err
	}
	bl, missed := correlate.RemovePromoted(lists[stereo.PairBL], triples)
	logger := shared.LoggerFor(ctx)
	logger.Info("triples isolated",
		logging.String(logging.FieldEventType, "triples_isolated"),
		logging.Int("triples", len(triples)),
		logging.Int("bm_remaining", len(bm)),
		logging.Int("lm_remaining", len(lm)),
		logging.Int("bl_remaining", len(bl)),
	)
	if missed > 0 {
		logging.WarnWithContext(logger, "triples without matching bl pair", "triple_bl_unmatched",
			logging.Int("count", missed),
			logging.String(logging.FieldErrorHint, "br and lr detections were not paired directly; the bl list keeps its records"),
			logging.String(logging.FieldImpact, "these events may also be reconstructed as bl pairs"),
		)
	}
	lists[stereo.PairBM] = bm
	lists[stereo.PairLM] = lm
	lists[stereo.PairBL] = bl
	lists[stereo.Triple] = triples
	return nil
}
