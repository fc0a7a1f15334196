package matching

import (
	"context"

	"stereomatch/internal/correlate"
	"stereomatch/internal/logging"
	"stereomatch/internal/metrics"
	"stereomatch/internal/night"
	"stereomatch/internal/stage"
	"stereomatch/internal/stereo"
)

// RejectContamination is the rejection reason recorded for laser shots.
const RejectContamination = "contamination"

// CLFHandler splits each combination's coincidences into active matches and
// calibration laser rejections.
type CLFHandler struct{}

// NewCLFHandler constructs the remove-clf step.
func NewCLFHandler() *CLFHandler { return &CLFHandler{} }

// Step implements stage.Handler.
func (h *CLFHandler) Step() stage.StepName { return stage.RemoveCLF }

// HealthCheck implements stage.Handler.
func (h *CLFHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(h.Step().String())
}

// Run writes matches.txt and rejectclf.txt for every combination.
func (h *CLFHandler) Run(ctx context.Context, unit *stage.Unit, shared *stage.Shared) (stage.Reason, error) {
	c := shared.Config.Contamination
	rule := correlate.ContaminationRule{Period: c.PeriodSeconds, Before: c.BeforeSeconds, After: c.AfterSeconds}
	outputs := func(cl night.CombinationLayout) []string {
		return []string{cl.MatchesPath(), cl.RejectCLFPath()}
	}
	return stage.PerCombination(ctx, unit, shared, h.Step(), outputs,
		func(ctx context.Context, cl night.CombinationLayout) (stage.Reason, error) {
			records, reason, err := loadMatches(cl.CoincidencesPath(), cl.Combination)
			if err != nil || reason.Halts() {
				return reason, err
			}
			kept, rejected := correlate.FilterContaminated(records, rule)
			if err := writeMatches(cl.RejectCLFPath(), rejected); err != nil {
				return stage.Continue, err
			}
			if err := writeMatches(cl.MatchesPath(), kept); err != nil {
				return stage.Continue, err
			}
			logger := shared.LoggerFor(ctx)
			for _, rec := range rejected {
				logger.Info("match rejected",
					logging.String(logging.FieldEventType, "match_rejected"),
					logging.String("reason", RejectContamination),
					logging.String("record", stereo.FormatMatch(rec)),
				)
			}
			logger.Info("contamination removed",
				logging.String(logging.FieldEventType, "contamination_removed"),
				logging.Int("kept", len(kept)),
				logging.Int("rejected", len(rejected)),
			)
			metrics.AddMatches(string(cl.Combination), len(kept))
			metrics.AddRejections(RejectContamination, len(rejected))
			return stage.Continue, nil
		})
}
