package stage

import (
	"context"
	"log/slog"

	"stereomatch/internal/checkpoint"
	"stereomatch/internal/config"
	"stereomatch/internal/fileutil"
	"stereomatch/internal/jobs"
	"stereomatch/internal/logging"
	"stereomatch/internal/night"
	"stereomatch/internal/services"
	"stereomatch/internal/stereo"
)

// Handler is one pipeline step.
type Handler interface {
	Step() StepName
	// Run processes the night and returns Continue or a halting reason.
	// Expected conditions are reasons; errors are unexpected faults.
	Run(ctx context.Context, unit *Unit, shared *Shared) (Reason, error)
	HealthCheck(ctx context.Context) Health
}

// JobAware is implemented by handlers that read the scheduler snapshot, so
// the coordinator refreshes it only before those steps.
type JobAware interface {
	NeedsJobSnapshot() bool
}

// Unit is the night being processed.
type Unit struct {
	Night   night.Night
	Layout  night.Layout
	Sources night.Sources
}

// Combinations returns the combinations the night's stations can form.
func (u *Unit) Combinations() []stereo.Combination {
	return u.Sources.Combinations()
}

// Key builds the checkpoint key of step in scope.
func (u *Unit) Key(scope string, step StepName) checkpoint.Key {
	return checkpoint.Key{Night: u.Night.Key(), Scope: scope, Stage: step.String()}
}

// Shared is the context threaded through every step. The coordinator owns
// and refreshes it; steps only write Submitted.
type Shared struct {
	Config  *config.Config
	Retry   RetryLevel
	RunID   string
	Logger  *slog.Logger
	Markers *checkpoint.Markers
	Jobs    *jobs.Tracker

	// Submitted counts the scheduler jobs submitted during this invocation.
	Submitted int
}

// LoggerFor returns the shared logger enriched with ids from ctx.
func (s *Shared) LoggerFor(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, s.Logger)
}

// NeedsRun applies the retry policy to one checkpoint. A checkpoint that
// is about to be recomputed is cleared first, so an interrupted rerun
// leaves no stale marker behind.
func (s *Shared) NeedsRun(ctx context.Context, key checkpoint.Key, dir string, outputs ...string) (bool, error) {
	done := s.Markers.Done(dir, key.Stage)
	if !ShouldRun(s.Retry, done, fileutil.AllExist(outputs...)) {
		return false, nil
	}
	if done {
		if err := s.Markers.Clear(ctx, key, dir); err != nil {
			return false, err
		}
	}
	return true, nil
}

// PerCombination runs fn for every combination of the night whose checkpoint
// calls for it, marking each one done after fn returns Continue. outputs
// lists the files a completed combination must hold.
func PerCombination(
	ctx context.Context,
	unit *Unit,
	shared *Shared,
	step StepName,
	outputs func(night.CombinationLayout) []string,
	fn func(context.Context, night.CombinationLayout) (Reason, error),
) (Reason, error) {
	return ForCombinations(ctx, unit, shared, step, unit.Combinations(), outputs, fn)
}

// ForCombinations is PerCombination restricted to combos.
func ForCombinations(
	ctx context.Context,
	unit *Unit,
	shared *Shared,
	step StepName,
	combos []stereo.Combination,
	outputs func(night.CombinationLayout) []string,
	fn func(context.Context, night.CombinationLayout) (Reason, error),
) (Reason, error) {
	for _, c := range combos {
		cl := unit.Layout.Combination(c)
		cctx := services.WithCombination(ctx, string(c))
		run, err := shared.NeedsRun(cctx, unit.Key(string(c), step), cl.CheckpointDir(), outputs(cl)...)
		if err != nil {
			return Continue, err
		}
		if !run {
			continue
		}
		reason, err := fn(cctx, cl)
		if err != nil || reason.Halts() {
			return reason, err
		}
		if err := shared.Markers.Mark(cctx, unit.Key(string(c), step), cl.CheckpointDir()); err != nil {
			return Continue, err
		}
	}
	return Continue, nil
}

// Pairs returns the night's two-station combinations.
func (u *Unit) Pairs() []stereo.Combination {
	var out []stereo.Combination
	for _, c := range u.Combinations() {
		if !c.IsTriple() {
			out = append(out, c)
		}
	}
	return out
}
