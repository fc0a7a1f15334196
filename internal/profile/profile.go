// Package profile submits per-station profile reconstruction jobs for every
// validated event to the batch scheduler.
//
// The step never waits for jobs. It submits what is missing, up to the
// scheduler's outstanding-job ceiling, and halts with a reason that tells the
// operator to re-run later. A combination is checkpointed once every one of
// its outputs exists.
package profile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"stereomatch/internal/config"
	"stereomatch/internal/fileutil"
	"stereomatch/internal/jobs"
	"stereomatch/internal/logging"
	"stereomatch/internal/metrics"
	"stereomatch/internal/night"
	"stereomatch/internal/plausibility"
	"stereomatch/internal/services"
	"stereomatch/internal/services/scheduler"
	"stereomatch/internal/stage"
	"stereomatch/internal/stereo"
)

// Submitter hands a job to the batch scheduler.
type Submitter interface {
	Submit(ctx context.Context, req scheduler.Request) (jobs.Job, error)
}

// Commands builds the reconstruction command lines.
type Commands interface {
	TubeProfileCommand(station stereo.Station, input, geometry, output string, extra []string) []string
	PlaneProfileCommand(input, output string, extra []string) []string
}

// Label returns the output label of the program reconstructing s.
func Label(cfg config.Profile, s stereo.Station) string {
	if s.Kind() == stereo.KindPlane {
		return cfg.PlaneLabel
	}
	return cfg.TubeLabel
}

// Handler is the reconstruct-profiles step.
type Handler struct {
	submitter Submitter
	commands  Commands
	binaries  []string
}

// NewHandler constructs the step. binaries name the scheduler programs for
// health checks.
func NewHandler(submitter Submitter, commands Commands, binaries ...string) *Handler {
	return &Handler{submitter: submitter, commands: commands, binaries: binaries}
}

// Step implements stage.Handler.
func (h *Handler) Step() stage.StepName { return stage.ReconstructProfiles }

// NeedsJobSnapshot implements stage.JobAware.
func (h *Handler) NeedsJobSnapshot() bool { return true }

// HealthCheck implements stage.Handler.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	return stage.CheckBinaries(h.Step(), h.binaries...)
}

// tally counts the state of every expected output.
type tally struct {
	done      int
	running   int
	failed    int
	submitted int
	deferred  int
}

func (t *tally) add(o tally) {
	t.done += o.done
	t.running += o.running
	t.failed += o.failed
	t.submitted += o.submitted
	t.deferred += o.deferred
}

func (t tally) complete() bool {
	return t.running == 0 && t.failed == 0 && t.submitted == 0 && t.deferred == 0
}

// Run submits missing reconstructions of every combination.
func (h *Handler) Run(ctx context.Context, unit *stage.Unit, shared *stage.Shared) (stage.Reason, error) {
	var total tally
	for _, c := range unit.Combinations() {
		cl := unit.Layout.Combination(c)
		validated, err := plausibility.LoadValidated(cl.ValidatedPath())
		if errors.Is(err, fs.ErrNotExist) {
			return stage.Haltf("missing %s/validated.txt", c), nil
		}
		if err != nil {
			return stage.Continue, err
		}
		run, err := shared.NeedsRun(ctx, unit.Key(string(c), h.Step()), cl.CheckpointDir(), Outputs(shared.Config.Profile, cl, validated)...)
		if err != nil {
			return stage.Continue, err
		}
		if !run {
			continue
		}
		cctx := services.WithCombination(ctx, string(c))
		t, err := h.combination(cctx, unit, shared, cl, validated)
		total.add(t)
		if err != nil {
			h.record(shared, total)
			return stage.Continue, err
		}
		if t.complete() {
			if err := shared.Markers.Mark(cctx, unit.Key(string(c), h.Step()), cl.CheckpointDir()); err != nil {
				return stage.Continue, err
			}
		}
	}
	h.record(shared, total)
	return total.reason(shared.Jobs), nil
}

func (h *Handler) record(shared *stage.Shared, t tally) {
	if t.submitted == 0 {
		return
	}
	shared.Submitted += t.submitted
	metrics.AddSubmitted(t.submitted)
}

func (t tally) reason(tracker *jobs.Tracker) stage.Reason {
	var parts []string
	if t.submitted > 0 {
		parts = append(parts, fmt.Sprintf("submitted %d profile jobs", t.submitted))
	}
	if t.deferred > 0 {
		parts = append(parts, fmt.Sprintf("%d wait for scheduler capacity (ceiling %d)", t.deferred, tracker.Ceiling()))
	}
	if t.running > 0 {
		parts = append(parts, fmt.Sprintf("%d still running", t.running))
	}
	if len(parts) > 0 {
		return stage.Reason(strings.Join(parts, ", ") + "; re-run when complete")
	}
	if t.failed > 0 {
		return stage.Haltf("%d profile jobs failed; re-run with retry level 1 to resubmit", t.failed)
	}
	return stage.Continue
}

func (h *Handler) combination(ctx context.Context, unit *stage.Unit, shared *stage.Shared, cl night.CombinationLayout, validated []plausibility.Validated) (tally, error) {
	var t tally
	logger := shared.LoggerFor(ctx)
	cfg := shared.Config.Profile
	for _, v := range validated {
		for _, s := range cl.Combination.Members() {
			label := Label(cfg, s)
			out := cl.ProfilePath(s, v.Index, label)
			if fileutil.Exists(out) {
				t.done++
				continue
			}
			if job, ok := shared.Jobs.Producing(out); ok {
				t.running++
				logger.Debug("profile job running",
					logging.String("output", out),
					logging.Int64("job_id", job.ID),
					logging.String("status", job.Status),
				)
				continue
			}
			stdout, stderr := cl.ProfileLogPaths(s, v.Index, label)
			if fileutil.Exists(stderr) && shared.Retry == stage.RetryTrust {
				t.failed++
				logging.ErrorWithContext(logger, "profile job left no output", "profile_failed",
					logging.String("output", out),
					logging.String("log", stderr),
					logging.String(logging.FieldErrorHint, "inspect the job log, then re-run with retry level 1"),
				)
				continue
			}
			if shared.Jobs.Headroom() <= 0 {
				t.deferred++
				continue
			}
			job, err := h.submit(ctx, unit, shared, cl, s, v.Index, out, stdout, stderr)
			if err != nil {
				return t, err
			}
			shared.Jobs.Note(job)
			t.submitted++
			logger.Info("profile job submitted",
				logging.String(logging.FieldEventType, "profile_submitted"),
				logging.String("output", out),
				logging.Int64("job_id", job.ID),
			)
		}
	}
	return t, nil
}

func (h *Handler) submit(ctx context.Context, unit *stage.Unit, shared *stage.Shared, cl night.CombinationLayout, s stereo.Station, index int, out, stdout, stderr string) (jobs.Job, error) {
	for _, stale := range []string{stdout, stderr} {
		if err := fileutil.RemoveIfExists(stale); err != nil {
			return jobs.Job{}, err
		}
	}
	for _, dir := range []string{cl.LogsDir(), cl.ProfilesDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return jobs.Job{}, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	cfg := shared.Config.Profile
	input := cl.GeometryPath(s, index)
	var cmd []string
	if s.Kind() == stereo.KindPlane {
		cmd = h.commands.PlaneProfileCommand(input, out, cfg.PlaneArgs)
	} else {
		cmd = h.commands.TubeProfileCommand(s, input, unit.Layout.GeometryFile(s), out, cfg.TubeArgs)
	}
	return h.submitter.Submit(ctx, scheduler.Request{
		Name:    out,
		Command: cmd,
		Stdout:  stdout,
		Stderr:  stderr,
		Dir:     cl.Dir(),
	})
}

// Outputs lists the profile outputs a completed combination holds.
func Outputs(cfg config.Profile, cl night.CombinationLayout, validated []plausibility.Validated) []string {
	var out []string
	for _, v := range validated {
		for _, s := range cl.Combination.Members() {
			out = append(out, cl.ProfilePath(s, v.Index, Label(cfg, s)))
		}
	}
	return out
}
