// Package consolidate merges the per-station profile outputs of every
// validated event, dumps them to text and rebuilds the night's accumulation
// files. The night is complete once every combination is consolidated.
package consolidate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"stereomatch/internal/fileutil"
	"stereomatch/internal/logging"
	"stereomatch/internal/night"
	"stereomatch/internal/plausibility"
	"stereomatch/internal/profile"
	"stereomatch/internal/services"
	"stereomatch/internal/stage"
	"stereomatch/internal/stereo"
)

const (
	tupleSuffix = ".tuple.txt"
	profSuffix  = ".prof.txt"
)

// Tools merges artifacts and renders them as text.
type Tools interface {
	Merge(ctx context.Context, a, b, out string) error
	Recombine(ctx context.Context, out string, inputs ...string) error
	DumpTuple(ctx context.Context, file string) ([]byte, error)
	DumpProfile(ctx context.Context, file string) ([]byte, error)
}

// Handler is the consolidate step.
type Handler struct {
	tools    Tools
	binaries []string
}

// NewHandler constructs the step. binaries name the collaborators for
// health checks.
func NewHandler(tools Tools, binaries ...string) *Handler {
	return &Handler{tools: tools, binaries: binaries}
}

// Step implements stage.Handler.
func (h *Handler) Step() stage.StepName { return stage.Consolidate }

// NeedsJobSnapshot implements stage.JobAware.
func (h *Handler) NeedsJobSnapshot() bool { return true }

// HealthCheck implements stage.Handler.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	return stage.CheckBinaries(h.Step(), h.binaries...)
}

// EventTextPath names the per-event text file of kind ("tuple" or "prof").
func EventTextPath(asciiDir string, c stereo.Combination, index int, kind string) string {
	return filepath.Join(asciiDir, fmt.Sprintf("n%d.%05d.%s.txt", c.Ordinal(), index, kind))
}

// Run consolidates every ready event and reports the night complete once all
// combinations are done.
func (h *Handler) Run(ctx context.Context, unit *stage.Unit, shared *stage.Shared) (stage.Reason, error) {
	cfg := shared.Config.Profile
	asciiDir := unit.Layout.ASCIIDir(cfg.TubeLabel, cfg.PlaneLabel)
	complete := unit.Layout.CompletePath(cfg.TubeLabel, cfg.PlaneLabel)

	var waiting, failed int
	ran := false
	for _, c := range unit.Combinations() {
		cl := unit.Layout.Combination(c)
		run, err := shared.NeedsRun(ctx, unit.Key(string(c), h.Step()), cl.CheckpointDir(), complete)
		if err != nil {
			return stage.Continue, err
		}
		if !run {
			continue
		}
		validated, err := plausibility.LoadValidated(cl.ValidatedPath())
		if errors.Is(err, fs.ErrNotExist) {
			return stage.Haltf("missing %s/validated.txt", c), nil
		}
		if err != nil {
			return stage.Continue, err
		}
		ran = true
		cctx := services.WithCombination(ctx, string(c))
		w, f, err := h.combination(cctx, shared, cl, asciiDir, validated)
		if err != nil {
			return stage.Continue, err
		}
		waiting += w
		failed += f
		if w == 0 && f == 0 {
			if err := shared.Markers.Mark(cctx, unit.Key(string(c), h.Step()), cl.CheckpointDir()); err != nil {
				return stage.Continue, err
			}
		}
	}
	if ran {
		if err := accumulate(asciiDir); err != nil {
			return stage.Continue, err
		}
	}

	for _, c := range unit.Combinations() {
		if !shared.Markers.Done(unit.Layout.Combination(c).CheckpointDir(), h.Step().String()) {
			if failed > 0 {
				return stage.Haltf("%d events failed profile verification, %d waiting for profile outputs", failed, waiting), nil
			}
			return stage.Haltf("%d events waiting for profile outputs", waiting), nil
		}
	}
	if !fileutil.Exists(complete) || shared.Retry == stage.RetryForce {
		if err := fileutil.WriteFileAtomic(complete, nil, 0o644); err != nil {
			return stage.Continue, err
		}
		shared.LoggerFor(ctx).Info("night complete",
			logging.String(logging.FieldEventType, "night_complete"),
			logging.String("ascii_dir", asciiDir),
		)
	}
	return stage.Complete, nil
}

// combination consolidates the ready events of one combination and counts
// those still waiting and those whose jobs failed.
func (h *Handler) combination(ctx context.Context, shared *stage.Shared, cl night.CombinationLayout, asciiDir string, validated []plausibility.Validated) (waiting, failed int, err error) {
	logger := shared.LoggerFor(ctx)
	cfg := shared.Config.Profile
	force := shared.Retry == stage.RetryForce
	for _, v := range validated {
		outputs := map[stereo.Station]string{}
		ready := true
		for _, s := range cl.Combination.Members() {
			label := profile.Label(cfg, s)
			out := cl.ProfilePath(s, v.Index, label)
			stdout, stderr := cl.ProfileLogPaths(s, v.Index, label)
			if !fileutil.AllExist(out, stdout, stderr) {
				if job, running := shared.Jobs.Producing(out); running {
					logger.Debug("profile output in production",
						logging.String("output", out),
						logging.Int64("job_id", job.ID),
					)
				} else {
					logger.Info("profile output missing",
						logging.String(logging.FieldEventType, "profile_missing"),
						logging.String("output", out),
					)
				}
				waiting++
				ready = false
				break
			}
			if err := verifyLog(stderr, s.Kind()); err != nil {
				logging.ErrorWithContext(logger, "profile verification failed", "profile_verification_failed",
					logging.String("log", stderr),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "inspect the job log, remove the output and re-run with retry level 1"),
				)
				failed++
				ready = false
				break
			}
			outputs[s] = out
		}
		if !ready {
			continue
		}
		event, err := h.merge(ctx, cl, v.Index, outputs, cfg.TubeLabel, cfg.PlaneLabel, force)
		if err != nil {
			return waiting, failed, err
		}
		if err := h.dump(ctx, asciiDir, cl.Combination, v.Index, event, force); err != nil {
			return waiting, failed, err
		}
	}
	logger.Info("combination consolidated",
		logging.String(logging.FieldEventType, "combination_consolidated"),
		logging.Int("events", len(validated)),
		logging.Int("waiting", waiting),
		logging.Int("failed", failed),
	)
	return waiting, failed, nil
}

// merge joins the tube outputs, then splices in the plane station's profile.
func (h *Handler) merge(ctx context.Context, cl night.CombinationLayout, index int, outputs map[stereo.Station]string, tubeLabel, planeLabel string, force bool) (string, error) {
	br, hasBR := outputs[stereo.BlackRock]
	lr, hasLR := outputs[stereo.LongRidge]
	var tube string
	switch {
	case hasBR && hasLR:
		tube = cl.MergedPath(index, tubeLabel)
		if force || !fileutil.Exists(tube) {
			if err := h.tools.Merge(ctx, br, lr, tube); err != nil {
				return "", err
			}
		}
	case hasBR:
		tube = br
	case hasLR:
		tube = lr
	default:
		return "", fmt.Errorf("%s event %d has no tube station output", cl.Combination, index)
	}
	md, ok := outputs[stereo.MiddleDrum]
	if !ok {
		return tube, nil
	}
	united := cl.MergedPath(index, tubeLabel+"."+planeLabel)
	if force || !fileutil.Exists(united) {
		if err := h.tools.Recombine(ctx, united, tube, md); err != nil {
			return "", err
		}
	}
	return united, nil
}

func (h *Handler) dump(ctx context.Context, asciiDir string, c stereo.Combination, index int, event string, force bool) error {
	tuplePath := EventTextPath(asciiDir, c, index, "tuple")
	profPath := EventTextPath(asciiDir, c, index, "prof")
	if !force && fileutil.AllExist(tuplePath, profPath) {
		return nil
	}
	tuple, err := h.tools.DumpTuple(ctx, event)
	if err != nil {
		return err
	}
	prof, err := h.tools.DumpProfile(ctx, event)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(tuplePath, tuple, 0o644); err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(profPath, prof, 0o644)
}

// accumulate rewrites tuple.txt and prof.txt from every per-event file in
// name order.
func accumulate(asciiDir string) error {
	entries, err := os.ReadDir(asciiDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "n") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, suffix := range []string{tupleSuffix, profSuffix} {
		var buf bytes.Buffer
		for _, name := range names {
			if !strings.HasSuffix(name, suffix) {
				continue
			}
			data, err := os.ReadFile(filepath.Join(asciiDir, name))
			if err != nil {
				return err
			}
			buf.Write(data)
		}
		if err := fileutil.WriteFileAtomic(filepath.Join(asciiDir, strings.TrimPrefix(suffix, ".")), buf.Bytes(), 0o644); err != nil {
			return err
		}
	}
	return nil
}
