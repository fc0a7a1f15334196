package dsttools

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"stereomatch/internal/config"
	"stereomatch/internal/fileutil"
	"stereomatch/internal/logging"
	"stereomatch/internal/procexec"
	"stereomatch/internal/services"
	"stereomatch/internal/stereo"
)

// Option configures the client.
type Option func(*Client)

// WithRunner injects a custom process runner (primarily for tests).
func WithRunner(r procexec.Runner) Option {
	return func(c *Client) {
		if r != nil {
			c.runner = r
		}
	}
}

// WithLogger sets the logger used for collaborator warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client runs collaborator programs.
type Client struct {
	tools  config.Tools
	runner procexec.Runner
	logger *slog.Logger
}

// New constructs a client for the configured tool names.
func New(tools config.Tools, opts ...Option) *Client {
	c := &Client{
		tools:  tools,
		runner: procexec.ExecRunner{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "dsttools")
	return c
}

// Binaries lists every collaborator executable.
func (c *Client) Binaries() []string {
	t := c.tools
	return []string{
		t.DetectionDump, t.Split, t.PlaneSolver, t.PlaneFit, t.Inspect, t.EventMerge,
		t.BankSum, t.TupleDump, t.ProfileDump, t.TubeProfile, t.PlaneProfile,
	}
}

// Downlist dumps the candidate detections of one station's source files,
// sorted by timestamp.
func (c *Client) Downlist(ctx context.Context, station stereo.Station, files []string) ([]stereo.DetectionEvent, error) {
	if len(files) == 0 {
		return nil, services.Wrap(services.ErrMissingInput, "dsttools", "downlist", "No source files for "+station.Name(), nil)
	}
	args := append([]string{"-" + string(station)}, files...)
	res, err := c.run(ctx, procexec.Invocation{Binary: c.tools.DetectionDump, Args: args})
	if err != nil {
		return nil, err
	}
	lines := res.StdoutLines()
	events := make([]stereo.DetectionEvent, 0, len(lines))
	for i, line := range lines {
		e, err := stereo.ParseEvent(station, strings.Fields(line))
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "dsttools", "downlist",
				fmt.Sprintf("Malformed detection dump line %d", i+1), err)
		}
		events = append(events, e)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp < events[j].Timestamp })
	return events, nil
}

// Split extracts the events at positions from src in one pass. The outputs
// are renamed to dests, which maps each wanted position to its destination.
func (c *Client) Split(ctx context.Context, src string, dests map[int]string) error {
	if len(dests) == 0 {
		return nil
	}
	positions := make([]int, 0, len(dests))
	for pos := range dests {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	first := filepath.Dir(dests[positions[0]])
	if err := os.MkdirAll(first, 0o755); err != nil {
		return fmt.Errorf("create event directory: %w", err)
	}
	work, err := os.MkdirTemp(first, ".split-*")
	if err != nil {
		return fmt.Errorf("create split directory: %w", err)
	}
	defer os.RemoveAll(work)

	var want strings.Builder
	for _, pos := range positions {
		fmt.Fprintf(&want, "%d\n", pos)
	}
	wantList := filepath.Join(work, "want.txt")
	if err := os.WriteFile(wantList, []byte(want.String()), 0o644); err != nil {
		return fmt.Errorf("write want list: %w", err)
	}
	base := filepath.Join(work, "event")
	if _, err := c.run(ctx, procexec.Invocation{
		Binary: c.tools.Split,
		Args:   []string{"-w", wantList, "-ob", base, src},
	}); err != nil {
		return err
	}
	for i, pos := range positions {
		produced := fmt.Sprintf("%s-%05d.dst.gz", base, i)
		if !fileutil.Exists(produced) {
			return services.Wrap(services.ErrExternalTool, "dsttools", "split",
				fmt.Sprintf("%s produced no output for position %d of %s", c.tools.Split, pos, filepath.Base(src)), nil)
		}
		if err := fileutil.MoveFile(produced, dests[pos]); err != nil {
			return fmt.Errorf("place extracted event: %w", err)
		}
	}
	return nil
}

// PlaneRequest describes one pairwise geometry solution.
type PlaneRequest struct {
	Inputs   [2]string
	Geometry [2]string
	Outputs  [2]string
	// LogBase receives the solver's stdout and stderr as LogBase.out and
	// LogBase.err.
	LogBase string
}

// PlaneSolution is what the coordinator reads back from a solver run.
type PlaneSolution struct {
	// Angle between the two detector planes, in degrees.
	Angle float64
}

// SolvePlane runs the pairwise solver.
func (c *Client) SolvePlane(ctx context.Context, req PlaneRequest) (PlaneSolution, error) {
	var solution PlaneSolution
	err := c.produce(req.Outputs[:], func(tmp []string) error {
		inv := procexec.Invocation{
			Binary: c.tools.PlaneSolver,
			Args: []string{
				"-o", tmp[0], "-o", tmp[1],
				req.Inputs[0], req.Inputs[1], req.Geometry[0], req.Geometry[1],
			},
		}
		res, runErr := c.runner.Run(ctx, inv)
		if req.LogBase != "" {
			if err := fileutil.WriteFileAtomic(req.LogBase+".out", res.Stdout, 0o644); err != nil {
				return err
			}
			if err := fileutil.WriteFileAtomic(req.LogBase+".err", res.Stderr, 0o644); err != nil {
				return err
			}
		}
		if runErr != nil {
			return services.Wrap(services.ErrExternalTool, "dsttools", "solve plane", inv.String(), runErr)
		}
		c.warnStderr(ctx, inv, res)
		angle, err := firstValue(res.StdoutLines(), "n dot n")
		if err != nil {
			return services.Wrap(services.ErrExternalTool, "dsttools", "solve plane", "Solver log has no plane angle", err)
		}
		solution.Angle = angle
		return nil
	})
	return solution, err
}

// PlaneFitRequest describes one single-station plane fit.
type PlaneFitRequest struct {
	Input    string
	Geometry string
	Output   string
	LogBase  string
}

// FitPlane runs the plane station fit whose output replaces the raw event as
// solver input.
func (c *Client) FitPlane(ctx context.Context, req PlaneFitRequest) error {
	return c.produce([]string{req.Output}, func(tmp []string) error {
		inv := procexec.Invocation{
			Binary: c.tools.PlaneFit,
			Args:   []string{"-geo", req.Geometry, "-o", tmp[0], req.Input},
		}
		res, runErr := c.runner.Run(ctx, inv)
		if req.LogBase != "" {
			if err := fileutil.WriteFileAtomic(req.LogBase+".out", res.Stdout, 0o644); err != nil {
				return err
			}
			if err := fileutil.WriteFileAtomic(req.LogBase+".err", res.Stderr, 0o644); err != nil {
				return err
			}
		}
		if runErr != nil {
			return services.Wrap(services.ErrExternalTool, "dsttools", "fit plane", inv.String(), runErr)
		}
		c.warnStderr(ctx, inv, res)
		return nil
	})
}

// Column layout of a tube row in the plane bank dump.
const (
	flashFields    = 21
	flashSigmaCol  = 16
	flashStatusCol = 18
)

// IsFlash reports whether a tube station event looks like a flash trigger:
// more rejected tubes carry a higher signal than the best accepted tube
// than there are accepted tubes. Events without accepted tubes are not
// flashes.
func (c *Client) IsFlash(ctx context.Context, file string) (bool, error) {
	res, err := c.run(ctx, procexec.Invocation{
		Binary: c.tools.Inspect,
		Args:   []string{"+brplane", "+lrplane", file},
	})
	if err != nil {
		return false, err
	}
	var good, bad []float64
	for _, line := range res.StdoutLines() {
		fields := strings.Fields(line)
		if len(fields) != flashFields {
			continue
		}
		sigma, err := strconv.ParseFloat(fields[flashSigmaCol], 64)
		if err != nil {
			return false, services.Wrap(services.ErrExternalTool, "dsttools", "flash", "Unparseable tube signal in "+filepath.Base(file), err)
		}
		if fields[flashStatusCol] == "1" {
			good = append(good, sigma)
		} else {
			bad = append(bad, sigma)
		}
	}
	return FlashLike(good, bad), nil
}

// FlashLike applies the flash rule to the signals of accepted and rejected
// tubes.
func FlashLike(good, bad []float64) bool {
	if len(good) == 0 {
		return false
	}
	best := good[0]
	for _, g := range good[1:] {
		best = max(best, g)
	}
	higher := 0
	for _, b := range bad {
		if b > best {
			higher++
		}
	}
	return higher > len(good)
}

var planeBanks = map[stereo.Station]string{
	stereo.BlackRock:  "-brplane",
	stereo.LongRidge:  "-lrplane",
	stereo.MiddleDrum: "-fdplane",
}

// Durations reads the active and total durations of a pair's solution, in
// the order active A, active B, total A, total B.
func (c *Client) Durations(ctx context.Context, file string, pair stereo.Combination) ([4]float64, error) {
	var out [4]float64
	args := make([]string, 0, 4)
	for _, s := range pair.Members() {
		args = append(args, planeBanks[s])
	}
	args = append(args, "-stplane", file)
	res, err := c.run(ctx, procexec.Invocation{Binary: c.tools.Inspect, Args: args})
	if err != nil {
		return out, err
	}
	values := fieldsAfter(res.StdoutLines(), "uration")
	if len(values) < len(out) {
		return out, services.Wrap(services.ErrExternalTool, "dsttools", "durations",
			fmt.Sprintf("Expected 4 durations in %s, found %d", filepath.Base(file), len(values)), nil)
	}
	for i := range out {
		v, err := strconv.ParseFloat(values[i], 64)
		if err != nil {
			return out, services.Wrap(services.ErrExternalTool, "dsttools", "durations", "Unparseable duration", err)
		}
		out[i] = v
	}
	return out, nil
}

// Zenith reads the reconstructed trajectory zenith angle in degrees.
func (c *Client) Zenith(ctx context.Context, file string) (float64, error) {
	res, err := c.run(ctx, procexec.Invocation{Binary: c.tools.Inspect, Args: []string{"-stplane", file}})
	if err != nil {
		return 0, err
	}
	z, err := firstValue(res.StdoutLines(), "Zenith")
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "dsttools", "zenith", "No zenith in "+filepath.Base(file), err)
	}
	return z, nil
}

// Merge combines two per-station outputs of one event.
func (c *Client) Merge(ctx context.Context, a, b, out string) error {
	return c.produce([]string{out}, func(tmp []string) error {
		_, err := c.run(ctx, procexec.Invocation{Binary: c.tools.EventMerge, Args: []string{a, b, tmp[0]}})
		return err
	})
}

// Recombine sums the banks of inputs into out.
func (c *Client) Recombine(ctx context.Context, out string, inputs ...string) error {
	if len(inputs) == 0 {
		return services.Wrap(services.ErrValidation, "dsttools", "recombine", "No inputs", nil)
	}
	return c.produce([]string{out}, func(tmp []string) error {
		args := append([]string{"-f", "-o", tmp[0]}, inputs...)
		_, err := c.run(ctx, procexec.Invocation{Binary: c.tools.BankSum, Args: args})
		return err
	})
}

// DumpTuple renders an event file as tuple text.
func (c *Client) DumpTuple(ctx context.Context, file string) ([]byte, error) {
	res, err := c.run(ctx, procexec.Invocation{Binary: c.tools.TupleDump, Args: []string{file}})
	return res.Stdout, err
}

// DumpProfile renders an event file as profile text.
func (c *Client) DumpProfile(ctx context.Context, file string) ([]byte, error) {
	res, err := c.run(ctx, procexec.Invocation{Binary: c.tools.ProfileDump, Args: []string{file}})
	return res.Stdout, err
}

// TubeProfileCommand builds the scheduler command for a tube station.
func (c *Client) TubeProfileCommand(station stereo.Station, input, geometry, output string, extra []string) []string {
	cmd := []string{c.tools.TubeProfile, "-o", output, "-geo", geometry, "-force_" + string(station)}
	cmd = append(cmd, extra...)
	return append(cmd, input)
}

// PlaneProfileCommand builds the scheduler command for the plane station.
func (c *Client) PlaneProfileCommand(input, output string, extra []string) []string {
	cmd := []string{c.tools.PlaneProfile}
	cmd = append(cmd, extra...)
	return append(cmd, "-o", output, input)
}

func (c *Client) run(ctx context.Context, inv procexec.Invocation) (procexec.Result, error) {
	res, err := c.runner.Run(ctx, inv)
	if err != nil {
		return res, services.Wrap(services.ErrExternalTool, "dsttools", filepath.Base(inv.Binary), inv.String(), err)
	}
	c.warnStderr(ctx, inv, res)
	return res, nil
}

func (c *Client) warnStderr(ctx context.Context, inv procexec.Invocation, res procexec.Result) {
	stderr := res.StderrText()
	if stderr == "" {
		return
	}
	logging.WarnWithContext(logging.WithContext(ctx, c.logger), "collaborator wrote to stderr", "collaborator_stderr",
		logging.String("binary", inv.Binary),
		logging.String("stderr", stderr),
		logging.Alert("anomalous_output"),
		logging.String(logging.FieldErrorHint, "inspect the collaborator output; the step continues"),
		logging.String(logging.FieldImpact, "none unless outputs are missing"),
	)
}

// produce runs fn against temporary siblings of outputs and renames them into
// place only when fn succeeds and every temporary output exists.
func (c *Client) produce(outputs []string, fn func(tmp []string) error) error {
	tmp := make([]string, len(outputs))
	for i, out := range outputs {
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		tmp[i] = filepath.Join(filepath.Dir(out), ".tmp-"+filepath.Base(out))
		_ = os.Remove(tmp[i])
	}
	cleanup := func() {
		for _, t := range tmp {
			_ = os.Remove(t)
		}
	}
	if err := fn(tmp); err != nil {
		cleanup()
		return err
	}
	for i, t := range tmp {
		if !fileutil.Exists(t) {
			cleanup()
			return services.Wrap(services.ErrExternalTool, "dsttools", "produce",
				"Collaborator did not write "+filepath.Base(outputs[i]), nil)
		}
	}
	for i, t := range tmp {
		if err := os.Rename(t, outputs[i]); err != nil {
			cleanup()
			return fmt.Errorf("place %s: %w", outputs[i], err)
		}
	}
	return nil
}

// firstValue parses the last field of the first line containing marker.
func firstValue(lines []string, marker string) (float64, error) {
	values := fieldsAfter(lines, marker)
	if len(values) == 0 {
		return 0, fmt.Errorf("no line contains %q", marker)
	}
	return strconv.ParseFloat(values[0], 64)
}

// fieldsAfter returns the last field of every line containing marker.
func fieldsAfter(lines []string, marker string) []string {
	var out []string
	for _, line := range lines {
		if !strings.Contains(line, marker) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		out = append(out, fields[len(fields)-1])
	}
	return out
}
