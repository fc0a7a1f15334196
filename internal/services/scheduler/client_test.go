package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"stereomatch/internal/config"
	"stereomatch/internal/jobs"
	"stereomatch/internal/procexec"
	"stereomatch/internal/services"
)

type recordingRunner struct {
	calls  []procexec.Invocation
	result procexec.Result
	err    error
}

func (r *recordingRunner) Run(_ context.Context, inv procexec.Invocation) (procexec.Result, error) {
	r.calls = append(r.calls, inv)
	return r.result, r.err
}

func newClient(t *testing.T, runner procexec.Runner) *Client {
	t.Helper()
	cfg := config.Default()
	c, err := New(cfg.Scheduler, WithRunner(runner))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestSubmitExpandsTemplate(t *testing.T) {
	runner := &recordingRunner{result: procexec.Result{Stdout: []byte("4242;cluster\n")}}
	c := newClient(t, runner)

	job, err := c.Submit(context.Background(), Request{
		Name:    "/n/bl/profiles/br-00001.tbst.dst.gz",
		Command: []string{"fdtubeprofile", "-o", "/n/bl/profiles/br-00001.tbst.dst.gz", "in file.dst.gz"},
		Stdout:  "/n/bl/logs/br-00001.tbst.out",
		Stderr:  "/n/bl/logs/br-00001.tbst.err",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.ID != 4242 || job.Name != "/n/bl/profiles/br-00001.tbst.dst.gz" {
		t.Fatalf("unexpected job %+v", job)
	}
	want := []string{
		"--parsable",
		"--job-name=/n/bl/profiles/br-00001.tbst.dst.gz",
		"--output=/n/bl/logs/br-00001.tbst.out",
		"--error=/n/bl/logs/br-00001.tbst.err",
		"--wrap=fdtubeprofile -o /n/bl/profiles/br-00001.tbst.dst.gz 'in file.dst.gz'",
	}
	if diff := cmp.Diff(want, runner.calls[0].Args); diff != "" {
		t.Fatalf("submit args mismatch (-want +got):\n%s", diff)
	}
	if runner.calls[0].Binary != "sbatch" {
		t.Fatalf("unexpected binary %s", runner.calls[0].Binary)
	}
}

func TestSubmitFailures(t *testing.T) {
	c := newClient(t, &recordingRunner{result: procexec.Result{Stdout: []byte("queue full\n")}})
	_, err := c.Submit(context.Background(), Request{Command: []string{"stpfl"}})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}

	c = newClient(t, &recordingRunner{err: errors.New("exit 1")})
	if _, err := c.Submit(context.Background(), Request{Command: []string{"stpfl"}}); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if _, err := c.Submit(context.Background(), Request{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseVerboseSubmitOutput(t *testing.T) {
	id, err := parseJobID([]string{"Submitted batch job 77"})
	if err != nil || id != 77 {
		t.Fatalf("parseJobID = %d, %v", id, err)
	}
}

func TestList(t *testing.T) {
	runner := &recordingRunner{result: procexec.Result{Stdout: []byte(
		"101 R /n/bl/profiles/br-00001.tbst.dst.gz\n102_3 PD /n/bm/profiles/md-00000.pfst.dst.gz\n\n")}}
	c := newClient(t, runner)
	list, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []jobs.Job{
		{ID: 101, Status: "R", Name: "/n/bl/profiles/br-00001.tbst.dst.gz"},
		{ID: 102, Status: "PD", Name: "/n/bm/profiles/md-00000.pfst.dst.gz"},
	}
	if diff := cmp.Diff(want, list); diff != "" {
		t.Fatalf("jobs mismatch (-want +got):\n%s", diff)
	}

	runner.result = procexec.Result{Stdout: []byte("garbage\n")}
	if _, err := c.List(context.Background()); err == nil {
		t.Fatal("expected malformed listing to fail")
	}
	runner.err = errors.New("timeout")
	if _, err := c.List(context.Background()); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestShellJoin(t *testing.T) {
	got := ShellJoin([]string{"a", "", "it's", "x=1,y"})
	if got != `a '' 'it'\''s' x=1,y` {
		t.Fatalf("unexpected quoting %q", got)
	}
}
