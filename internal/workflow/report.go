package workflow

import (
	"time"

	"stereomatch/internal/night"
	"stereomatch/internal/stage"
)

// Outcome is a night's final state for one invocation.
type Outcome string

const (
	// OutcomeComplete means the night's analysis is finished.
	OutcomeComplete Outcome = "complete"
	// OutcomeHalted means a step returned a reason; Reason says which.
	OutcomeHalted Outcome = "halted"
	// OutcomeStopped means every step up to the end bound continued.
	OutcomeStopped Outcome = "stopped"
	// OutcomeException means an unexpected error or panic.
	OutcomeException Outcome = "exception"
)

// StepResult records one executed step.
type StepResult struct {
	Step     stage.StepName
	Reason   stage.Reason
	Err      error
	Duration time.Duration
}

// NightReport is the per-night result of an invocation.
type NightReport struct {
	Night      night.Night
	RunID      string
	Outcome    Outcome
	Reason     stage.Reason
	Err        error
	Memoized   bool
	Steps      []StepResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Summary renders the single word or reason an operator reads: "complete",
// the halting reason, or "exception: <detail>".
func (r NightReport) Summary() string {
	switch r.Outcome {
	case OutcomeComplete:
		return string(OutcomeComplete)
	case OutcomeException:
		if r.Err == nil {
			return string(OutcomeException)
		}
		return string(OutcomeException) + ": " + r.Err.Error()
	case OutcomeStopped:
		if last := r.lastStep(); last.Valid() {
			return "stopped after " + last.String()
		}
		return string(OutcomeStopped)
	default:
		return r.Reason.String()
	}
}

// Failed reports whether the night needs investigation.
func (r NightReport) Failed() bool { return r.Outcome == OutcomeException }

func (r NightReport) lastStep() stage.StepName {
	if len(r.Steps) == 0 {
		return 0
	}
	return r.Steps[len(r.Steps)-1].Step
}

func outcomeFor(reason stage.Reason) Outcome {
	if reason == stage.Complete {
		return OutcomeComplete
	}
	return OutcomeHalted
}
