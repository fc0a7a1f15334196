package stage

import "fmt"

// Reason is a step's verdict. The empty reason lets the coordinator proceed;
// anything else halts the night for this invocation and is reported as is.
type Reason string

// Continue lets the coordinator run the next step.
const Continue Reason = ""

// Benign terminal reasons. The coordinator memoizes them per night.
const (
	NothingToDo Reason = "nothing to do"
	Complete    Reason = "analysis complete"
)

// Halts reports whether the coordinator must stop after this reason.
func (r Reason) Halts() bool { return r != Continue }

// Benign reports whether the reason is a settled outcome that later runs
// may skip without rechecking.
func (r Reason) Benign() bool { return r == NothingToDo || r == Complete }

// Haltf formats a halting reason.
func Haltf(format string, args ...any) Reason {
	return Reason(fmt.Sprintf(format, args...))
}

func (r Reason) String() string { return string(r) }
