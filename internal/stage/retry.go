package stage

import (
	"fmt"
	"strconv"
	"strings"
)

// RetryLevel controls how much completed work is trusted.
type RetryLevel int

const (
	// RetryTrust skips every checkpointed stage.
	RetryTrust RetryLevel = iota
	// RetryMissing reruns checkpointed stages whose outputs are missing.
	RetryMissing
	// RetryForce reruns everything.
	RetryForce
)

// ParseRetryLevel accepts 0, 1 or 2.
func ParseRetryLevel(value string) (RetryLevel, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < int(RetryTrust) || n > int(RetryForce) {
		return 0, fmt.Errorf("retry level %q must be 0, 1 or 2", value)
	}
	return RetryLevel(n), nil
}

// ShouldRun decides whether a stage runs given its marker and whether its
// outputs are present on disk.
func ShouldRun(level RetryLevel, markerDone, outputsPresent bool) bool {
	switch level {
	case RetryTrust:
		return !markerDone
	case RetryMissing:
		return !markerDone || !outputsPresent
	default:
		return true
	}
}

func (r RetryLevel) String() string { return strconv.Itoa(int(r)) }
