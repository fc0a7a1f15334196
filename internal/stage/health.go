package stage

import (
	"strings"

	"stereomatch/internal/deps"
)

// Health summarizes whether a step can run: its collaborators are present and
// its configuration is usable.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// CheckBinaries reports the step unhealthy when any collaborator is missing.
func CheckBinaries(step StepName, binaries ...string) Health {
	reqs := make([]deps.Requirement, 0, len(binaries))
	for _, b := range binaries {
		reqs = append(reqs, deps.Requirement{Name: b, Command: b})
	}
	if missing := deps.Missing(deps.CheckBinaries(reqs)); len(missing) > 0 {
		return Unhealthy(step.String(), "missing "+strings.Join(missing, ", "))
	}
	return Healthy(step.String())
}
