package stage

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// StepName enumerates the pipeline steps in execution order.
type StepName int

const (
	BuildDownlists StepName = iota + 1
	FindMatches
	IsolateTriples
	RemoveCLF
	ExtractEvents
	ReconstructGeometry
	CheckPlausibility
	ReconstructProfiles
	Consolidate
)

var stepNames = [...]string{
	BuildDownlists:      "build-downlists",
	FindMatches:         "find-matches",
	IsolateTriples:      "isolate-triples",
	RemoveCLF:           "remove-clf",
	ExtractEvents:       "extract-events",
	ReconstructGeometry: "reconstruct-geometry",
	CheckPlausibility:   "check-plausibility",
	ReconstructProfiles: "reconstruct-profiles",
	Consolidate:         "consolidate",
}

var titleCaser = cases.Title(language.English)

// Steps returns every step in execution order.
func Steps() []StepName {
	out := make([]StepName, 0, len(stepNames)-1)
	for s := BuildDownlists; s <= Consolidate; s++ {
		out = append(out, s)
	}
	return out
}

// Valid reports whether s names a step.
func (s StepName) Valid() bool {
	return s >= BuildDownlists && s <= Consolidate
}

// String returns the step's command-line and marker name.
func (s StepName) String() string {
	if !s.Valid() {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// Label returns the human-readable title, e.g. "Find Matches".
func (s StepName) Label() string {
	return titleCaser.String(strings.ReplaceAll(s.String(), "-", " "))
}

// ParseStepName resolves a step by name. An unknown name is an error rather
// than a step that silently does nothing.
func ParseStepName(value string) (StepName, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, s := range Steps() {
		if stepNames[s] == value {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown step %q (valid: %s)", value, strings.Join(stepNames[1:], ", "))
}
