package workflow

import (
	"stereomatch/internal/config"
	"stereomatch/internal/consolidate"
	"stereomatch/internal/downlist"
	"stereomatch/internal/extraction"
	"stereomatch/internal/geometry"
	"stereomatch/internal/matching"
	"stereomatch/internal/plausibility"
	"stereomatch/internal/profile"
	"stereomatch/internal/services/dsttools"
	"stereomatch/internal/services/scheduler"
	"stereomatch/internal/stage"
)

// StepSet bundles the concrete step handlers the coordinator orchestrates.
type StepSet struct {
	Downlists    stage.Handler
	Find         stage.Handler
	Triples      stage.Handler
	CLF          stage.Handler
	Extraction   stage.Handler
	Geometry     stage.Handler
	Plausibility stage.Handler
	Profiles     stage.Handler
	Consolidate  stage.Handler
}

// NewStepSet wires the production handlers to the collaborator and
// scheduler clients.
func NewStepSet(cfg *config.Config, tools *dsttools.Client, sched *scheduler.Client) StepSet {
	t := cfg.Tools
	return StepSet{
		Downlists:    downlist.NewHandler(tools, t.DetectionDump),
		Find:         matching.NewFindHandler(),
		Triples:      matching.NewTriplesHandler(),
		CLF:          matching.NewCLFHandler(),
		Extraction:   extraction.NewHandler(tools, t.Split),
		Geometry:     geometry.NewHandler(tools, t.PlaneSolver, t.PlaneFit, t.BankSum, t.Inspect),
		Plausibility: plausibility.NewHandler(tools, t.Inspect),
		Profiles:     profile.NewHandler(sched, tools, sched.Binaries()...),
		Consolidate:  consolidate.NewHandler(tools, t.EventMerge, t.BankSum, t.TupleDump, t.ProfileDump),
	}
}

// Handlers returns the set in execution order.
func (s StepSet) Handlers() []stage.Handler {
	return []stage.Handler{
		s.Downlists,
		s.Find,
		s.Triples,
		s.CLF,
		s.Extraction,
		s.Geometry,
		s.Plausibility,
		s.Profiles,
		s.Consolidate,
	}
}
