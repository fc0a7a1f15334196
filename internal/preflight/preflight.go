package preflight

import (
	"context"

	"stereomatch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks for cfg. Collaborator binaries are
// checked separately by CheckSystemDeps.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Stereo root", cfg.Paths.StereoRoot),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckReadableDirectory("Geometry directory", cfg.Paths.GeometryDir),
	}
	if cfg.Paths.MonoRoot != "" {
		results = append(results, CheckReadableDirectory("Mono root", cfg.Paths.MonoRoot))
	}
	results = append(results, CheckGeometryFiles(cfg.Paths.GeometryDir)...)
	return results
}

// Failed returns the failed results.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
