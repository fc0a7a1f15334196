package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"stereomatch/internal/config"
	"stereomatch/internal/deps"
	"stereomatch/internal/stereo"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckReadableDirectory verifies that the directory exists and can be listed.
func CheckReadableDirectory(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "read ok")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	if path == "" {
		return Result{Name: name, Detail: "(error: not configured)"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// CheckGeometryFiles verifies that every station's detector geometry is
// readable.
func CheckGeometryFiles(dir string) []Result {
	results := make([]Result, 0, len(stereo.Stations))
	for _, s := range stereo.Stations {
		name := "Geometry " + s.Name()
		path := filepath.Join(dir, fmt.Sprintf("geo%s.dst.gz", s))
		if err := unix.Access(path, unix.R_OK); err != nil {
			results = append(results, Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)})
			continue
		}
		results = append(results, Result{Name: name, Passed: true, Detail: path})
	}
	return results
}

// CheckSystemDeps evaluates every collaborator program named in cfg.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	t := cfg.Tools
	requirements := []deps.Requirement{
		{Name: "Detection dump", Command: t.DetectionDump, Description: "Builds per-station downlists"},
		{Name: "Split", Command: t.Split, Description: "Extracts matched events from source files"},
		{Name: "Plane solver", Command: t.PlaneSolver, Description: "Solves pairwise geometry"},
		{Name: "Plane fit", Command: t.PlaneFit, Description: "Fits middle drum planes before pair solving"},
		{Name: "Inspect", Command: t.Inspect, Description: "Reads durations, zenith angles and flash signatures"},
		{Name: "Event merge", Command: t.EventMerge, Description: "Merges tube station profiles"},
		{Name: "Bank sum", Command: t.BankSum, Description: "Recombines data banks"},
		{Name: "Tuple dump", Command: t.TupleDump, Description: "Writes tuple text records"},
		{Name: "Profile dump", Command: t.ProfileDump, Description: "Writes profile text records"},
		{Name: "Scheduler submit", Command: cfg.Scheduler.SubmitBinary, Description: "Submits profile jobs"},
		{Name: "Scheduler list", Command: cfg.Scheduler.ListBinary, Description: "Lists outstanding jobs"},
		// Profile programs run on scheduler nodes, which may not share this PATH.
		{Name: "Tube profile", Command: t.TubeProfile, Description: "Tube station profile reconstruction", Optional: true},
		{Name: "Plane profile", Command: t.PlaneProfile, Description: "Plane station profile reconstruction", Optional: true},
	}
	return deps.CheckBinaries(requirements)
}
