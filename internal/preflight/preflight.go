package preflight

import (
	"context"

	"ac3mux/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional results are informational and never block a run.
	Optional bool
}

// Blocking reports whether the result should stop a batch.
func (r Result) Blocking() bool { return !r.Passed && !r.Optional }

// RunAll executes the checks a conversion batch needs: tool availability,
// ac3/eac3 encoder support and directory access.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for _, status := range CheckSystemDeps(ctx, cfg, false) {
		results = append(results, FromDependency(status))
	}
	results = append(results, CheckEncoders(ctx, cfg.Tools.FFmpeg))

	if cfg.Convert.Directory != "" {
		results = append(results, CheckDirectoryAccess("Library directory", cfg.Convert.Directory))
	}
	if cfg.Convert.TempDir != "" {
		results = append(results, CheckDirectoryAccess("Temp directory", cfg.Convert.TempDir))
	}
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	return results
}

// Failed returns the blocking failures in results.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Blocking() {
			failed = append(failed, r)
		}
	}
	return failed
}
