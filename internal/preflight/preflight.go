package preflight

import (
	"path/filepath"

	"noiseplayer/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks for the given config. Binary checks
// are reported separately by CheckSystemDeps.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("PID directory", filepath.Dir(cfg.Paths.PIDFile)),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if cfg.Player.Source != "" {
		results = append(results, CheckSourceFile("Noise source", cfg.Player.Source))
	}
	return results
}
