package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"metad/internal/services"
)

// transientGlobs match artifacts that are safe to delete from a completed or
// abandoned run directory. Scientific outputs (trajectories, hills, reports)
// are never matched.
var transientGlobs = []string{
	"#*#",
	"*.tmp",
	"*.bak",
	"mdout.mdp",
	"step*.pdb",
	"em.trr",
	"nvt.trr",
	"npt.trr",
	LockName,
}

// Cleanup removes transient artifacts from a run directory and returns the
// paths it deleted, relative to the run directory.
func Cleanup(runDir string) ([]string, error) {
	info, err := os.Stat(runDir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "cleanup", runDir, err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrConfiguration, "", "cleanup", runDir+" is not a directory", nil)
	}

	var removed []string
	for _, pattern := range transientGlobs {
		matches, err := filepath.Glob(filepath.Join(runDir, pattern))
		if err != nil {
			return removed, services.Wrap(services.ErrStageFailure, "", "cleanup", pattern, err)
		}
		for _, match := range matches {
			rel, relErr := filepath.Rel(runDir, match)
			if relErr != nil || strings.HasPrefix(rel, "..") {
				continue
			}
			if err := os.Remove(match); err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return removed, services.Wrap(services.ErrStageFailure, "", "cleanup", match, err)
			}
			removed = append(removed, rel)
		}
	}
	return removed, nil
}
