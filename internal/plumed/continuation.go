package plumed

import (
	"path/filepath"

	"metad/internal/fileutil"
	"metad/internal/topology"
)

// CheckpointName is the solver checkpoint written by the production run.
const CheckpointName = "md.cpt"

// IsContinuation reports whether a production directory carries evidence of a
// prior biased run: a non-empty bias-history file next to a solver checkpoint.
func IsContinuation(stageDir string) bool {
	return fileutil.NonEmpty(filepath.Join(stageDir, HillsName)) &&
		fileutil.Exists(filepath.Join(stageDir, CheckpointName))
}

// MarkContinuation stamps the directive document at path as a continuation so
// the engine resumes hill accumulation instead of starting fresh. The marker
// is applied through the idempotent patcher: marking twice leaves a single
// RESTART line.
func MarkContinuation(path string) error {
	_, err := topology.PatchFile(path, topology.RestartMarker())
	return err
}
