package runstore

import "time"

// Status describes where a registered run sits in its lifecycle.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one registered simulation run directory.
type Run struct {
	ID           string
	Path         string
	Protein      string
	Ligand       string
	Status       Status
	CurrentStage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasLigand reports whether the run simulates a protein-ligand complex.
func (r *Run) HasLigand() bool {
	return r.Ligand != ""
}
