// Package pipeline drives the fixed stage chain of a simulation run: system
// build through production, then analysis and reporting. Completed stages are
// recorded in a per-run ledger so an interrupted run resumes past them, and
// the run directory is guarded by an exclusive lock while a pipeline holds it.
package pipeline
