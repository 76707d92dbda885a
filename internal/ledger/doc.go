// Package ledger persists the set of completed stage names for a run
// directory, the record that makes interrupted pipelines resumable.
package ledger
