// Command metad is the CLI for driving resumable well-tempered metadynamics
// runs: interactive capture, staged execution with ledger-based resume, run
// registry queries, and transient-artifact cleanup.
package main
