// Package runstore persists the registry of simulation runs in SQLite so
// status queries and resume work across process restarts.
package runstore
