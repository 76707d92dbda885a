// Package config loads and validates the application-level TOML configuration:
// tool locations, directory layout, capture defaults, and logging. Parameters
// that describe a single run belong to the run record, not to this package.
package config
