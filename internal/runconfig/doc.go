// Package runconfig defines the immutable description of one pipeline run and
// its persisted record. A RunConfig is constructed exactly once, either from a
// validated capture or by reloading the run record during resume; stages read
// its fields and never mutate it.
package runconfig
