// Package logging wires slog with a console handler for interactive use and a
// JSON handler for machine consumption, plus context helpers that stamp stage
// and run identifiers onto every record emitted during pipeline execution.
package logging
