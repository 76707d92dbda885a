// Package plumed renders the bias-directive document consumed by the
// simulation engine: one definition line per collective variable, one METAD
// action, optional wall actions, and the output block. Rendering is
// deterministic so continuation detection can compare documents byte-wise.
package plumed
