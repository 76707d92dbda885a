// Package topology models structured text documents (the system topology and
// the bias-directive file) as ordered lines with named anchors, and applies
// idempotent insert-at-anchor patches to them. Correctness never depends on
// external state: every insertion detects its own prior output by content.
package topology
