package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks invalid user selections, malformed persisted run
	// records, CV payload arity mismatches, and grid length mismatches.
	ErrConfiguration = errors.New("configuration error")
	// ErrAnchorNotFound marks a structured-document patch whose anchor line is
	// absent. The document shape violated a generator assumption.
	ErrAnchorNotFound = errors.New("anchor not found")
	// ErrStageFailure marks an external delegate that exited without producing
	// its expected output artifact.
	ErrStageFailure = errors.New("stage failure")
	// ErrMissingDependency marks a required external tool that is absent or
	// present but unusable, detected before any stage runs.
	ErrMissingDependency = errors.New("missing dependency")
	// ErrExternalTool marks an external process that failed to start or exited
	// abnormally.
	ErrExternalTool = errors.New("external tool error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrStageFailure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
