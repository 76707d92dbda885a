package topology

import (
	"fmt"
	"os"
	"strings"

	"metad/internal/fileutil"
	"metad/internal/services"
)

// Document is an ordered sequence of text lines with semantically meaningful
// anchors. It models both the topology file and the bias-directive file; the
// patcher only ever inserts relative to anchors, never by absolute position.
type Document struct {
	lines []string
	// trailingNewline preserves whether the source ended with a newline so a
	// no-op patch round-trips byte for byte.
	trailingNewline bool
}

// Parse builds a document from file content.
func Parse(content string) *Document {
	trailing := strings.HasSuffix(content, "\n")
	trimmed := strings.TrimSuffix(content, "\n")
	var lines []string
	if trimmed != "" || content == "\n" {
		lines = strings.Split(trimmed, "\n")
	}
	return &Document{lines: lines, trailingNewline: trailing || content == ""}
}

// LoadFile reads and parses a document from disk.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return Parse(string(data)), nil
}

// String renders the document back to text.
func (d *Document) String() string {
	out := strings.Join(d.lines, "\n")
	if d.trailingNewline && out != "" {
		out += "\n"
	}
	return out
}

// Lines returns a copy of the document lines.
func (d *Document) Lines() []string {
	return append([]string(nil), d.lines...)
}

// Insertion is one named, idempotent patch: a detection predicate over the
// current content, an anchor rule used only when detection fails, and the
// lines to splice in after the anchor.
type Insertion struct {
	Kind string
	// Exists reports whether the insertion is already present in the document.
	Exists func(*Document) bool
	// Anchor returns the index of the line to insert after. Return -1 to
	// insert at the top of the document.
	Anchor func(*Document) (int, bool)
	// Lines is the payload spliced in after the anchor.
	Lines []string
}

// Apply applies the insertion exactly once. It returns false when the
// detection predicate already matches, so re-running a pipeline never
// double-inserts. A missing anchor is a hard failure: it means the document
// shape violated an assumption the generator depends on.
func (d *Document) Apply(ins Insertion) (bool, error) {
	if ins.Exists != nil && ins.Exists(d) {
		return false, nil
	}
	anchor, ok := ins.Anchor(d)
	if !ok {
		return false, services.Wrap(services.ErrAnchorNotFound, "", "patch",
			fmt.Sprintf("no anchor for insertion %q", ins.Kind), nil)
	}
	if anchor < -1 || anchor >= len(d.lines) {
		return false, services.Wrap(services.ErrAnchorNotFound, "", "patch",
			fmt.Sprintf("insertion %q anchored outside the document (line %d of %d)", ins.Kind, anchor, len(d.lines)), nil)
	}

	at := anchor + 1
	spliced := make([]string, 0, len(d.lines)+len(ins.Lines))
	spliced = append(spliced, d.lines[:at]...)
	spliced = append(spliced, ins.Lines...)
	spliced = append(spliced, d.lines[at:]...)
	d.lines = spliced
	return true, nil
}

// ContainsLine reports whether any line equals s after trimming whitespace.
func (d *Document) ContainsLine(s string) bool {
	s = strings.TrimSpace(s)
	for _, line := range d.lines {
		if strings.TrimSpace(line) == s {
			return true
		}
	}
	return false
}

// findLine returns the index of the first line for which match returns true.
func (d *Document) findLine(match func(string) bool) (int, bool) {
	for i, line := range d.lines {
		if match(line) {
			return i, true
		}
	}
	return 0, false
}

// PatchFile applies the insertions to the document at path, backing the file
// up once before its first mutation. It reports whether anything changed.
func PatchFile(path string, insertions ...Insertion) (bool, error) {
	doc, err := LoadFile(path)
	if err != nil {
		return false, err
	}

	changed := false
	for _, ins := range insertions {
		applied, err := doc.Apply(ins)
		if err != nil {
			return changed, err
		}
		changed = changed || applied
	}
	if !changed {
		return false, nil
	}

	if err := fileutil.BackupOnce(path); err != nil {
		return false, fmt.Errorf("backup document: %w", err)
	}
	if err := os.WriteFile(path, []byte(doc.String()), 0o644); err != nil {
		return false, fmt.Errorf("write document: %w", err)
	}
	return true, nil
}
