package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the ledger filename inside a run directory.
const FileName = "stages.done"

// Ledger records which named stages have completed for one run directory.
// The persisted form is a newline-delimited, append-only list of stage names;
// a stage is done iff its exact name appears as a whole line. Entries are only
// ever appended; resetting a run means deleting the file out of band.
type Ledger struct {
	path  string
	done  map[string]struct{}
	order []string
}

// Open loads the ledger for a run directory, creating an empty one in memory
// when no file exists yet.
func Open(runDir string) (*Ledger, error) {
	l := &Ledger{
		path: filepath.Join(runDir, FileName),
		done: make(map[string]struct{}),
	}

	file, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		if _, ok := l.done[name]; !ok {
			l.order = append(l.order, name)
		}
		l.done[name] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return l, nil
}

// IsDone reports whether the named stage has completed.
func (l *Ledger) IsDone(name string) bool {
	_, ok := l.done[name]
	return ok
}

// MarkDone appends the stage name to the ledger. Marking an already-present
// name is a no-op, so re-running a completed stage never duplicates an entry.
func (l *Ledger) MarkDone(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("stage name must not be empty")
	}
	if l.IsDone(name) {
		return nil
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	defer file.Close()

	if _, err := fmt.Fprintln(file, name); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	l.done[name] = struct{}{}
	l.order = append(l.order, name)
	return nil
}

// Completed returns the completed stage names in completion order.
func (l *Ledger) Completed() []string {
	return append([]string(nil), l.order...)
}

// Count returns the number of completed stages.
func (l *Ledger) Count() int {
	return len(l.done)
}

// Path returns the on-disk location of the ledger file.
func (l *Ledger) Path() string {
	return l.path
}
