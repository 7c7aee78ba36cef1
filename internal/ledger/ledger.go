// Package ledger persists the set of artifacts that have already been
// summarized, so an interrupted run can resume without repeating external
// calls. Identity is path-based: the backing store is a single JSON array
// of absolute paths, rewritten wholesale after every success.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Ledger tracks completed artifacts. It is safe only under single-process,
// single-run discipline; no cross-process locking is provided.
type Ledger struct {
	path string
	done map[string]struct{}
}

// Load reads the ledger from path. An absent backing file is not an error
// and yields an empty ledger.
func Load(path string) (*Ledger, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve ledger path: %w", err)
	}

	l := &Ledger{
		path: absPath,
		done: make(map[string]struct{}),
	}

	data, err := os.ReadFile(absPath)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", absPath, err)
	}
	for _, entry := range entries {
		l.done[entry] = struct{}{}
	}

	return l, nil
}

// IsDone reports whether the artifact was already summarized. Paths are
// normalized to absolute form so resume works across working directories.
func (l *Ledger) IsDone(artifact string) bool {
	abs, err := filepath.Abs(artifact)
	if err != nil {
		return false
	}
	_, ok := l.done[abs]
	return ok
}

// MarkDone records the artifact as summarized and persists the whole ledger
// before returning. Write-through keeps the file consistent with the last
// successful unit of work even if the process is killed right after.
func (l *Ledger) MarkDone(artifact string) error {
	abs, err := filepath.Abs(artifact)
	if err != nil {
		return fmt.Errorf("resolve artifact path: %w", err)
	}
	l.done[abs] = struct{}{}
	return l.persist()
}

// Len returns the number of completed artifacts.
func (l *Ledger) Len() int {
	return len(l.done)
}

// Path returns the absolute path of the backing file.
func (l *Ledger) Path() string {
	return l.path
}

// persist rewrites the backing file. The temp-file-plus-rename dance keeps
// a crash mid-write from corrupting the previous ledger state.
func (l *Ledger) persist() error {
	entries := make([]string, 0, len(l.done))
	for entry := range l.done {
		entries = append(entries, entry)
	}
	sort.Strings(entries)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
