// Package batcher groups summary artifacts into bounded batches and
// materializes each batch as one combined document ready for another round
// of summarization.
package batcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultSize is the maximum number of artifacts per batch.
	DefaultSize = 15

	// Separator delimits member documents inside a combined batch file.
	Separator = "---"
)

// Split partitions items into contiguous groups of at most size, preserving
// input order. The last group may be shorter. Empty input yields no groups.
// A non-positive size falls back to DefaultSize.
func Split(items []string, size int) [][]string {
	if size <= 0 {
		size = DefaultSize
	}

	var groups [][]string
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		groups = append(groups, items[start:end])
	}
	return groups
}

// Materialize concatenates the member files into one combined document at
// outPath. Each member's content is followed by a separator line. When
// headerRoot is non-empty, each member is prefixed with a header naming its
// path relative to headerRoot; this is used at the directory-rollup stage
// so the model can tell the sources apart.
func Materialize(outPath string, members []string, headerRoot string) error {
	var doc strings.Builder

	for _, member := range members {
		content, err := os.ReadFile(member)
		if err != nil {
			return fmt.Errorf("read batch member %s: %w", member, err)
		}

		if headerRoot != "" {
			rel, err := filepath.Rel(headerRoot, member)
			if err != nil {
				rel = member
			}
			doc.WriteString(fmt.Sprintf("## %s\n", rel))
		}

		doc.Write(content)
		doc.WriteString("\n" + Separator + "\n")
	}

	if err := os.WriteFile(outPath, []byte(doc.String()), 0644); err != nil {
		return fmt.Errorf("write batch document: %w", err)
	}
	return nil
}
