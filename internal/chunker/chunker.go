package chunker

import (
	"fmt"
	"os"
	"strings"
)

const (
	// TokensPerChar is the heuristic for estimating tokens (chars/4)
	TokensPerChar = 4
)

// EstimateTokens estimates the number of tokens in a string.
// Simple heuristic: average English word is ~4 chars, code tokens similar.
func EstimateTokens(text string) int {
	return len(text) / TokensPerChar
}

// Split divides content into chunks whose estimated token count stays at or
// below maxTokens. Splitting happens only at line boundaries so code
// structure is preserved; a single line that exceeds the budget on its own
// is emitted alone as an oversized chunk rather than being cut mid-line.
//
// Concatenating the returned chunks in order reproduces the line sequence
// of content. Every line contributes its trailing newline.
func Split(content string, maxTokens int) []string {
	var chunks []string
	var current strings.Builder
	currentTokens := 0

	for _, line := range strings.Split(content, "\n") {
		lineTokens := EstimateTokens(line + "\n")
		if currentTokens+lineTokens > maxTokens {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			current.WriteString(line + "\n")
			currentTokens = lineTokens
			continue
		}
		current.WriteString(line + "\n")
		currentTokens += lineTokens
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// WriteChunks writes chunks to sequentially numbered sibling files of
// destPath ("destPath_001", "destPath_002", ...) and returns their paths.
// Numbering is 1-based and zero-padded so ordering is reconstructible from
// the file name alone.
func WriteChunks(destPath string, chunks []string) ([]string, error) {
	paths := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		path := fmt.Sprintf("%s_%03d", destPath, i+1)
		if err := os.WriteFile(path, []byte(chunk), 0644); err != nil {
			return nil, fmt.Errorf("write chunk %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ChunkFile reads the source file, splits it into chunks bounded by
// maxTokens, and writes them as numbered siblings of destPath.
func ChunkFile(srcPath, destPath string, maxTokens int) ([]string, error) {
	content, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("read source file: %w", err)
	}
	return WriteChunks(destPath, Split(string(content), maxTokens))
}
