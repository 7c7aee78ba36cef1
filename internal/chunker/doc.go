// Package chunker splits source text into size-bounded chunks for
// summarization.
//
// Splitting is line-oriented: content is never cut mid-line, so the chunk
// budget is a soft ceiling. Token counts are estimated with a chars/4
// heuristic rather than a real tokenizer; this under- or over-counts for
// non-English text and is intentionally approximate.
//
// # Basic Usage
//
//	chunks := chunker.Split(content, 4000)
//	paths, err := chunker.WriteChunks("dest/pkg/main.go", chunks)
//	// paths: dest/pkg/main.go_001, dest/pkg/main.go_002, ...
package chunker
