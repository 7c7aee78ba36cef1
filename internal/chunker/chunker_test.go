package chunker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "short", text: "abc", want: 0},
		{name: "exact", text: "abcd", want: 1},
		{name: "line", text: strings.Repeat("x", 200), want: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateTokens(tt.text))
		})
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		content string
		max     int
	}{
		{name: "single line", content: "hello world", max: 100},
		{name: "multi line", content: "a\nb\nc\nd", max: 1},
		{name: "trailing newline", content: "one\ntwo\n", max: 1},
		{name: "empty lines", content: "\n\n\n", max: 100},
		{name: "long content", content: strings.Repeat("some line of code here\n", 500), max: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Split(tt.content, tt.max)
			joined := strings.Join(chunks, "")

			// Every line contributes a trailing newline, so the
			// concatenation is the original content plus one final "\n".
			got := strings.Split(strings.TrimSuffix(joined, "\n"), "\n")
			want := strings.Split(tt.content, "\n")
			assert.Equal(t, want, got, "line sequence must survive chunking")
		})
	}
}

func TestSplit_BudgetRespected(t *testing.T) {
	content := strings.Repeat("0123456789abcdef\n", 100)
	chunks := Split(content, 10)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, EstimateTokens(chunk), 10, "chunk %d over budget", i)
	}
}

func TestSplit_OversizedLineStandsAlone(t *testing.T) {
	long := strings.Repeat("x", 400) // ~100 tokens
	content := "short\n" + long + "\nshort"

	chunks := Split(content, 20)

	require.Len(t, chunks, 3)
	assert.Equal(t, "short\n", chunks[0])
	assert.Equal(t, long+"\n", chunks[1])
	assert.Equal(t, "short\n", chunks[2])
	assert.Greater(t, EstimateTokens(chunks[1]), 20, "oversized line is allowed to exceed the budget")
}

func TestSplit_TenLinesBudget120(t *testing.T) {
	// 10 lines of 50 estimated tokens each with a 120 token budget:
	// three lines would be 150 > 120, so chunks hold at most 2 lines,
	// giving 5 chunks.
	line := strings.Repeat("a", 199) // +newline = 200 chars = 50 tokens
	content := strings.TrimSuffix(strings.Repeat(line+"\n", 10), "\n")

	chunks := Split(content, 120)

	require.Len(t, chunks, 5)
	for _, chunk := range chunks {
		lines := strings.Split(strings.TrimSuffix(chunk, "\n"), "\n")
		assert.LessOrEqual(t, len(lines), 2)
	}
}

func TestSplit_Empty(t *testing.T) {
	// An empty string still yields one chunk holding the single empty
	// line, keeping the round-trip property intact.
	chunks := Split("", 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, "\n", chunks[0])
}

func TestWriteChunks_Naming(t *testing.T) {
	tmpDir := t.TempDir()
	dest := filepath.Join(tmpDir, "main.go")

	paths, err := WriteChunks(dest, []string{"first\n", "second\n", "third\n"})
	require.NoError(t, err)

	require.Len(t, paths, 3)
	assert.Equal(t, dest+"_001", paths[0])
	assert.Equal(t, dest+"_002", paths[1])
	assert.Equal(t, dest+"_003", paths[2])

	for i, p := range paths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("%s\n", []string{"first", "second", "third"}[i]), string(data))
	}
}

func TestChunkFile(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "src.txt")
	dest := filepath.Join(tmpDir, "out", "src.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0755))

	content := strings.Repeat("line of text\n", 40)
	require.NoError(t, os.WriteFile(src, []byte(content), 0644))

	paths, err := ChunkFile(src, dest, 30)
	require.NoError(t, err)
	assert.Greater(t, len(paths), 1)

	var joined strings.Builder
	for _, p := range paths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		joined.Write(data)
	}
	assert.Equal(t, content+"\n", joined.String())
}

func TestChunkFile_MissingSource(t *testing.T) {
	_, err := ChunkFile(filepath.Join(t.TempDir(), "missing"), "dest", 100)
	assert.Error(t, err)
}
