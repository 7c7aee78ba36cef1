package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	w := zip.NewWriter(f)
	for name, content := range files {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestExtract(t *testing.T) {
	tmpDir := t.TempDir()
	zipPath := filepath.Join(tmpDir, "project.zip")
	writeZip(t, zipPath, map[string]string{
		"main.go":            "package main\n",
		"pkg/util/helper.go": "package util\n",
		"README.md":          "# project\n",
	})

	dest := filepath.Join(tmpDir, "scratch")
	require.NoError(t, Extract(zipPath, dest))

	data, err := os.ReadFile(filepath.Join(dest, "pkg", "util", "helper.go"))
	require.NoError(t, err)
	assert.Equal(t, "package util\n", string(data))

	assert.FileExists(t, filepath.Join(dest, "main.go"))
	assert.FileExists(t, filepath.Join(dest, "README.md"))
}

func TestExtract_RejectsPathTraversal(t *testing.T) {
	tmpDir := t.TempDir()
	zipPath := filepath.Join(tmpDir, "evil.zip")
	writeZip(t, zipPath, map[string]string{
		"../escape.txt": "outside\n",
	})

	dest := filepath.Join(tmpDir, "scratch")
	err := Extract(zipPath, dest)
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(tmpDir, "escape.txt"))
}

func TestExtract_MissingArchive(t *testing.T) {
	tmpDir := t.TempDir()
	err := Extract(filepath.Join(tmpDir, "missing.zip"), filepath.Join(tmpDir, "out"))
	assert.Error(t, err)
}

func TestCleanup(t *testing.T) {
	tmpDir := t.TempDir()
	scratch := filepath.Join(tmpDir, "scratch")
	require.NoError(t, os.MkdirAll(filepath.Join(scratch, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(scratch, "nested", "f"), []byte("x"), 0644))

	require.NoError(t, Cleanup(scratch))
	assert.NoDirExists(t, scratch)

	// Removing an already-missing dir is fine.
	assert.NoError(t, Cleanup(scratch))
}

func TestList(t *testing.T) {
	tmpDir := t.TempDir()
	writeZip(t, filepath.Join(tmpDir, "b.zip"), map[string]string{"f": "x"})
	writeZip(t, filepath.Join(tmpDir, "a.zip"), map[string]string{"f": "x"})
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "sub.zip.d"), 0755))

	archives, err := List(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(tmpDir, "a.zip"),
		filepath.Join(tmpDir, "b.zip"),
	}, archives)
}
