// Package archive unpacks source archives into scratch directories and
// cleans them up after processing.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Extract unpacks the zip archive at zipPath into destDir, preserving its
// internal directory structure. Entries that would escape destDir are
// rejected.
func Extract(zipPath, destDir string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", zipPath, err)
	}
	defer func() { _ = reader.Close() }()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create extraction dir: %w", err)
	}

	for _, entry := range reader.File {
		if err := extractEntry(entry, destDir); err != nil {
			return fmt.Errorf("extract %s: %w", entry.Name, err)
		}
	}
	return nil
}

// extractEntry writes a single archive entry under destDir.
func extractEntry(entry *zip.File, destDir string) error {
	target := filepath.Join(destDir, filepath.Clean(entry.Name))

	// Zip-slip guard: the resolved target must stay inside destDir.
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("entry path escapes extraction dir")
	}

	if entry.FileInfo().IsDir() {
		return os.MkdirAll(target, 0755)
	}
	if !entry.FileInfo().Mode().IsRegular() {
		// Symlinks and other irregular entries are not source text.
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

// Cleanup removes the scratch extraction directory. Callers treat failures
// as non-fatal.
func Cleanup(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove extraction dir %s: %w", dir, err)
	}
	return nil
}

// List returns the zip archives directly under srcDir, sorted by name.
func List(srcDir string) ([]string, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("read source dir %s: %w", srcDir, err)
	}

	var archives []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".zip") {
			archives = append(archives, filepath.Join(srcDir, entry.Name()))
		}
	}
	return archives, nil
}
