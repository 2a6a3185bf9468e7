package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// validToken keeps export tokens safe to use as file names.
var validToken = regexp.MustCompile(`^[a-f0-9]{16,64}$`)

// FileSystem stores exported bundles on disk at {baseDir}/{token}.zip.
type FileSystem struct {
	baseDir string
}

// NewFileSystem creates a new FileSystem storage, ensuring the base directory exists.
func NewFileSystem(baseDir string) (*FileSystem, error) {
	// MkdirAll creates the directory and all parents (like mkdir -p).
	// 0755 is the Unix permission mode: owner rwx, group rx, others rx.
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	return &FileSystem{baseDir: baseDir}, nil
}

// ExportPath returns the filesystem path for an export bundle.
func (fs *FileSystem) ExportPath(token string) string {
	return filepath.Join(fs.baseDir, token+".zip")
}

// Read reads a stored bundle. Unknown tokens return ErrNotFound.
func (fs *FileSystem) Read(token string) ([]byte, error) {
	if !validToken.MatchString(token) {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(fs.ExportPath(token))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading export %s: %w", token, err)
	}
	return data, nil
}

// Write saves a bundle. It writes to a temp file first and renames it into
// place, so readers never see a partial archive.
func (fs *FileSystem) Write(token string, data []byte) error {
	if !validToken.MatchString(token) {
		return fmt.Errorf("invalid export token %q", token)
	}

	tmp, err := os.CreateTemp(fs.baseDir, token+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing export %s: %w", token, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing export %s: %w", token, err)
	}
	// 0644: owner rw, group r, others r. Standard for non-executable files.
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("setting export permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.ExportPath(token)); err != nil {
		return fmt.Errorf("storing export %s: %w", token, err)
	}
	return nil
}

// Delete removes a stored bundle. Missing bundles are not an error.
func (fs *FileSystem) Delete(token string) error {
	if !validToken.MatchString(token) {
		return nil
	}
	err := os.Remove(fs.ExportPath(token))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting export %s: %w", token, err)
	}
	return nil
}
