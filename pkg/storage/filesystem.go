package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// LocalStorage persists invoice documents on disk under a base directory.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./invoices"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create invoice directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Save writes the given bytes to the provided relative path under the base dir.
func (s *LocalStorage) Save(filename string, data []byte) (string, error) {
	path := s.resolve(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare invoice directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write invoice file: %w", err)
	}
	return filename, nil
}

// Open returns a read-only handle for the stored file.
func (s *LocalStorage) Open(filename string) (*os.File, error) {
	path := s.resolve(filename)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open invoice file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(filename string) error {
	path := s.resolve(filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete invoice file: %w", err)
	}
	return nil
}

// Path exposes the underlying absolute path.
func (s *LocalStorage) Path(filename string) string {
	return s.resolve(filename)
}

func (s *LocalStorage) resolve(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(s.baseDir, filename)
}
