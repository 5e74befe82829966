package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/platinummonkey/warden/pkg/apperr"
)

// FileSystemStore implements ArtifactStore using the local filesystem
type FileSystemStore struct {
	rootDir string
}

// NewFileSystemStore creates a new filesystem-based artifact store
func NewFileSystemStore(rootDir string) (*FileSystemStore, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FileSystemStore{rootDir: rootDir}, nil
}

func (s *FileSystemStore) path(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.rootDir, filepath.FromSlash(cleaned)), nil
}

// Put implements ArtifactStore.Put. The file appears under its final name only once fully written.
func (s *FileSystemStore) Put(ctx context.Context, key string, content io.Reader, contentType string) (string, error) {
	target, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create artifact file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to move artifact into place: %w", err)
	}

	return target, nil
}

// Get implements ArtifactStore.Get
func (s *FileSystemStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	target, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.NotFound("artifact", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return f, nil
}

// Delete implements ArtifactStore.Delete. Deleting a missing key is not an error.
func (s *FileSystemStore) Delete(ctx context.Context, key string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

// HealthCheck verifies the root directory is still present and writable
func (s *FileSystemStore) HealthCheck(ctx context.Context) error {
	f, err := os.CreateTemp(s.rootDir, ".health-*")
	if err != nil {
		return fmt.Errorf("artifact root not writable: %w", err)
	}
	f.Close()
	return os.Remove(f.Name())
}
