package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// ArtifactStore keeps raw scanner output files after their contents are archived
type ArtifactStore interface {
	// Put stores content under key and returns where it landed
	Put(ctx context.Context, key string, content io.Reader, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	HealthCheck(ctx context.Context) error
}

// Config for artifact backend
type Config struct {
	Backend string // "filesystem", "s3" or "none"

	// Filesystem config
	FilesystemRoot string

	// S3 config
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3Prefix       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}

// New builds the configured artifact store. Backend "none" returns a nil store.
func New(ctx context.Context, cfg Config) (ArtifactStore, error) {
	switch cfg.Backend {
	case "none", "":
		return nil, nil
	case "filesystem":
		return NewFileSystemStore(cfg.FilesystemRoot)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported artifact backend %q", cfg.Backend)
	}
}

// BackendName labels a store in metrics and logs
func BackendName(store ArtifactStore) string {
	switch store.(type) {
	case nil:
		return "none"
	case *FileSystemStore:
		return "filesystem"
	case *S3Store:
		return "s3"
	default:
		return "custom"
	}
}

// MoveFile uploads a local file to store under key and removes the local copy
func MoveFile(ctx context.Context, store ArtifactStore, localPath, key, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}

	location, err := store.Put(ctx, key, f, contentType)
	f.Close()
	if err != nil {
		return "", err
	}

	if err := os.Remove(localPath); err != nil {
		return location, fmt.Errorf("failed to remove local artifact: %w", err)
	}
	return location, nil
}

// cleanKey normalizes a slash-separated key and rejects escapes from the store root
func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return cleaned, nil
}
