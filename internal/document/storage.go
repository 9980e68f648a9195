package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Storage is the object store holding original uploads and normalized
// attachments, addressed by slash-separated keys.
type Storage interface {
	// Put stores an object under key.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get retrieves an object by key.
	Get(ctx context.Context, key string) ([]byte, error)
}

// LocalStorage implements Storage on the local filesystem, one file per key
// under a base directory.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a LocalStorage rooted at basePath.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Put stores an object; intermediate key directories are created as needed.
func (l *LocalStorage) Put(_ context.Context, key string, data []byte, _ string) error {
	path := filepath.Join(l.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating object directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing object: %w", err)
	}
	return nil
}

// Get retrieves an object by key.
func (l *LocalStorage) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, filepath.FromSlash(key)))
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", key, err)
	}
	return data, nil
}
