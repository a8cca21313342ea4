package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileStore saves attachments to disk under a base directory. Used when no
// object storage is configured; PresignGet returns the on-disk path.
type FileStore struct {
	basePath string
}

// NewFileStore creates the base directory if missing.
func NewFileStore(basePath string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// Store writes the attachment under a property-specific folder and returns
// the path relative to the base directory as the handle.
func (f *FileStore) Store(_ context.Context, propertyID uint, filename string, r io.Reader, _ int64, _ string) (string, error) {
	relDir := fmt.Sprint(propertyID)
	if err := os.MkdirAll(filepath.Join(f.basePath, relDir), 0o755); err != nil {
		return "", fmt.Errorf("create property dir: %w", err)
	}
	handle := filepath.Join(relDir, uuid.NewString()+"_"+SafeFilename(filename))
	out, err := os.Create(filepath.Join(f.basePath, handle))
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return handle, nil
}

// PresignGet returns the local path of the stored attachment.
func (f *FileStore) PresignGet(_ context.Context, handle string, _ time.Duration) (string, error) {
	full := filepath.Join(f.basePath, handle)
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("stat file: %w", err)
	}
	return full, nil
}

// Delete removes the stored attachment. A missing file is not an error.
func (f *FileStore) Delete(_ context.Context, handle string) error {
	err := os.Remove(filepath.Join(f.basePath, handle))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}
