package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/starford/iris/internal/models"
	"github.com/starford/iris/internal/resultcache"
	"github.com/starford/iris/internal/storage"
)

var _ resultcache.BlobStore = (*File)(nil)

// File keeps the cache in a single JSON document on disk.
type File struct {
	path string
}

// NewFile returns a store backed by the file at path. The file and its
// parent directories are created on first save.
func NewFile(path string) *File {
	return &File{path: path}
}

// Load reads the document. A missing file is an empty cache.
func (f *File) Load(_ context.Context) (map[string]models.CacheEntry, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", f.path, err)
	}
	return decode(data)
}

// Save replaces the document atomically.
func (f *File) Save(_ context.Context, entries map[string]models.CacheEntry) error {
	data, err := encode(entries)
	if err != nil {
		return err
	}
	if err := storage.WriteFileAtomic(f.path, data); err != nil {
		return fmt.Errorf("blobstore: save %s: %w", f.path, err)
	}
	return nil
}
