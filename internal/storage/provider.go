// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/iris/internal/models"

// Provider is the interface for vault file operations. Paths are
// slash-separated and relative to the vault root.
type Provider interface {
	// List returns metadata for every non-excluded .md file under dir.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) bool
	// Excluded reports whether path matches one of the exclude globs.
	Excluded(path string) bool
}
