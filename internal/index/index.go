package index

import (
	"github.com/starford/iris/internal/models"
	"github.com/starford/iris/internal/notecontext"
)

// NoteIndex defines the interface for note indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NoteIndex interface {
	notecontext.LinkResolver
	notecontext.MetadataSource

	UpsertNote(n NoteRow, links []string) error
	DeleteNote(path string) error
	GetChecksum(path string) (string, error)
	GetNote(path string) (*NoteRow, error)
	AllChecksums() (map[string]string, error)
	Backlinks(target string) ([]string, error)
	Count() (int, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)

// FileRef converts a row into the reference returned by link resolution.
func (n NoteRow) FileRef() *models.FileRef {
	return &models.FileRef{Path: n.Path, Basename: n.Basename, FirstHeading: n.FirstHeading}
}
