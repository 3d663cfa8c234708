// Package notecontext derives the structural context of an image embedded
// in a note: surrounding text, enclosing heading section, nearby wikilinks,
// tags and frontmatter.
package notecontext

import (
	"log/slog"
	"path"
	"strings"

	"github.com/starford/iris/internal/imageref"
	"github.com/starford/iris/internal/models"
)

const (
	// DefaultLinkWindow is how many characters on each side of the image
	// are scanned for wikilinks.
	DefaultLinkWindow = 800
	// DefaultSectionLimit caps the section text, in characters.
	DefaultSectionLimit = 1200
)

// LinkResolver resolves a wikilink label written in sourcePath to a note.
// A nil FileRef with a nil error means the link does not resolve.
type LinkResolver interface {
	Resolve(label, sourcePath string) (*models.FileRef, error)
}

// MetadataSource serves cached note metadata keyed by note path.
type MetadataSource interface {
	// Tags returns the inline tag annotations of the note, '#' optional.
	Tags(path string) ([]string, error)
	// Frontmatter returns the parsed frontmatter, or nil.
	Frontmatter(path string) (map[string]any, error)
}

// Document is the raw text of a note together with its vault path.
type Document struct {
	Path string
	Text string
}

// Extractor builds NoteContext snapshots.
type Extractor struct {
	resolver     LinkResolver
	meta         MetadataSource
	logger       *slog.Logger
	linkWindow   int
	sectionLimit int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for dropped links and metadata.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithLinkWindow overrides DefaultLinkWindow.
func WithLinkWindow(n int) Option {
	return func(e *Extractor) { e.linkWindow = n }
}

// WithSectionLimit overrides DefaultSectionLimit.
func WithSectionLimit(n int) Option {
	return func(e *Extractor) { e.sectionLimit = n }
}

// New creates an Extractor. resolver and meta may be nil, in which case
// related links or tags/frontmatter are left empty.
func New(resolver LinkResolver, meta MetadataSource, opts ...Option) *Extractor {
	e := &Extractor{
		resolver:     resolver,
		meta:         meta,
		logger:       slog.Default(),
		linkWindow:   DefaultLinkWindow,
		sectionLimit: DefaultSectionLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Build returns the context of the image reference at m inside doc. When m
// is nil (the reference is no longer in the text) the flanking text is
// empty and the remaining fields are computed as if the image sat at the
// start of the document. Build never fails; collaborator errors only drop
// the affected links or metadata.
func (e *Extractor) Build(doc Document, m *imageref.Match) models.NoteContext {
	nc := models.NoteContext{
		NotePath: doc.Path,
		NoteName: NoteName(doc.Path),
	}

	anchor, end := 0, 0
	if m != nil && m.Index >= 0 && m.Length >= 0 && m.End() <= len(doc.Text) {
		anchor, end = m.Index, m.End()
		idx, length := m.Index, m.Length
		nc.MatchIndex = &idx
		nc.MatchLength = &length
		nc.TextBefore = strings.TrimSpace(doc.Text[:anchor])
		nc.TextAfter = strings.TrimSpace(doc.Text[end:])
	}

	nc.RelatedLinks = nonNilSlice(e.relatedLinks(doc, anchor, end))

	sec := SectionAt(doc.Text, anchor, e.sectionLimit)
	nc.SectionPath = nonNilSlice(sec.Path)
	nc.SectionTitle = sec.Title
	nc.SectionText = sec.Text

	nc.Tags, nc.Frontmatter = e.metadata(doc.Path)
	nc.Tags = nonNilSlice(nc.Tags)
	return nc
}

// NoteName returns the basename of a note path without its extension.
func NoteName(p string) string {
	base := path.Base(p)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
