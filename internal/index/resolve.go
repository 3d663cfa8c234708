package index

import (
	"database/sql"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/starford/iris/internal/models"
	"github.com/starford/iris/internal/parser"
)

// Resolve maps a wikilink target, as written in sourcePath, to an indexed
// note. A bare name is matched by basename: the note in the source
// directory wins, then the shortest path. A target containing '/' is tried
// relative to the source note (./ and ../ only), then from the vault root,
// then as a path suffix. It returns nil when nothing matches.
func (db *DB) Resolve(label, sourcePath string) (*models.FileRef, error) {
	target := strings.TrimSpace(parser.LinkTarget(label))
	if target == "" {
		return nil, nil
	}
	sourceDir := path.Dir(sourcePath)
	if !strings.Contains(target, "/") {
		return db.resolveBasename(target, sourceDir)
	}

	var paths []string
	if strings.HasPrefix(target, "./") || strings.HasPrefix(target, "../") {
		paths = append(paths, path.Join(sourceDir, target))
	}
	paths = append(paths, path.Clean(strings.TrimPrefix(target, "/")))

	for _, p := range paths {
		for _, cand := range withExtension(p) {
			n, err := scanNote(db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE path = ? COLLATE NOCASE`, cand))
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("index: resolve %q: %w", label, err)
			}
			return n.FileRef(), nil
		}
	}

	return db.resolveBasename(target, sourceDir)
}

func (db *DB) resolveBasename(target, sourceDir string) (*models.FileRef, error) {
	clean := strings.TrimSuffix(path.Clean(strings.TrimPrefix(target, "/")), ".md")
	base := path.Base(clean)

	rows, err := db.conn.Query(`SELECT `+noteColumns+` FROM notes WHERE basename = ? COLLATE NOCASE`, base)
	if err != nil {
		return nil, fmt.Errorf("index: resolve %q: %w", target, err)
	}
	defer rows.Close()

	var matches []*NoteRow
	suffix := strings.ToLower("/" + clean + ".md")
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("index: resolve %q: %w", target, err)
		}
		// A partial path such as "trips/Rome" must match the tail of the note path.
		if strings.Contains(clean, "/") && !strings.HasSuffix(strings.ToLower("/"+n.Path), suffix) {
			continue
		}
		matches = append(matches, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: resolve %q: %w", target, err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if sa, sb := a.Dir == sourceDir, b.Dir == sourceDir; sa != sb {
			return sa
		}
		if len(a.Path) != len(b.Path) {
			return len(a.Path) < len(b.Path)
		}
		return a.Path < b.Path
	})
	return matches[0].FileRef(), nil
}

func withExtension(p string) []string {
	if strings.HasSuffix(strings.ToLower(p), ".md") {
		return []string{p}
	}
	return []string{p + ".md", p}
}

// Tags returns the inline #tags of the note at path, '#' included.
func (db *DB) Tags(path string) ([]string, error) {
	n, err := db.GetNote(path)
	if err != nil {
		return nil, err
	}
	return n.InlineTags, nil
}

// Frontmatter returns the parsed frontmatter of the note at path.
func (db *DB) Frontmatter(path string) (map[string]any, error) {
	n, err := db.GetNote(path)
	if err != nil {
		return nil, err
	}
	return n.Frontmatter, nil
}
