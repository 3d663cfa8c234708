package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/iris/internal/apperr"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path         string
	Dir          string
	Basename     string
	Title        string
	FirstHeading string
	Checksum     string
	Tags         []string
	InlineTags   []string
	Frontmatter  map[string]any
	// Embeds are the image targets the note embeds, as written.
	Embeds    []string
	UpdatedAt time.Time
}

// UpsertNote inserts or replaces a note and its links within a transaction.
func (db *DB) UpsertNote(n NoteRow, links []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON := marshalOr(n.Tags, "[]")
	inlineJSON := marshalOr(n.InlineTags, "[]")
	fmJSON := marshalFrontmatter(n.Frontmatter)

	_, err = tx.Exec(`
		INSERT INTO notes (path, dir, basename, title, first_heading, checksum, tags, inline_tags, frontmatter, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			dir           = excluded.dir,
			basename      = excluded.basename,
			title         = excluded.title,
			first_heading = excluded.first_heading,
			checksum      = excluded.checksum,
			tags          = excluded.tags,
			inline_tags   = excluded.inline_tags,
			frontmatter   = excluded.frontmatter,
			updated_at    = excluded.updated_at
	`, n.Path, n.Dir, n.Basename, n.Title, n.FirstHeading, n.Checksum, tagsJSON, inlineJSON, fmJSON, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// Replace links: delete old then bulk insert.
	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, n.Path); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	// Embeds go first so a wikilink embed keeps the embed type.
	if err := insertLinks(tx, n.Path, "embed", n.Embeds); err != nil {
		return err
	}
	if err := insertLinks(tx, n.Path, "inline", links); err != nil {
		return err
	}

	return tx.Commit()
}

func insertLinks(tx *sql.Tx, source, kind string, targets []string) error {
	if len(targets) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, type) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare link insert: %w", err)
	}
	defer stmt.Close()
	for _, target := range targets {
		if _, err := stmt.Exec(source, target, kind); err != nil {
			return fmt.Errorf("index: insert link: %w", err)
		}
	}
	return nil
}

// DeleteNote removes a note and its outgoing links.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, path); err != nil {
		return fmt.Errorf("index: delete links: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil // not found is fine
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

const noteColumns = `path, dir, basename, title, first_heading, checksum, tags, inline_tags, frontmatter, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(s rowScanner) (*NoteRow, error) {
	var (
		n                        NoteRow
		tagsJSON, inline, fmJSON string
	)
	if err := s.Scan(&n.Path, &n.Dir, &n.Basename, &n.Title, &n.FirstHeading, &n.Checksum,
		&tagsJSON, &inline, &fmJSON, &n.UpdatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(tagsJSON), &n.Tags)
	_ = json.Unmarshal([]byte(inline), &n.InlineTags)
	_ = json.Unmarshal([]byte(fmJSON), &n.Frontmatter)
	return &n, nil
}

// GetNote returns the indexed row for path, or apperr.ErrNotFound.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	n, err := scanNote(db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return n, nil
}

// AllChecksums returns path → checksum for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Count returns the number of indexed notes.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

// Backlinks returns all note paths that link to, or embed, the given target
// as written.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM links WHERE target = ? ORDER BY source`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// marshalFrontmatter encodes fm as a JSON object. Nested YAML mappings
// with non-string keys are converted to string-keyed maps; a top-level key
// whose value still cannot be encoded is dropped on its own.
func marshalFrontmatter(fm map[string]any) string {
	if len(fm) == 0 {
		return "{}"
	}
	out := make(map[string]json.RawMessage, len(fm))
	for k, v := range fm {
		data, err := json.Marshal(jsonValue(v))
		if err != nil {
			continue
		}
		out[k] = data
	}
	return marshalOr(out, "{}")
}

// jsonValue rewrites YAML-decoded values into shapes encoding/json accepts.
func jsonValue(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = jsonValue(e)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = jsonValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = jsonValue(e)
		}
		return s
	default:
		return v
	}
}

func marshalOr(v any, fallback string) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return fallback
	}
	return string(data)
}
