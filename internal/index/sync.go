package index

import (
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/starford/iris/internal/checksum"
	"github.com/starford/iris/internal/imageref"
	"github.com/starford/iris/internal/parser"
	"github.com/starford/iris/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk (or now excluded) are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, m.Path, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexFile parses data and upserts it into the DB.
func indexFile(db *DB, p string, data []byte, updated time.Time) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	if updated.IsZero() {
		updated = time.Now()
	}

	row := NoteRow{
		Path:         p,
		Dir:          path.Dir(p),
		Basename:     strings.TrimSuffix(path.Base(p), ".md"),
		Title:        res.Title,
		FirstHeading: res.FirstHeading(),
		Checksum:     checksum.Sum(data),
		Tags:         res.Tags,
		InlineTags:   res.InlineTags,
		Frontmatter:  res.Frontmatter,
		Embeds:       embedTargets(res.Body),
		UpdatedAt:    updated,
	}
	return db.UpsertNote(row, res.Links)
}

// embedTargets lists the vault image targets embedded in body, in every
// embed syntax, as written and URL-decoded when that differs.
func embedTargets(body string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(t string) {
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, ref := range imageref.Scan(body) {
		if ref.External() {
			continue
		}
		add(ref.Target)
		if dec, err := url.PathUnescape(ref.Target); err == nil && dec != ref.Target {
			add(dec)
		}
	}
	return out
}

// refreshFile re-indexes p when its content no longer matches the index.
// It reports whether the index changed.
func refreshFile(db *DB, store storage.Provider, p string) (bool, error) {
	data, err := store.Read(p)
	if err != nil {
		return false, err
	}
	stored, err := db.GetChecksum(p)
	if err != nil {
		return false, err
	}
	if !checksum.Changed(stored, data) {
		return false, nil
	}
	return true, indexFile(db, p, data, time.Now())
}
