package blobstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/iris/internal/models"
	"github.com/starford/iris/internal/resultcache"
)

var _ resultcache.BlobStore = (*SQLite)(nil)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS analysis_cache (
	key        TEXT PRIMARY KEY,
	content    TEXT NOT NULL DEFAULT '',
	model_used TEXT NOT NULL DEFAULT '',
	tokens     INTEGER NOT NULL DEFAULT 0,
	action     TEXT NOT NULL DEFAULT '',
	image_hash TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
`

// SQLite keeps the cache in the analysis_cache table.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("blobstore: open sqlite: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("blobstore: ping: %w", err)
	}
	if _, err := conn.Exec(sqliteSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("blobstore: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Load reads every row of the table.
func (s *SQLite) Load(ctx context.Context) (map[string]models.CacheEntry, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT key, content, model_used, tokens, action, image_hash, created_at
		FROM analysis_cache
	`)
	if err != nil {
		return nil, fmt.Errorf("blobstore: load: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.CacheEntry)
	for rows.Next() {
		var (
			key    string
			action string
			e      models.CacheEntry
		)
		if err := rows.Scan(&key, &e.Result.Content, &e.Result.ModelUsed, &e.Result.Tokens,
			&action, &e.ImageHash, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("blobstore: scan: %w", err)
		}
		e.Action = models.Action(action)
		out[key] = e
	}
	return out, rows.Err()
}

// Save replaces the table contents within one transaction.
func (s *SQLite) Save(ctx context.Context, entries map[string]models.CacheEntry) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("blobstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.ExecContext(ctx, `DELETE FROM analysis_cache`); err != nil {
		return fmt.Errorf("blobstore: clear table: %w", err)
	}
	if len(entries) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO analysis_cache (key, content, model_used, tokens, action, image_hash, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("blobstore: prepare insert: %w", err)
		}
		defer stmt.Close()
		for k, e := range entries {
			if _, err := stmt.ExecContext(ctx, k, e.Result.Content, e.Result.ModelUsed, e.Result.Tokens,
				string(e.Action), e.ImageHash, e.CreatedAt.UTC()); err != nil {
				return fmt.Errorf("blobstore: insert %s: %w", k, err)
			}
		}
	}
	return tx.Commit()
}
