// Package testutil provides shared test helpers for setting up vaults, indexes
// and a wired vision service.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"

	"github.com/starford/iris/internal/index"
	"github.com/starford/iris/internal/models"
	"github.com/starford/iris/internal/notecontext"
	"github.com/starford/iris/internal/resultcache"
	"github.com/starford/iris/internal/storage"
	"github.com/starford/iris/internal/vision"
)

// TripNote is a note embedding attachments/tram.png with a section, tags
// and a related link.
const TripNote = `---
tags: [travel]
---
# Lisbon

## Day one
We walked along the river towards [[Belem]].

![[tram.png]]

The yellow tram climbs to the castle. #trams
`

// DefaultFiles is the vault used by NewEnv when files is nil.
func DefaultFiles() map[string]string {
	return map[string]string{
		"travel/lisbon.md":     TripNote,
		"travel/Belem.md":      "# Belem tower\n",
		"attachments/tram.png": "\x89PNG",
	}
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "iris-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault holding files.
func TestVault(t *testing.T, files map[string]string) *storage.FS {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for p, content := range files {
		if err := store.Write(p, []byte(content)); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	return store
}

// Env is a fully wired, indexed vision service over a temporary vault.
type Env struct {
	Vault   *storage.FS
	DB      *index.DB
	Cache   *resultcache.Store
	Service *vision.Service
}

// NewEnv builds an Env. analyzer may be nil; files defaults to DefaultFiles.
func NewEnv(t *testing.T, analyzer vision.Analyzer, files map[string]string) *Env {
	t.Helper()
	if files == nil {
		files = DefaultFiles()
	}
	logger := Logger()
	store := TestVault(t, files)
	db := TestDB(t)
	if err := index.Sync(db, store, logger); err != nil {
		t.Fatalf("sync: %v", err)
	}

	cache := resultcache.New(context.Background(), nil, resultcache.WithLogger(logger))
	extractor := notecontext.New(db, db, notecontext.WithLogger(logger))
	opts := []vision.Option{vision.WithLogger(logger), vision.WithLinkIndex(db)}
	if analyzer != nil {
		opts = append(opts, vision.WithAnalyzer(analyzer))
	}
	return &Env{
		Vault:   store,
		DB:      db,
		Cache:   cache,
		Service: vision.NewService(store, extractor, cache, opts...),
	}
}

// EchoAnalyzer answers "<action>: <filename>" and counts its calls.
type EchoAnalyzer struct {
	Calls atomic.Int32
}

// Analyze implements vision.Analyzer.
func (a *EchoAnalyzer) Analyze(_ context.Context, req vision.AnalysisRequest) (models.AnalysisResult, error) {
	a.Calls.Add(1)
	return models.AnalysisResult{
		Content:   string(req.Action) + ": " + req.Image.Filename,
		ModelUsed: "echo",
		Tokens:    1,
	}, nil
}
