package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/starford/iris/internal/blobstore"
	"github.com/starford/iris/internal/index"
	"github.com/starford/iris/internal/notecontext"
	"github.com/starford/iris/internal/resultcache"
	"github.com/starford/iris/internal/storage"
	"github.com/starford/iris/internal/vision"
)

// Session is an opened vault with its index, result cache and analysis
// service. Close releases them in reverse order.
type Session struct {
	Config  *Config
	Logger  *slog.Logger
	Store   *storage.FS
	DB      *index.DB
	Cache   *resultcache.Store
	Service *vision.Service

	closers []func() error
}

// Open loads the vault, syncs the index and opens the result cache without
// starting any server. It backs the one-shot CLI commands.
func Open(ctx context.Context, opts ...Option) (*Session, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	return app.open(ctx, nil)
}

// Close flushes the cache and closes every resource.
func (s *Session) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) newLogger() *slog.Logger {
	var w io.Writer = a.logOutput
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

// open wires storage, index, cache and service. publisher may be nil.
func (a *application) open(ctx context.Context, publisher vision.Publisher) (_ *Session, err error) {
	cfg := a.config
	logger := a.newLogger()
	slog.SetDefault(logger)

	s := &Session{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	s.Store, err = storage.NewFS(cfg.Vault.Path, cfg.Vault.Exclude...)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	s.DB, err = index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	s.closers = append(s.closers, s.DB.Close)

	// Run initial sync.
	if err := index.Sync(s.DB, s.Store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	blob, closeBlob, err := a.openBlobStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("init cache backend: %w", err)
	}
	if closeBlob != nil {
		s.closers = append(s.closers, closeBlob)
	}

	s.Cache = resultcache.New(ctx, blob,
		resultcache.WithMaxAge(cfg.Cache.MaxAge),
		resultcache.WithMaxEntries(cfg.Cache.MaxEntries),
		resultcache.WithLogger(logger),
	)
	s.closers = append(s.closers, s.Cache.Close)

	extractor := notecontext.New(s.DB, s.DB, notecontext.WithLogger(logger))
	svcOpts := []vision.Option{
		vision.WithLogger(logger),
		vision.WithLinkIndex(s.DB),
	}
	if cfg.Analyzer.Enabled() {
		svcOpts = append(svcOpts, vision.WithAnalyzer(
			vision.NewHTTPAnalyzer(cfg.Analyzer.Endpoint, cfg.Analyzer.Token, cfg.Analyzer.Timeout)))
	}
	if publisher != nil {
		svcOpts = append(svcOpts, vision.WithPublisher(publisher))
	}
	s.Service = vision.NewService(s.Store, extractor, s.Cache, svcOpts...)

	logger.Info("Vault opened",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("cache_backend", cfg.Cache.Backend),
		slog.Int("cache_entries", s.Cache.Stats().Total),
		slog.Bool("analyzer", cfg.Analyzer.Enabled()))
	return s, nil
}

// openBlobStore returns the configured cache backend and its closer, if any.
func (a *application) openBlobStore(ctx context.Context) (resultcache.BlobStore, func() error, error) {
	cfg := a.config.Cache
	switch cfg.Backend {
	case CacheBackendSQLite:
		blob, err := blobstore.OpenSQLite(a.config.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return blob, blob.Close, nil
	case CacheBackendS3:
		dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		blob, err := blobstore.DialS3(dialCtx, blobstore.S3Options{
			Bucket:   cfg.S3.Bucket,
			Key:      cfg.S3.Key,
			Region:   cfg.S3.Region,
			Profile:  cfg.S3.Profile,
			Endpoint: cfg.S3.Endpoint,
		})
		if err != nil {
			return nil, nil, err
		}
		return blob, nil, nil
	default:
		return blobstore.NewFile(cfg.File), nil, nil
	}
}
