// Package vision coordinates image analysis for vault notes: it locates the
// image, extracts its note context, derives the cache key and consults the
// result cache before calling the analyzer.
package vision

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/starford/iris/internal/apperr"
	"github.com/starford/iris/internal/fingerprint"
	"github.com/starford/iris/internal/imageref"
	"github.com/starford/iris/internal/models"
	"github.com/starford/iris/internal/notecontext"
	"github.com/starford/iris/internal/resultcache"
	"github.com/starford/iris/internal/sse"
	"github.com/starford/iris/internal/storage"
)

// Publisher receives cache change notifications.
type Publisher interface {
	Publish(event sse.Event)
}

// LinkIndex lists the notes that link to or embed a target.
type LinkIndex interface {
	Backlinks(target string) ([]string, error)
}

// NoteImage is an image embedded in a note.
type NoteImage struct {
	models.ImageIdentity
	Syntax imageref.Syntax `json:"syntax"`
	Index  int             `json:"index"`
	// Missing is set for vault images whose file could not be found.
	Missing bool `json:"missing,omitempty"`
}

// ContextResult is the context snapshot of one embedded image.
type ContextResult struct {
	Image   models.ImageIdentity `json:"image"`
	Context models.NoteContext   `json:"context"`
	// Keys maps every action to the cache key the context produces.
	Keys map[models.Action]string `json:"keys"`
}

// Outcome is the answer to a lookup or analysis.
type Outcome struct {
	Key    string                `json:"key"`
	Image  models.ImageIdentity  `json:"image"`
	Result models.AnalysisResult `json:"result"`
	Cached bool                  `json:"cached"`
}

// CachedEntry is a cache entry together with its key.
type CachedEntry struct {
	Key string `json:"key"`
	models.CacheEntry
}

// Service implements the image-analysis use cases.
type Service struct {
	store     storage.Provider
	extractor *notecontext.Extractor
	cache     *resultcache.Store
	analyzer  Analyzer
	links     LinkIndex
	events    Publisher
	logger    *slog.Logger

	// inflight admits one analyzer call at a time.
	inflight *semaphore.Weighted
}

// Option configures a Service.
type Option func(*Service)

// WithAnalyzer sets the analyzer. Without one, Analyze only serves hits.
func WithAnalyzer(a Analyzer) Option {
	return func(s *Service) { s.analyzer = a }
}

// WithLinkIndex enables Usages.
func WithLinkIndex(l LinkIndex) Option {
	return func(s *Service) { s.links = l }
}

// WithPublisher sets the event sink for cache changes.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service.
func NewService(store storage.Provider, extractor *notecontext.Extractor, cache *resultcache.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		extractor: extractor,
		cache:     cache,
		logger:    slog.Default(),
		inflight:  semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// readNote returns the text of a note, mapping a missing file to apperr.ErrNotFound.
func (s *Service) readNote(notePath string) (string, error) {
	data, err := s.store.Read(notePath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("vision: note %s: %w", notePath, apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("vision: read note: %w", err)
	}
	return string(data), nil
}

// Images lists the images embedded in a note, in document order.
func (s *Service) Images(_ context.Context, notePath string) ([]NoteImage, error) {
	text, err := s.readNote(notePath)
	if err != nil {
		return nil, err
	}
	refs := imageref.Scan(text)
	out := make([]NoteImage, 0, len(refs))
	for _, ref := range refs {
		img := imageref.Detect(notePath, ref.Target, s.store.Exists)
		out = append(out, NoteImage{
			ImageIdentity: img,
			Syntax:        ref.Syntax,
			Index:         ref.Index,
			Missing:       !img.External && !s.store.Exists(img.Path),
		})
	}
	return out, nil
}

type prepared struct {
	image   models.ImageIdentity
	context models.NoteContext
	key     string
}

// prepare runs locate, context extraction and fingerprinting for req.
func (s *Service) prepare(req Request) (prepared, error) {
	if err := req.Validate(); err != nil {
		return prepared{}, err
	}
	text, err := s.readNote(req.Note)
	if err != nil {
		return prepared{}, err
	}

	img := imageref.Detect(req.Note, req.Image, s.store.Exists)
	var match *imageref.Match
	if m, ok := imageref.Locate(text, img.Path, img.RawRef); ok {
		match = &m
	} else {
		s.logger.Debug("vision: image reference not found in note",
			slog.String("note", req.Note), slog.String("image", req.Image))
	}
	nc := s.extractor.Build(notecontext.Document{Path: req.Note, Text: text}, match)

	var keyCtx *models.NoteContext
	if !req.NoContext {
		keyCtx = &nc
	}
	return prepared{
		image:   img,
		context: nc,
		key:     fingerprint.Build(img, req.Action, keyCtx, req.Instruction),
	}, nil
}

// BuildContext returns the context of image inside note together with the
// cache key of every non-custom action.
func (s *Service) BuildContext(_ context.Context, note, image string) (*ContextResult, error) {
	p, err := s.prepare(Request{Note: note, Image: image, Action: models.ActionDescribe})
	if err != nil {
		return nil, err
	}
	keys := make(map[models.Action]string, len(models.Actions))
	for _, a := range models.Actions {
		if a == models.ActionCustom {
			continue
		}
		keys[a] = fingerprint.Build(p.image, a, &p.context, "")
	}
	return &ContextResult{Image: p.image, Context: p.context, Keys: keys}, nil
}

// Lookup returns the cached analysis for req, or apperr.ErrNotFound.
func (s *Service) Lookup(_ context.Context, req Request) (*Outcome, error) {
	p, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	result, ok := s.cache.Get(p.key)
	if !ok {
		return nil, fmt.Errorf("vision: lookup %s: %w", p.key, apperr.ErrNotFound)
	}
	return &Outcome{Key: p.key, Image: p.image, Result: result, Cached: true}, nil
}

// Analyze serves req from the cache, or calls the analyzer and caches the
// result. At most one analyzer call runs at a time; callers queue until
// ctx is done.
func (s *Service) Analyze(ctx context.Context, req Request) (*Outcome, error) {
	p, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	if result, ok := s.cache.Get(p.key); ok {
		return &Outcome{Key: p.key, Image: p.image, Result: result, Cached: true}, nil
	}
	if s.analyzer == nil {
		return nil, fmt.Errorf("vision: analyze: %w", apperr.ErrAnalyzerUnavailable)
	}

	if err := s.inflight.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("vision: wait for analyzer: %w", err)
	}
	defer s.inflight.Release(1)

	// A queued call for the same key may have filled the cache meanwhile.
	if result, ok := s.cache.Get(p.key); ok {
		return &Outcome{Key: p.key, Image: p.image, Result: result, Cached: true}, nil
	}

	areq := AnalysisRequest{
		Image:       p.image,
		Action:      req.Action,
		Instruction: req.Instruction,
	}
	if !req.NoContext {
		areq.Context = &p.context
	}
	if !p.image.External {
		data, err := s.readImage(p.image)
		if err != nil {
			return nil, err
		}
		areq.Data = data
	}

	result, err := s.analyzer.Analyze(ctx, areq)
	if err != nil {
		s.logger.Warn("vision: analyzer failed",
			slog.String("key", p.key),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("vision: analyze %s: %w: %w", p.key, apperr.ErrAnalyzerUnavailable, err)
	}

	s.cache.Put(p.key, result)
	s.logger.Info("vision: analyzed",
		slog.String("key", p.key),
		slog.String("action", string(req.Action)),
		slog.String("model", result.ModelUsed),
		slog.Int("tokens", result.Tokens))
	s.publish(sse.TypeCacheStored, map[string]string{"key": p.key, "image": p.image.Path, "action": string(req.Action)})
	return &Outcome{Key: p.key, Image: p.image, Result: result}, nil
}

// ImageData returns the identity and bytes of a vault image embedded in
// note. External images have no bytes and yield apperr.ErrInvalidInput.
func (s *Service) ImageData(_ context.Context, note, image string) (models.ImageIdentity, []byte, error) {
	if strings.TrimSpace(note) == "" || strings.TrimSpace(image) == "" {
		return models.ImageIdentity{}, nil, fmt.Errorf("vision: note and image are required: %w", apperr.ErrInvalidInput)
	}
	img := imageref.Detect(note, image, s.store.Exists)
	if img.External {
		return img, nil, fmt.Errorf("vision: %s is external: %w", image, apperr.ErrInvalidInput)
	}
	data, err := s.readImage(img)
	if err != nil {
		return img, nil, err
	}
	return img, data, nil
}

func (s *Service) readImage(img models.ImageIdentity) ([]byte, error) {
	data, err := s.store.Read(img.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("vision: image %s: %w", img.Path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("vision: read image: %w", err)
	}
	return data, nil
}

// Store caches result under key, e.g. a result produced out of band.
func (s *Service) Store(_ context.Context, key string, result models.AnalysisResult) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("vision: store: empty key: %w", apperr.ErrInvalidInput)
	}
	if strings.TrimSpace(result.Content) == "" {
		return fmt.Errorf("vision: store: empty content: %w", apperr.ErrInvalidInput)
	}
	s.cache.Put(key, result)
	s.publish(sse.TypeCacheStored, map[string]string{"key": key})
	return nil
}

// Cached returns the live entry for key, or apperr.ErrNotFound. Expired
// entries are evicted and reported as missing. Inspection leaves recency
// and the hit counters untouched.
func (s *Service) Cached(_ context.Context, key string) (*CachedEntry, error) {
	e, ok := s.cache.Peek(key)
	if !ok {
		return nil, fmt.Errorf("vision: cache entry %s: %w", key, apperr.ErrNotFound)
	}
	return &CachedEntry{Key: key, CacheEntry: e}, nil
}

// Entries lists resident entries from least to most recently used,
// without touching recency or expiry.
func (s *Service) Entries(_ context.Context) []CachedEntry {
	keys := s.cache.Keys()
	out := make([]CachedEntry, 0, len(keys))
	for _, k := range keys {
		if e, ok := s.cache.Entry(k); ok {
			out = append(out, CachedEntry{Key: k, CacheEntry: e})
		}
	}
	return out
}

// Invalidate drops key from the cache.
func (s *Service) Invalidate(_ context.Context, key string) {
	s.cache.Invalidate(key)
	s.publish(sse.TypeCacheInvalidated, map[string]string{"key": key})
}

// Clear empties the cache.
func (s *Service) Clear(_ context.Context) {
	s.cache.Clear()
	s.publish(sse.TypeCacheCleared, map[string]string{})
}

// Stats reports cache counters.
func (s *Service) Stats(_ context.Context) resultcache.Stats {
	return s.cache.Stats()
}

// Usages lists the notes that embed or link to image, as written.
func (s *Service) Usages(_ context.Context, image string) ([]string, error) {
	if s.links == nil {
		return []string{}, nil
	}
	notes, err := s.links.Backlinks(image)
	if err != nil {
		return nil, fmt.Errorf("vision: usages: %w", err)
	}
	if notes == nil {
		notes = []string{}
	}
	return notes, nil
}

func (s *Service) publish(kind string, data any) {
	if s.events != nil {
		s.events.Publish(sse.Event{Type: kind, Data: data})
	}
}
