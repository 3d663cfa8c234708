// Package resultcache keeps analysis results keyed by request fingerprint,
// with lazy TTL expiry on read and LRU eviction on write. State is written
// through to a BlobStore in the background; the in-memory map is always
// authoritative.
package resultcache

import (
	"container/list"
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/iris/internal/fingerprint"
	"github.com/starford/iris/internal/models"
)

const (
	DefaultMaxAge      = 7 * 24 * time.Hour
	DefaultMaxEntries  = 500
	defaultSaveTimeout = 30 * time.Second
)

// BlobStore persists the whole cache as one map.
type BlobStore interface {
	// Load returns the persisted entries, or nil when nothing was saved yet.
	Load(ctx context.Context) (map[string]models.CacheEntry, error)
	// Save replaces the persisted entries.
	Save(ctx context.Context, entries map[string]models.CacheEntry) error
}

// Stats counts resident entries by TTL status, plus lookup counters.
type Stats struct {
	Valid   int   `json:"valid"`
	Expired int   `json:"expired"`
	Total   int   `json:"total"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Store is the result cache. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[string]models.CacheEntry
	// recency orders keys from least (front) to most (back) recently used.
	recency *list.List
	elems   map[string]*list.Element

	maxAge      time.Duration
	maxEntries  int
	saveTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64

	writer *writer
}

// Option configures a Store.
type Option func(*Store)

// WithMaxAge sets the entry TTL. A value <= 0 disables expiry.
func WithMaxAge(d time.Duration) Option {
	return func(s *Store) { s.maxAge = d }
}

// WithMaxEntries bounds the number of entries. A value <= 0 disables eviction.
func WithMaxEntries(n int) Option {
	return func(s *Store) { s.maxEntries = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithSaveTimeout bounds each background save.
func WithSaveTimeout(d time.Duration) Option {
	return func(s *Store) { s.saveTimeout = d }
}

// New creates a Store and loads its prior state from blob. A load failure
// is logged and the store starts empty. blob may be nil for a memory-only
// cache.
func New(ctx context.Context, blob BlobStore, opts ...Option) *Store {
	s := &Store{
		entries:     make(map[string]models.CacheEntry),
		recency:     list.New(),
		elems:       make(map[string]*list.Element),
		maxAge:      DefaultMaxAge,
		maxEntries:  DefaultMaxEntries,
		saveTimeout: defaultSaveTimeout,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if blob == nil {
		return s
	}
	s.load(ctx, blob)
	s.writer = newWriter(blob, s.saveTimeout, s.logger)
	return s
}

// load fills the store from blob. Only creation times survive a restart,
// so recency is rebuilt oldest first.
func (s *Store) load(ctx context.Context, blob BlobStore) {
	prior, err := blob.Load(ctx)
	if err != nil {
		s.logger.Warn("result cache: load failed, starting empty", slog.String("error", err.Error()))
		return
	}

	keys := make([]string, 0, len(prior))
	for k := range prior {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := prior[keys[i]].CreatedAt, prior[keys[j]].CreatedAt
		if ci.Equal(cj) {
			return keys[i] < keys[j]
		}
		return ci.Before(cj)
	})
	for _, k := range keys {
		s.entries[k] = prior[k]
		s.elems[k] = s.recency.PushBack(k)
	}
	s.logger.Debug("result cache: loaded", slog.Int("entries", len(keys)))
}

// Get returns the cached result for key. An entry older than the TTL is
// evicted and reported as a miss.
func (s *Store) Get(key string) (models.AnalysisResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		s.misses.Add(1)
		return models.AnalysisResult{}, false
	}
	if s.expired(entry) {
		s.remove(key)
		s.persist()
		s.misses.Add(1)
		return models.AnalysisResult{}, false
	}
	s.recency.MoveToBack(s.elems[key])
	s.hits.Add(1)
	return entry.Result, true
}

// Put stores result under key, marks it most recently used and evicts the
// least recently used entries beyond the size bound.
func (s *Store) Put(key string, result models.AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := models.CacheEntry{Result: result, CreatedAt: s.now()}
	if imageHash, action, ok := fingerprint.Parse(key); ok {
		entry.ImageHash = imageHash
		entry.Action = action
	}
	s.entries[key] = entry
	if el, ok := s.elems[key]; ok {
		s.recency.MoveToBack(el)
	} else {
		s.elems[key] = s.recency.PushBack(key)
	}

	if s.maxEntries > 0 {
		for len(s.entries) > s.maxEntries {
			oldest := s.recency.Front()
			evicted := oldest.Value.(string)
			s.remove(evicted)
			s.logger.Debug("result cache: evicted", slog.String("key", evicted))
		}
	}
	s.persist()
}

// Invalidate removes key. Removing an absent key is not an error.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return
	}
	s.remove(key)
	s.persist()
}

// Clear removes every entry and resets the hit and miss counters.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]models.CacheEntry)
	s.elems = make(map[string]*list.Element)
	s.recency.Init()
	s.hits.Store(0)
	s.misses.Store(0)
	s.persist()
}

// Stats counts entries by TTL status without evicting expired ones.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Total: len(s.entries), Hits: s.hits.Load(), Misses: s.misses.Load()}
	for _, e := range s.entries {
		if s.expired(e) {
			st.Expired++
		} else {
			st.Valid++
		}
	}
	return st
}

// Peek returns the live entry for key without touching recency or the hit
// and miss counters. An expired entry is evicted and reported as missing.
func (s *Store) Peek(key string) (models.CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return models.CacheEntry{}, false
	}
	if s.expired(entry) {
		s.remove(key)
		s.persist()
		return models.CacheEntry{}, false
	}
	return entry, true
}

// Entry returns the raw entry for key without affecting recency or expiry.
func (s *Store) Entry(key string) (models.CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok
}

// Keys returns the resident keys from least to most recently used.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, s.recency.Len())
	for el := s.recency.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(string))
	}
	return out
}

// Flush blocks until every mutation so far has been handed to the blob store.
func (s *Store) Flush() {
	if s.writer != nil {
		s.writer.flush()
	}
}

// Close flushes pending writes and stops the background writer. The store
// keeps serving from memory afterwards.
func (s *Store) Close() error {
	if s.writer != nil {
		s.writer.close()
	}
	return nil
}

func (s *Store) expired(e models.CacheEntry) bool {
	return s.maxAge > 0 && s.now().Sub(e.CreatedAt) > s.maxAge
}

// remove deletes key; s.mu must be held.
func (s *Store) remove(key string) {
	delete(s.entries, key)
	if el, ok := s.elems[key]; ok {
		s.recency.Remove(el)
		delete(s.elems, key)
	}
}

// persist hands a snapshot to the writer; s.mu must be held.
func (s *Store) persist() {
	if s.writer == nil {
		return
	}
	snap := make(map[string]models.CacheEntry, len(s.entries))
	for k, v := range s.entries {
		snap[k] = v
	}
	s.writer.submit(snap)
}
