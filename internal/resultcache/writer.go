package resultcache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/iris/internal/models"
)

// writer saves snapshots on a single background goroutine. Bursts are
// coalesced: only the latest pending snapshot is written.
type writer struct {
	blob    BlobStore
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	latest map[string]models.CacheEntry
	queued uint64 // sequence of the latest submitted snapshot
	saved  uint64 // sequence of the latest handled snapshot
	closed bool
	done   chan struct{}
}

func newWriter(blob BlobStore, timeout time.Duration, logger *slog.Logger) *writer {
	w := &writer{
		blob:    blob,
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

func (w *writer) submit(snap map[string]models.CacheEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.logger.Debug("result cache: writer closed, snapshot not persisted")
		return
	}
	w.latest = snap
	w.queued++
	w.cond.Broadcast()
}

func (w *writer) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for w.saved == w.queued && !w.closed {
			w.cond.Wait()
		}
		if w.saved == w.queued {
			w.mu.Unlock()
			return
		}
		snap, seq := w.latest, w.queued
		w.latest = nil
		w.mu.Unlock()

		w.save(snap)

		w.mu.Lock()
		w.saved = seq
		w.cond.Broadcast()
		w.mu.Unlock()
	}
}

func (w *writer) save(snap map[string]models.CacheEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.blob.Save(ctx, snap); err != nil {
		w.logger.Error("result cache: save failed",
			slog.Int("entries", len(snap)),
			slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("result cache: saved", slog.Int("entries", len(snap)))
}

func (w *writer) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	target := w.queued
	for w.saved < target {
		w.cond.Wait()
	}
}

func (w *writer) close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		w.cond.Broadcast()
	}
	w.mu.Unlock()
	<-w.done
}
