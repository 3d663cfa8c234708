package internal

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunWatched_AwaitsWatcher(t *testing.T) {
	var finished atomic.Bool
	watch := func(ctx context.Context) error {
		<-ctx.Done()
		// Simulates an index write still in flight at shutdown.
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return nil
	}
	serve := func() error { return nil }

	if err := runWatched(context.Background(), watch, serve); err != nil {
		t.Fatalf("runWatched: %v", err)
	}
	if !finished.Load() {
		t.Fatal("runWatched returned before the watcher finished")
	}
}

func TestRunWatched_ServeErrorWins(t *testing.T) {
	boom := errors.New("stdin closed")
	watch := func(ctx context.Context) error {
		<-ctx.Done()
		return errors.New("watch failed")
	}

	err := runWatched(context.Background(), watch, func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestRunWatched_WatchFailure(t *testing.T) {
	watch := func(context.Context) error { return errors.New("no inotify") }

	err := runWatched(context.Background(), watch, func() error { return nil })
	if !errors.Is(err, errWatchStopped) {
		t.Fatalf("err = %v, want errWatchStopped", err)
	}
}
