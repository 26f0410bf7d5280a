package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
)

func TestWatchReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.db")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, testr.New(t), func() { changed <- struct{}{} })
	}()

	// The watcher registers asynchronously, so keep writing until it notices.
	s, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Close()
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for epoch := 0; ; epoch++ {
		select {
		case <-changed:
			cancel()
			if err := <-done; !errors.Is(err, context.Canceled) {
				t.Fatalf("expected context.Canceled, got %v", err)
			}
			return
		case <-tick.C:
			if err := s.Put(SectionEpoch, epoch); err != nil {
				t.Fatalf("Put: %v", err)
			}
		case <-deadline:
			t.Fatal("no change reported within 5s")
		}
	}
}

func TestWatchReportsSteadyWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.db")
	s, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var calls atomic.Int32
	go func() {
		// Writes arrive faster than debounceDelay for the whole window.
		for epoch := 0; ctx.Err() == nil; epoch++ {
			s.Put(SectionEpoch, epoch)
			time.Sleep(debounceDelay / 3)
		}
	}()

	err = Watch(ctx, path, testr.New(t), func() { calls.Add(1) })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if n := calls.Load(); n < 2 {
		t.Fatalf("expected repeated change reports during steady writes, got %d", n)
	}
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()

	calls := 0
	go func() {
		for i := 0; i < 3; i++ {
			os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644)
			time.Sleep(50 * time.Millisecond)
		}
	}()
	err := Watch(ctx, filepath.Join(dir, "checkpoint.db"), testr.New(t), func() { calls++ })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no calls for unrelated files, got %d", calls)
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing", "checkpoint.db"), testr.New(t), func() {})
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}
