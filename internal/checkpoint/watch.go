package checkpoint

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// debounceDelay is how long after the first write of a burst the change is
// reported. Later writes in the same window are folded into that report.
const debounceDelay = 250 * time.Millisecond

// Watch calls onChange each time the checkpoint at path is written or
// replaced, until ctx is done. The parent directory is watched so that
// checkpoints created after Watch starts are seen too. onChange runs on the
// watcher goroutine; it is never called concurrently with itself.
func Watch(ctx context.Context, path string, logger logr.Logger, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create checkpoint watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("%w: watch %q: %w", ErrIO, filepath.Dir(abs), err)
	}
	logger = logger.WithValues("path", abs)

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.V(2).Info("Checkpoint changed", "event", ev.Op.String())
			if timer != nil {
				continue
			}
			timer = time.AfterFunc(debounceDelay, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			timer = nil
			onChange()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error(err, "Checkpoint watcher failed")
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		}
	}
}
