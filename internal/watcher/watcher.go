// Package watcher reloads files when they change on disk.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses the burst of events an editor save produces
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a file for changes
type Watcher struct {
	path     string
	onChange func(ctx context.Context) error
	debounce time.Duration
	logger   *zap.Logger
}

// New creates a new file watcher. onChange runs once per burst of changes,
// never concurrently with itself.
func New(path string, onChange func(ctx context.Context) error, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:     path,
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   logger,
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Watch starts watching the file for changes.
// It blocks until the context is cancelled or an error occurs.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory containing the file
	// This handles cases where the file is replaced (e.g., by editors)
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	filename := filepath.Base(abs)

	w.logger.Info("watching file for changes", zap.String("path", abs))

	var (
		mu            sync.Mutex
		wg            sync.WaitGroup
		debounceTimer *time.Timer
	)
	fire := func() {
		defer wg.Done()
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.logger.Info("file changed", zap.String("path", abs))
		if err := w.onChange(ctx); err != nil {
			w.logger.Error("reload failed", zap.String("path", abs), zap.Error(err))
		}
	}
	defer wg.Wait()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Base(event.Name) != filename {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if debounceTimer != nil && debounceTimer.Stop() {
					wg.Done()
				}
				wg.Add(1)
				debounceTimer = time.AfterFunc(w.debounce, fire)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case <-ctx.Done():
			if debounceTimer != nil && debounceTimer.Stop() {
				wg.Done()
			}
			return ctx.Err()
		}
	}
}
