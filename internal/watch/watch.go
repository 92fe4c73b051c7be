// Package watch re-runs pending migrations when new scripts land in the
// migrations directory.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/satishbabariya/fastmigrate/internal/debug"
)

// Watcher watches a migrations directory and invokes a callback, debounced,
// whenever files are created or written there.
type Watcher struct {
	dir      string
	callback func() error
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher over dir.
func NewWatcher(dir string, callback func() error) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}
	return &Watcher{dir: dir, callback: callback, watcher: watcher}, nil
}

// Start runs the callback once, then blocks dispatching debounced callbacks
// until ctx is canceled. Callback errors are logged, not fatal: a failed
// migration run should not stop the watch loop.
func (w *Watcher) Start(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.callback(); err != nil {
		debug.Error("watch callback failed", "error", err)
	}

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	var pending <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				debounce.Reset(500 * time.Millisecond)
				pending = debounce.C
			}

		case <-pending:
			pending = nil
			if err := w.callback(); err != nil {
				debug.Error("watch callback failed", "error", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			debug.Error("watch error", "error", err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
