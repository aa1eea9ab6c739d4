package store

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/rnvim/rnvimserver/logger"
)

// LibWatcher tracks whether the library paths changed since the last scan.
// Only Start runs on its own goroutine; Dirty and MarkClean are safe from
// any goroutine.
type LibWatcher struct {
	watcher *fsnotify.Watcher
	dirty   atomic.Bool
	log     *slog.Logger
}

// NewLibWatcher watches every directory in paths. It starts dirty so the
// first query scans. Paths that cannot be watched are logged and skipped.
func NewLibWatcher(paths []string) (*LibWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &LibWatcher{watcher: fw, log: logger.WithComponent("libwatch")}
	w.dirty.Store(true)
	for _, p := range paths {
		if err := fw.Add(p); err != nil {
			w.log.Warn("cannot watch library path", "path", p, "error", err)
		}
	}
	return w, nil
}

// Start consumes filesystem events until ctx is done or the watcher is
// closed.
func (w *LibWatcher) Start(ctx context.Context) {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.log.Debug("library path changed", "path", ev.Name, "op", ev.Op.String())
				w.dirty.Store(true)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("library watcher error", "error", err)
			w.dirty.Store(true)
		case <-ctx.Done():
			return
		}
	}
}

// Dirty reports whether a scan is needed.
func (w *LibWatcher) Dirty() bool { return w.dirty.Load() }

// MarkClean records that a scan just happened.
func (w *LibWatcher) MarkClean() { w.dirty.Store(false) }

// Close stops watching. Start returns afterwards.
func (w *LibWatcher) Close() error { return w.watcher.Close() }
