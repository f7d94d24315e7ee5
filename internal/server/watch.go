package server

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ragdesk/ragdesk/internal/index"
)

// DefaultDebounce batches bursts of file events into one rebuild.
const DefaultDebounce = 500 * time.Millisecond

// RebuildFunc produces a fresh index from the knowledge base.
type RebuildFunc func(ctx context.Context) (*index.Index, error)

// Watcher rebuilds the index when knowledge base files change and swaps
// it into a Handle. A failed rebuild leaves the previous index serving.
type Watcher struct {
	dir      string
	debounce time.Duration
	rebuild  RebuildFunc
	handle   *index.Handle
	logger   *zap.Logger
}

// NewWatcher creates a Watcher for dir.
func NewWatcher(dir string, handle *index.Handle, rebuild RebuildFunc, debounce time.Duration, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{dir: dir, debounce: debounce, rebuild: rebuild, handle: handle, logger: logger}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("server: create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("server: watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching knowledge base", zap.String("dir", w.dir), zap.Duration("debounce", w.debounce))

	pending := 0
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(event) {
				continue
			}
			pending++
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-timer.C:
			if pending == 0 {
				continue
			}
			events := pending
			pending = 0
			w.reload(ctx, events)
		}
	}
}

func (w *Watcher) reload(ctx context.Context, events int) {
	start := time.Now()
	idx, err := w.rebuild(ctx)
	if err != nil {
		w.logger.Error("rebuild failed, keeping current index", zap.Int("events", events), zap.Error(err))
		return
	}
	w.handle.Swap(idx)
	w.logger.Info("index reloaded",
		zap.Int("events", events),
		zap.Int("records", idx.Len()),
		zap.Duration("took", time.Since(start)),
	)
}

// relevantEvent reports whether an event can change the loaded documents.
func relevantEvent(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") && name != ".gitignore" {
		return false
	}
	return name == ".gitignore" || strings.HasSuffix(name, ".txt")
}
