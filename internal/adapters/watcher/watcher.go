package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/renato0307/sessiond/internal/logging"
)

// DefaultDebounce is how long a directory must be quiet before it is reported
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc is called with a project log directory whose transcripts changed.
// Calls are made from the watcher goroutine, one at a time.
type ChangeFunc func(ctx context.Context, dir string)

// Watcher monitors the transcript root and reports project directories
// that changed, after a quiet period
type Watcher struct {
	debounce  time.Duration
	fsWatcher *fsnotify.Watcher
	onChange  ChangeFunc
	pending   map[string]time.Time
	root      string
}

// New creates a new Watcher for root. A non-positive debounce uses DefaultDebounce.
func New(root string, debounce time.Duration, onChange ChangeFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		debounce:  debounce,
		fsWatcher: fsw,
		onChange:  onChange,
		pending:   make(map[string]time.Time),
		root:      filepath.Clean(root),
	}, nil
}

// Run watches until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsWatcher.Close() }()

	w.addRoot()

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			logging.Logger.Warn("File watcher error", "error", err)

		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

// addRoot watches the root and every project directory below it. A missing
// root is picked up once it is created.
func (w *Watcher) addRoot() {
	if err := w.fsWatcher.Add(w.root); err != nil {
		logging.Logger.Debug("Transcript root not watchable yet, watching parent", "root", w.root, "error", err)
		_ = w.fsWatcher.Add(filepath.Dir(w.root))
		return
	}

	entries, err := os.ReadDir(w.root)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			w.addProjectDir(filepath.Join(w.root, entry.Name()))
		}
	}
}

func (w *Watcher) addProjectDir(dir string) {
	if err := w.fsWatcher.Add(dir); err != nil {
		logging.Logger.Debug("Failed to watch project directory", "dir", dir, "error", err)
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			switch filepath.Dir(path) {
			case w.root:
				w.addProjectDir(path)
				w.pending[path] = time.Now()
			case filepath.Dir(w.root):
				if path == w.root {
					w.addRoot()
				}
			}
			return
		}
	}

	if !strings.HasSuffix(path, ".jsonl") {
		return
	}
	dir := filepath.Dir(path)
	if filepath.Dir(dir) != w.root {
		return
	}
	if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.pending[dir] = time.Now()
	}
}

// flush reports directories that have been quiet for the debounce period
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	for dir, last := range w.pending {
		if now.Sub(last) < w.debounce {
			continue
		}
		delete(w.pending, dir)
		logging.Logger.Debug("Transcript directory changed", "dir", dir)
		w.onChange(ctx, dir)
	}
}
