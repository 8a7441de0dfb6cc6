// Package watch invalidates cached parse results when files change on disk.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events editors emit per save.
const DefaultDebounce = 50 * time.Millisecond

// Directories never watched.
var ignoreDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	".astcache":    true,
	".idea":        true,
	".vscode":      true,
	".venv":        true,
	"node_modules": true,
	"__pycache__":  true,
	"vendor":       true,
	"target":       true,
	"dist":         true,
	"build":        true,
}

// File suffixes that never trigger a change.
var ignoreSuffixes = []string{".swp", ".swx", "~", ".tmp", ".pyc", ".o", ".so", ".dylib", ".DS_Store"}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets the per-path quiet interval. Zero disables debouncing.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// Watcher reports changed files below a root directory.
type Watcher struct {
	fw       *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration
	now      func() time.Time

	mu    sync.Mutex
	seen  map[string]time.Time
	swept time.Time
}

// New creates a Watcher. Call Run to start delivering events.
func New(opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		fw:       fw,
		logger:   slog.Default(),
		debounce: DefaultDebounce,
		now:      time.Now,
		seen:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "watch")
	return w, nil
}

// Add registers root and every non-ignored directory below it.
func (w *Watcher) Add(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", root, err)
	}
	return filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, but the root must exist.
			if path == abs {
				return fmt.Errorf("watch %s: %w", abs, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != abs && ignoreDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Run delivers changed file paths to onChange until ctx is done, then
// releases the underlying watcher. onChange is called from Run's goroutine.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) error {
	defer w.fw.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			w.handle(ev, onChange)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event, onChange func(string)) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !ignoreDirs[info.Name()] {
				if err := w.Add(ev.Name); err != nil {
					w.logger.Warn("watch new directory failed", "path", ev.Name, "err", err)
				}
			}
			return
		}
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	if ignored(ev.Name) || w.bounce(ev.Name) {
		return
	}
	w.logger.Debug("file changed", "path", ev.Name, "op", ev.Op.String())
	onChange(ev.Name)
}

// bounce reports whether path fired within the debounce interval. Paths
// quiet for longer than the interval are dropped at most once per interval,
// so the map only holds recently changed files.
func (w *Watcher) bounce(path string) bool {
	if w.debounce <= 0 {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	if now.Sub(w.swept) >= w.debounce {
		for p, last := range w.seen {
			if now.Sub(last) >= w.debounce {
				delete(w.seen, p)
			}
		}
		w.swept = now
	}
	if last, ok := w.seen[path]; ok && now.Sub(last) < w.debounce {
		return true
	}
	w.seen[path] = now
	return false
}

func ignored(path string) bool {
	base := filepath.Base(path)
	for _, s := range ignoreSuffixes {
		if strings.HasSuffix(base, s) {
			return true
		}
	}
	for _, part := range strings.Split(filepath.Dir(path), string(filepath.Separator)) {
		if ignoreDirs[part] {
			return true
		}
	}
	return false
}
