// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"kmake-cli/internal/check"
	"kmake-cli/internal/download"
	"kmake-cli/internal/subst"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("watcher already running")

//nolint:gochecknoglobals // fixed pattern sets
var (
	// DefaultPatterns select workspace documents and C/C++/Objective-C
	// sources, the files that change a resolution.
	DefaultPatterns = []string{
		"**/*.{yml,yaml,toml,cue}",
		"**/*.{c,cc,cpp,cxx,m,mm,h,hh,hpp,hxx,inl}",
	}

	alwaysIgnored = []string{
		"**/.git/**",
		"**/" + download.CacheFile,
		"**/" + check.CacheFile,
		"**/" + subst.InputCacheFile,
		"**/*.swp",
		"**/*~",
		"**/.DS_Store",
	}
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Dir is the workspace directory. Patterns match paths relative to it.
		Dir string
		// Patterns select the paths that trigger OnChange. Empty means
		// DefaultPatterns.
		Patterns []string
		// Ignore adds patterns that never trigger OnChange, typically the
		// output directory.
		Ignore []string
		// Debounce is the quiet period after the last event. Zero means 500ms.
		Debounce time.Duration
		Logger   *log.Logger
		// OnChange receives the deduplicated changed paths, relative to Dir
		// and sorted.
		OnChange func(ctx context.Context, changed []string) error
	}

	// Watcher monitors a workspace directory tree.
	Watcher struct {
		dir      string
		patterns []string
		ignores  []string
		debounce time.Duration
		logger   *log.Logger
		onChange func(ctx context.Context, changed []string) error
		fsw      *fsnotify.Watcher
		started  atomic.Bool
	}
)

// New validates cfg and registers every non-ignored directory under Dir.
func New(cfg Config) (*Watcher, error) {
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve watch directory: %w", err)
	}

	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	ignores := slices.Concat(alwaysIgnored, cfg.Ignore)
	for _, pat := range slices.Concat(patterns, ignores) {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid watch pattern %q: %w", pat, doublestar.ErrBadPattern)
		}
	}

	w := &Watcher{
		dir:      dir,
		patterns: patterns,
		ignores:  ignores,
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
		onChange: cfg.OnChange,
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	if w.logger == nil {
		w.logger = log.New(io.Discard)
	}

	if w.fsw, err = fsnotify.NewWatcher(); err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.addTree(dir); err != nil {
		w.fsw.Close() //nolint:errcheck // init already failed
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is canceled. A change that arrives while
// OnChange is still running is kept and delivered after it returns.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close watcher", "err", err)
		}
	}()

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		busy    atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !busy.CompareAndSwap(false, true) {
			mu.Lock()
			timer.Reset(w.debounce)
			mu.Unlock()
			return
		}
		defer busy.Store(false)

		mu.Lock()
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()
		if len(changed) == 0 || w.onChange == nil {
			return
		}

		w.logger.Info("workspace changed", "files", len(changed))
		if err := w.onChange(ctx, changed); err != nil {
			w.logger.Error("re-resolve failed", "err", err)
		}
	}

	defer func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("fsnotify event channel closed")
			}
			rel, err := filepath.Rel(w.dir, evt.Name)
			if err != nil || w.ignored(rel) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				w.addNewDir(evt.Name, rel)
			}
			if !w.matches(rel) {
				continue
			}

			mu.Lock()
			pending[filepath.ToSlash(rel)] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("fsnotify error channel closed")
			}
			if isFatal(err) {
				return fmt.Errorf("watch %s: %w", w.dir, err)
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) addTree(root string) error {
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping unreadable path", "path", path, "err", err)
			return nil //nolint:nilerr // keep watching the rest of the tree
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.dir, path)
		if err != nil {
			return nil //nolint:nilerr // outside the workspace
		}
		if rel != "." && w.ignoredDir(rel) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", root, err)
	}
	return nil
}

// addNewDir extends the watch to directories created after startup.
func (w *Watcher) addNewDir(path, rel string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || w.ignoredDir(rel) {
		return
	}
	if err := w.addTree(path); err != nil {
		w.logger.Warn("watch new directory", "path", path, "err", err)
	}
}

func (w *Watcher) ignored(rel string) bool {
	return matchAny(w.ignores, filepath.ToSlash(rel))
}

// ignoredDir also matches "dir/**" style patterns against the directory itself.
func (w *Watcher) ignoredDir(rel string) bool {
	return w.ignored(rel) || w.ignored(filepath.Join(rel, "_"))
}

func (w *Watcher) matches(rel string) bool {
	return matchAny(w.patterns, filepath.ToSlash(rel))
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}
