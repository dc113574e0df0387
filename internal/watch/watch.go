// Package watch refreshes local sources when their files change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kennyg/folio/internal/artifact"
)

// DefaultDebounce is the quiet period before a refresh fires
const DefaultDebounce = 500 * time.Millisecond

// Target is one local source folder to watch
type Target struct {
	Source string
	Root   string
	// SkillsDir is the absolute skills folder, where any change counts
	SkillsDir string
}

// RefreshFunc re-fetches a single source
type RefreshFunc func(ctx context.Context, source string)

// Watcher debounces filesystem events into per-source refreshes
type Watcher struct {
	targets  []Target
	debounce time.Duration
	refresh  RefreshFunc
	logger   *slog.Logger

	mu       sync.Mutex
	timers   map[string]*time.Timer
	watchers []*fsnotify.Watcher
	closed   bool
	wg       sync.WaitGroup
}

// New creates a Watcher. A non-positive debounce uses DefaultDebounce.
func New(targets []Target, debounce time.Duration, refresh RefreshFunc, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		targets:  targets,
		debounce: debounce,
		refresh:  refresh,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
	}
}

// Start begins watching every target. A target whose root cannot be
// watched is logged and skipped.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("watcher closed")
	}

	for _, t := range w.targets {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("creating fsnotify watcher: %w", err)
		}
		if err := addRecursive(fw, t.Root); err != nil {
			w.logger.Warn("cannot watch source", "source", t.Source, "path", t.Root, "error", err)
			fw.Close()
			continue
		}
		w.watchers = append(w.watchers, fw)

		w.wg.Add(1)
		go w.loop(ctx, t, fw)
		w.logger.Debug("watching source", "source", t.Source, "path", t.Root)
	}
	return nil
}

// Watching returns the number of active source watchers
func (w *Watcher) Watching() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watchers)
}

// Close stops pending refreshes and releases every watcher
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for name, t := range w.timers {
		t.Stop()
		delete(w.timers, name)
	}
	var errs []error
	for _, fw := range w.watchers {
		if err := fw.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	w.watchers = nil
	w.mu.Unlock()

	w.wg.Wait()
	return errors.Join(errs...)
}

func (w *Watcher) loop(ctx context.Context, t Target, fw *fsnotify.Watcher) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handle(ctx, t, fw, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "source", t.Source, "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, t Target, fw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addRecursive(fw, event.Name); err != nil {
				w.logger.Debug("cannot watch new directory", "path", event.Name, "error", err)
			}
		}
	}
	if !relevant(t, event) {
		return
	}
	w.logger.Debug("source changed", "source", t.Source, "path", event.Name, "op", event.Op.String())
	w.schedule(ctx, t.Source)
}

// schedule restarts the debounce timer for source
func (w *Watcher) schedule(ctx context.Context, source string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if prev, ok := w.timers[source]; ok {
		prev.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		current := w.timers[source] == timer
		if current {
			delete(w.timers, source)
		}
		run := current && !w.closed && ctx.Err() == nil
		if run {
			w.wg.Add(1)
		}
		w.mu.Unlock()
		if !run {
			return
		}
		defer w.wg.Done()
		w.refresh(ctx, source)
	})
	w.timers[source] = timer
}

// relevant reports whether an event should trigger a refresh
func relevant(t Target, event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if t.SkillsDir != "" && within(t.SkillsDir, event.Name) {
		return true
	}
	// a vanished directory takes its templates with it
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		return within(t.Root, event.Name)
	}
	return strings.EqualFold(filepath.Ext(base), artifact.MarkdownExt)
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// addRecursive watches root and every non-hidden directory below it
func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(p)
	})
}
