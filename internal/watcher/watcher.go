// Package watcher reports source file changes under a directory tree.
package watcher

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

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// EventType represents the type of file system event
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

// Event represents a file system event
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// String returns a string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// ChangeHandler receives one debounced batch of events.
type ChangeHandler func(events []Event)

// Config contains watcher configuration
type Config struct {
	DebounceMs int `json:"debounceMs" mapstructure:"debounceMs"`
	// IgnorePatterns are doublestar globs matched against slash-separated
	// paths relative to the watched root.
	IgnorePatterns []string `json:"ignorePatterns" mapstructure:"ignorePatterns"`
}

// DefaultConfig returns the default watcher configuration
func DefaultConfig() Config {
	return Config{
		DebounceMs: 200,
		IgnorePatterns: []string{
			".git/**",
			".walker/**",
			"node_modules/**",
			"**/*.tmp",
			"**/*.swp",
			"**/*~",
		},
	}
}

// Watcher watches a directory tree with fsnotify and reports debounced
// batches of changed files.
type Watcher struct {
	root      string
	config    Config
	logger    *slog.Logger
	handler   ChangeHandler
	fsw       *fsnotify.Watcher
	debouncer *BatchDebouncer
	dirs      map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
	wg     sync.WaitGroup
}

// New creates a watcher for root. Call Start to begin watching.
func New(root string, config Config, logger *slog.Logger, handler ChangeHandler) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	for _, p := range config.IgnorePatterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		root:    abs,
		config:  config,
		logger:  logger,
		handler: handler,
		dirs:    make(map[string]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	w.debouncer = NewBatchDebouncer(time.Duration(config.DebounceMs)*time.Millisecond, w.dispatch)
	return w, nil
}

// Start registers every non-ignored directory under the root and begins
// processing events.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	if err := w.addTree(w.root); err != nil {
		fsw.Close()
		return err
	}

	w.logger.Info("Starting file watcher", "root", w.root, "debounceMs", w.config.DebounceMs, "dirs", len(w.dirs))
	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop stops watching. Pending events are dropped.
func (w *Watcher) Stop() error {
	w.logger.Info("Stopping file watcher")
	w.cancel()
	w.debouncer.Cancel()

	w.mu.Lock()
	fsw := w.fsw
	w.fsw = nil
	w.mu.Unlock()

	var err error
	if fsw != nil {
		err = fsw.Close()
	}
	w.wg.Wait()
	w.logger.Info("File watcher stopped")
	return err
}

// Flush emits pending events now.
func (w *Watcher) Flush() {
	w.debouncer.Flush()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	w.mu.RLock()
	fsw := w.fsw
	w.mu.RUnlock()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	var typ EventType
	switch {
	case ev.Has(fsnotify.Create):
		typ = EventCreate
	case ev.Has(fsnotify.Write):
		typ = EventModify
	case ev.Has(fsnotify.Remove):
		typ = EventDelete
	case ev.Has(fsnotify.Rename):
		typ = EventRename
	default:
		return
	}
	if w.IsIgnored(ev.Name) {
		return
	}

	if typ == EventCreate {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "dir", ev.Name, "error", err)
			}
			return
		}
	}
	if typ == EventDelete || typ == EventRename {
		w.mu.Lock()
		delete(w.dirs, ev.Name)
		w.mu.Unlock()
	}

	w.logger.Debug("File change", "path", ev.Name, "type", typ.String())
	w.debouncer.Add(Event{Type: typ, Path: ev.Name, Timestamp: time.Now()})
}

func (w *Watcher) dispatch(events []Event) {
	if w.ctx.Err() != nil || w.handler == nil {
		return
	}
	w.logger.Debug("Dispatching changes", "events", len(events))
	w.handler(events)
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.isIgnoredDir(path) {
			return filepath.SkipDir
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.fsw == nil {
			return filepath.SkipAll
		}
		if _, ok := w.dirs[path]; ok {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.dirs[path] = struct{}{}
		return nil
	})
}

// IsIgnored reports whether path matches an ignore pattern.
func (w *Watcher) IsIgnored(path string) bool {
	rel, ok := w.rel(path)
	if !ok {
		return true
	}
	for _, pattern := range w.config.IgnorePatterns {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

// isIgnoredDir treats a directory as ignored when the directory itself or
// entries directly inside it match a pattern.
func (w *Watcher) isIgnoredDir(path string) bool {
	return w.IsIgnored(path) || w.IsIgnored(filepath.Join(path, "x"))
}

func (w *Watcher) rel(path string) (string, bool) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(path), true
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Stats returns watcher statistics
func (w *Watcher) Stats() map[string]interface{} {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return map[string]interface{}{
		"root":           w.root,
		"watchedDirs":    len(w.dirs),
		"debounceMs":     w.config.DebounceMs,
		"ignorePatterns": len(w.config.IgnorePatterns),
		"pendingEvents":  w.debouncer.EventCount(),
	}
}

// ChangedPaths returns the paths in events that still exist as regular
// files, in batch order.
func ChangedPaths(events []Event) []string {
	var out []string
	for _, e := range events {
		if e.Type == EventDelete {
			continue
		}
		if info, err := os.Stat(e.Path); err == nil && info.Mode().IsRegular() {
			out = append(out, e.Path)
		}
	}
	return out
}
