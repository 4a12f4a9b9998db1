package watcher

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestEventTypeString(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      string
	}{
		{EventCreate, "create"},
		{EventModify, "modify"},
		{EventDelete, "delete"},
		{EventRename, "rename"},
		{EventType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.eventType.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IgnorePatterns = append(cfg.IgnorePatterns, "[unclosed")
	if _, err := New(t.TempDir(), cfg, nil, nil); err == nil {
		t.Error("expected error for invalid ignore pattern")
	}
}

func TestWatcherIsIgnored(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "src", "app.js"), false},
		{filepath.Join(root, "node_modules", "dep", "index.js"), true},
		{filepath.Join(root, ".git", "HEAD"), true},
		{filepath.Join(root, ".walker", "walker.db"), true},
		{filepath.Join(root, "src", "app.js.tmp"), true},
		{filepath.Join(root, "src", "app.js~"), true},
		{filepath.Join(filepath.Dir(root), "elsewhere.js"), true},
		{"src/relative.js", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := w.IsIgnored(tt.path); got != tt.want {
				t.Errorf("IsIgnored(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}

	if !w.isIgnoredDir(filepath.Join(root, "node_modules")) {
		t.Error("node_modules directory should be skipped")
	}
	if w.isIgnoredDir(filepath.Join(root, "src")) {
		t.Error("src directory should be watched")
	}
}

func TestWatcherReportsChanges(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "node_modules"), 0755); err != nil {
		t.Fatal(err)
	}

	batches := make(chan []Event, 4)
	cfg := DefaultConfig()
	cfg.DebounceMs = 50
	w, err := New(root, cfg, nil, func(events []Event) { batches <- events })
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if w.Root() != root {
		t.Errorf("Root() = %q, want %q", w.Root(), root)
	}
	if got := w.Stats()["watchedDirs"]; got != 2 {
		t.Errorf("watchedDirs = %v, want 2 (root and src)", got)
	}

	target := filepath.Join(root, "src", "app.js")
	if err := os.WriteFile(target, []byte("require('./x')\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "node_modules", "ignored.js"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case events := <-batches:
		paths := ChangedPaths(events)
		if !reflect.DeepEqual(paths, []string{target}) {
			t.Errorf("ChangedPaths = %v, want [%s]", paths, target)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change batch")
	}
}

func TestBatchDebouncerAdd(t *testing.T) {
	var received []Event
	var mu sync.Mutex
	done := make(chan struct{})

	b := NewBatchDebouncer(50*time.Millisecond, func(events []Event) {
		mu.Lock()
		received = events
		mu.Unlock()
		close(done)
	})

	b.Add(Event{Type: EventCreate, Path: "a.js"})
	b.Add(Event{Type: EventModify, Path: "b.js"})
	b.Add(Event{Type: EventModify, Path: "a.js"})

	if b.EventCount() != 2 {
		t.Errorf("EventCount() = %d, want 2 after coalescing", b.EventCount())
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("batch was never emitted")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 || received[0].Path != "a.js" || received[0].Type != EventModify {
		t.Errorf("received %+v, want a.js (modify) then b.js", received)
	}
}

func TestBatchDebouncerCancel(t *testing.T) {
	var called bool
	var mu sync.Mutex

	b := NewBatchDebouncer(50*time.Millisecond, func(events []Event) {
		mu.Lock()
		called = true
		mu.Unlock()
	})
	b.Add(Event{Type: EventCreate, Path: "file.js"})
	b.Cancel()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if called {
		t.Error("emit should not be called after Cancel")
	}
	if b.EventCount() != 0 {
		t.Errorf("EventCount() = %d after Cancel", b.EventCount())
	}
}

func TestBatchDebouncerFlush(t *testing.T) {
	var received []Event
	b := NewBatchDebouncer(time.Hour, func(events []Event) { received = events })

	b.Add(Event{Type: EventCreate, Path: "file.js"})
	b.Flush()

	if len(received) != 1 {
		t.Errorf("Flush should emit immediately, got %d events", len(received))
	}

	received = nil
	b.Flush()
	if received != nil {
		t.Error("Flush with nothing pending should not emit")
	}
}

func TestChangedPaths(t *testing.T) {
	dir := t.TempDir()
	kept := filepath.Join(dir, "kept.js")
	if err := os.WriteFile(kept, nil, 0644); err != nil {
		t.Fatal(err)
	}

	events := []Event{
		{Type: EventModify, Path: kept},
		{Type: EventDelete, Path: filepath.Join(dir, "gone.js")},
		{Type: EventCreate, Path: filepath.Join(dir, "vanished.js")},
		{Type: EventCreate, Path: dir},
	}
	if got := ChangedPaths(events); !reflect.DeepEqual(got, []string{kept}) {
		t.Errorf("ChangedPaths = %v, want [%s]", got, kept)
	}
}
