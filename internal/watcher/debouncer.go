package watcher

import (
	"sync"
	"time"
)

// BatchDebouncer groups events into batches separated by a quiet period.
// Repeated events for one path keep the path's first position in the batch
// and take the latest event type.
type BatchDebouncer struct {
	delay time.Duration
	emit  func([]Event)

	mu    sync.Mutex
	batch []Event
	pos   map[string]int
	timer *time.Timer
	gen   uint64 // bumped whenever the pending batch is taken or dropped
}

func NewBatchDebouncer(delay time.Duration, emit func([]Event)) *BatchDebouncer {
	return &BatchDebouncer{delay: delay, emit: emit, pos: make(map[string]int)}
}

// Add queues event and restarts the quiet period.
func (b *BatchDebouncer) Add(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i, ok := b.pos[event.Path]; ok {
		b.batch[i] = event
	} else {
		b.pos[event.Path] = len(b.batch)
		b.batch = append(b.batch, event)
	}

	if b.timer != nil {
		b.timer.Stop()
	}
	gen := b.gen
	b.timer = time.AfterFunc(b.delay, func() { b.fire(gen) })
}

func (b *BatchDebouncer) fire(gen uint64) {
	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return
	}
	events := b.takeLocked()
	b.mu.Unlock()
	b.deliver(events)
}

// takeLocked detaches the pending batch. b.mu must be held.
func (b *BatchDebouncer) takeLocked() []Event {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	events := b.batch
	b.batch = nil
	b.pos = make(map[string]int)
	b.gen++
	return events
}

func (b *BatchDebouncer) deliver(events []Event) {
	if len(events) > 0 && b.emit != nil {
		b.emit(events)
	}
}

// Cancel drops pending events.
func (b *BatchDebouncer) Cancel() {
	b.mu.Lock()
	b.takeLocked()
	b.mu.Unlock()
}

// Flush emits pending events now.
func (b *BatchDebouncer) Flush() {
	b.mu.Lock()
	events := b.takeLocked()
	b.mu.Unlock()
	b.deliver(events)
}

// EventCount returns the number of pending events.
func (b *BatchDebouncer) EventCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.batch)
}
