package watcher

import (
	"sync"
	"time"
)

// BatchDebouncer collects events and emits them as one batch once no new
// event has arrived for the delay. Events for the same path collapse into
// the latest one, keeping the position of the first.
type BatchDebouncer struct {
	delay  time.Duration
	timer  *time.Timer
	mu     sync.Mutex
	events []Event
	index  map[string]int // path -> position in events
	gen    uint64         // bumped by every Add; a timer only flushes its own
	emit   func([]Event)
}

// NewBatchDebouncer creates a new batch debouncer
func NewBatchDebouncer(delay time.Duration, emit func([]Event)) *BatchDebouncer {
	return &BatchDebouncer{
		delay:  delay,
		events: make([]Event, 0),
		index:  make(map[string]int),
		emit:   emit,
	}
}

// Add adds an event to the batch and restarts the quiet period
func (b *BatchDebouncer) Add(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i, ok := b.index[event.Path]; ok {
		b.events[i] = event
	} else {
		b.index[event.Path] = len(b.events)
		b.events = append(b.events, event)
	}

	if b.timer != nil {
		b.timer.Stop()
	}
	b.gen++
	gen := b.gen
	b.timer = time.AfterFunc(b.delay, func() { b.flushIf(gen) })
}

// take empties the batch and returns what it held.
func (b *BatchDebouncer) take() []Event {
	events := b.events
	b.events = make([]Event, 0)
	b.index = make(map[string]int)
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	return events
}

// flushIf flushes unless an Add has happened since the timer for gen was set.
func (b *BatchDebouncer) flushIf(gen uint64) {
	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return
	}
	events := b.take()
	b.mu.Unlock()

	if len(events) > 0 && b.emit != nil {
		b.emit(events)
	}
}

func (b *BatchDebouncer) flush() {
	b.mu.Lock()
	events := b.take()
	b.mu.Unlock()

	if len(events) > 0 && b.emit != nil {
		b.emit(events)
	}
}

// Cancel drops any pending events
func (b *BatchDebouncer) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.take()
}

// Flush immediately emits any pending events
func (b *BatchDebouncer) Flush() {
	b.flush()
}

// EventCount returns the number of pending events
func (b *BatchDebouncer) EventCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
