package inspection

import (
	"sync"
	"time"
)

// debouncer delays a function until no new call was scheduled under the same key for `delay`.
type debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*debounced
}

type debounced struct {
	timer *time.Timer
	fn    func()
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay, pending: make(map[string]*debounced)}
}

// Schedule replaces any pending function for key with fn and restarts the timer.
func (d *debouncer) Schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.pending[key]; ok {
		prev.timer.Stop()
	}
	entry := &debounced{fn: fn}
	entry.timer = time.AfterFunc(d.delay, func() { d.fire(key, entry) })
	d.pending[key] = entry
}

func (d *debouncer) fire(key string, entry *debounced) {
	d.mu.Lock()
	if d.pending[key] != entry { // rescheduled or cancelled meanwhile
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	entry.fn()
}

// Cancel drops the pending function for key. It reports whether one was pending.
func (d *debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.pending[key]
	if ok {
		entry.timer.Stop()
		delete(d.pending, key)
	}
	return ok
}

func (d *debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Flush runs every pending function now, in the caller's goroutine.
func (d *debouncer) Flush() {
	d.mu.Lock()
	entries := make([]*debounced, 0, len(d.pending))
	for key, entry := range d.pending {
		entry.timer.Stop()
		entries = append(entries, entry)
		delete(d.pending, key)
	}
	d.mu.Unlock()

	for _, entry := range entries {
		entry.fn()
	}
}
