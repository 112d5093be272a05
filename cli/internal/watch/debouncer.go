package watch

import (
	"sync"
	"time"
)

// Debouncer delays a callback until a key has been quiet for the delay,
// collapsing bursts of Schedule calls into one trailing call
type Debouncer struct {
	delay   time.Duration
	fire    func(key string)
	mu      sync.Mutex
	gen     uint64            // Increases on every Schedule and never resets
	pending map[string]uint64 // key -> generation of the newest timer
}

// NewDebouncer creates a debouncer with the specified delay
func NewDebouncer(delay time.Duration, fire func(key string)) *Debouncer {
	return &Debouncer{
		delay:   delay,
		fire:    fire,
		pending: make(map[string]uint64),
	}
}

// Schedule queues a call for key, resetting the timer if one is pending
func (d *Debouncer) Schedule(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// A fresh generation invalidates every older timer, including timers
	// armed before an earlier flush of the same key
	d.gen++
	gen := d.gen
	d.pending[key] = gen
	time.AfterFunc(d.delay, func() {
		d.flush(key, gen)
	})
}

// Pending returns the number of keys waiting to fire
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Debouncer) flush(key string, generation uint64) {
	d.mu.Lock()
	if gen, exists := d.pending[key]; !exists || gen != generation {
		// Stale timer or already flushed
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	d.fire(key)
}
