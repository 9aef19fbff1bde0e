package scheduler

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of work per key: each Schedule call for a key
// resets that key's timer, and the task runs only once the key has been idle
// for the full delay. Flush runs a pending task immediately, Cancel drops it.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[string]*pendingTask
	closed  bool
	wg      sync.WaitGroup
}

type pendingTask struct {
	timer *time.Timer
	fn    func()
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		pending: make(map[string]*pendingTask),
	}
}

// Schedule queues fn to run after the idle delay. A newer call for the same
// key replaces the queued fn and restarts the delay.
func (d *Debouncer) Schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	if task, ok := d.pending[key]; ok {
		task.timer.Stop()
		task.fn = fn
		task.timer.Reset(d.delay)
		return
	}

	task := &pendingTask{fn: fn}
	task.timer = time.AfterFunc(d.delay, func() {
		d.fire(key)
	})
	d.pending[key] = task
}

// Flush runs the pending task for key right away, if any.
func (d *Debouncer) Flush(key string) {
	d.fire(key)
}

// Cancel drops the pending task for key without running it.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if task, ok := d.pending[key]; ok {
		task.timer.Stop()
		delete(d.pending, key)
	}
}

// Pending reports whether a task is queued for key.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Shutdown flushes every pending task and rejects new ones. It returns after
// all flushed tasks have finished.
func (d *Debouncer) Shutdown() {
	d.mu.Lock()
	d.closed = true
	keys := make([]string, 0, len(d.pending))
	for key := range d.pending {
		keys = append(keys, key)
	}
	d.mu.Unlock()

	for _, key := range keys {
		d.fire(key)
	}
	d.wg.Wait()
}

func (d *Debouncer) fire(key string) {
	d.mu.Lock()
	task, ok := d.pending[key]
	if !ok {
		d.mu.Unlock()
		return
	}
	task.timer.Stop()
	delete(d.pending, key)
	fn := task.fn
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()
	fn()
}
