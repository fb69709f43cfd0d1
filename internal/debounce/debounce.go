package debounce

import (
	"sync"
	"time"
)

// Debouncer runs only the most recently scheduled task, once no new task
// has been scheduled for the configured delay.
type Debouncer struct {
	mx      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	gen     uint64
	stopped bool
}

func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Schedule replaces any pending task with fn.
func (d *Debouncer) Schedule(fn func()) {
	d.mx.Lock()
	defer d.mx.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}

	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() {
		d.mx.Lock()
		// a newer Schedule or Cancel raced with the timer firing
		if gen != d.gen || d.stopped {
			d.mx.Unlock()
			return
		}
		d.timer = nil
		d.mx.Unlock()

		fn()
	})
}

// Cancel drops the pending task and reports whether there was one.
func (d *Debouncer) Cancel() bool {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.cancelLocked()
}

// Stop cancels the pending task; later calls to Schedule are ignored.
func (d *Debouncer) Stop() {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.cancelLocked()
	d.stopped = true
}

func (d *Debouncer) cancelLocked() bool {
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	return true
}
