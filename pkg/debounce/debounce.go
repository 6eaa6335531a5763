// Package debounce delays a call until its trigger has been quiet for a fixed
// interval. A newer trigger replaces the pending call and cancels the context of
// one that is already running.
package debounce

import (
	"context"
	"sync"
	"time"
)

// Debouncer runs at most one pending call at a time.
type Debouncer struct {
	delay time.Duration

	mu     sync.Mutex
	seq    uint64
	timer  *time.Timer
	cancel context.CancelFunc
}

// New returns a Debouncer that waits delay after the last trigger.
func New(delay time.Duration) *Debouncer {
	if delay < 0 {
		delay = 0
	}
	return &Debouncer{delay: delay}
}

// Deliver runs report only while its call is still the latest one and has not
// been cancelled, and returns whether it ran. report runs under the
// Debouncer's lock and must not call back into it.
type Deliver func(report func()) bool

// Trigger schedules fn. Any pending call is dropped and any running call has
// its context cancelled. fn receives a context derived from parent.
func (d *Debouncer) Trigger(parent context.Context, fn func(ctx context.Context)) {
	d.Schedule(parent, func(ctx context.Context, _ Deliver) { fn(ctx) })
}

// Schedule is Trigger for calls that produce a result. Reporting through
// deliver guarantees a superseded call never reports.
func (d *Debouncer) Schedule(parent context.Context, fn func(ctx context.Context, deliver Deliver)) {
	ctx, cancel := context.WithCancel(parent)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()

	d.seq++
	seq := d.seq
	deliver := func(report func()) bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.seq != seq || ctx.Err() != nil {
			return false
		}
		report()
		return true
	}

	d.cancel = cancel
	d.timer = time.AfterFunc(d.delay, func() {
		defer d.finish(seq, cancel)
		if ctx.Err() != nil {
			return
		}
		fn(ctx, deliver)
	})
}

// Cancel drops the pending call and cancels a running one.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

// Pending reports whether a call is scheduled or still running.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel != nil
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Debouncer) finish(seq uint64, cancel context.CancelFunc) {
	cancel()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seq == seq {
		d.timer = nil
		d.cancel = nil
	}
}
