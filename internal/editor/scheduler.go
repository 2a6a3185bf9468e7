package editor

import (
	"sync"
	"time"
)

// DefaultFrameInterval is roughly one display frame at 60 Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// FrameScheduler coalesces bursts of render requests into at most one call of
// fn per interval. Request never blocks and never runs fn itself.
type FrameScheduler struct {
	mu       sync.Mutex
	interval time.Duration
	fn       func()
	timer    *time.Timer
	pending  bool
	stopped  bool
}

// NewFrameScheduler creates a scheduler that calls fn on the next frame boundary.
func NewFrameScheduler(interval time.Duration, fn func()) *FrameScheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameScheduler{interval: interval, fn: fn}
}

// Request schedules fn for the next frame. Requests made while one is already
// pending are folded into it.
func (f *FrameScheduler) Request() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped || f.pending {
		return
	}
	f.pending = true
	f.timer = time.AfterFunc(f.interval, f.fire)
}

// Flush runs a pending request now. It reports whether one was pending.
func (f *FrameScheduler) Flush() bool {
	f.mu.Lock()
	if !f.pending || f.stopped {
		f.mu.Unlock()
		return false
	}
	f.pending = false
	f.timer.Stop()
	f.mu.Unlock()

	f.fn()
	return true
}

// Pending reports whether a request is waiting for its frame.
func (f *FrameScheduler) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

// Stop drops any pending request and ignores future ones.
func (f *FrameScheduler) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopped = true
	f.pending = false
	if f.timer != nil {
		f.timer.Stop()
	}
}

func (f *FrameScheduler) fire() {
	f.mu.Lock()
	if !f.pending || f.stopped {
		f.mu.Unlock()
		return
	}
	f.pending = false
	f.mu.Unlock()

	f.fn()
}
