package ocr

import (
	"sync"
	"time"
)

// Timer counts whole elapsed seconds while a job is running. Start
// resets the count to zero; Stop freezes it without clearing, so the
// final value stays readable after completion.
type Timer struct {
	mu       sync.Mutex
	seconds  int
	interval time.Duration
	stop     chan struct{}
}

// NewTimer creates a stopped timer. A zero interval means one second;
// tests pass a shorter interval.
func NewTimer(interval time.Duration) *Timer {
	if interval <= 0 {
		interval = time.Second
	}
	return &Timer{interval: interval}
}

// Start resets the count and begins ticking. Starting a running timer
// restarts it from zero.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.seconds = 0
	t.stop = make(chan struct{})

	go func(stop chan struct{}) {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.mu.Lock()
				t.seconds++
				t.mu.Unlock()
			}
		}
	}(t.stop)
}

// Stop freezes the timer at its current value.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Timer) stopLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// Seconds returns the current count.
func (t *Timer) Seconds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seconds
}
