package concurrency

import (
	"sync"
	"time"
)

// Flag is a single-writer, multi-waiter boolean signal. Waiters block until
// the flag is set; Set releases every current waiter and is idempotent.
// The zero value is not usable; create with NewFlag.
type Flag struct {
	mu       sync.Mutex
	signaled bool
	ch       chan struct{}
}

// NewFlag creates an unset Flag.
func NewFlag() *Flag {
	return &Flag{ch: make(chan struct{})}
}

// Set marks the flag signaled and wakes all current waiters.
// Repeat calls are no-ops.
func (f *Flag) Set() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signaled {
		return
	}
	f.signaled = true
	close(f.ch)
}

// Reset clears the flag so subsequent Wait calls block again.
func (f *Flag) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.signaled {
		return
	}
	f.signaled = false
	f.ch = make(chan struct{})
}

// IsSet reports whether the flag is currently signaled.
func (f *Flag) IsSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

// Wait blocks until the flag is set. Returns immediately if already set.
func (f *Flag) Wait() {
	<-f.waitChan()
}

// WaitTimeout blocks until the flag is set or the timeout elapses.
// Returns true if the flag was set, false on timeout.
func (f *Flag) WaitTimeout(d time.Duration) bool {
	ch := f.waitChan()
	select {
	case <-ch:
		return true
	default:
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}

// waitChan snapshots the channel for the current generation of the flag.
// A Reset racing with Wait leaves the waiter on the generation it observed.
func (f *Flag) waitChan() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ch
}
