// Package spin provides a busy-waiting mutual exclusion lock for short
// critical sections such as slab bookkeeping.
package spin

import (
	"runtime"
	"sync/atomic"
	"time"
)

const (
	// maxBackoff caps the number of yields between acquisition attempts.
	maxBackoff = 64

	// sleepAfter is the number of capped rounds before the waiter sleeps.
	sleepAfter = 16

	// sleepFor is how long a waiter sleeps once backoff is exhausted.
	sleepFor = 50 * time.Microsecond
)

// Lock is a test-and-test-and-set spin lock with bounded exponential backoff.
// Waiters yield the processor between attempts and fall back to sleeping once
// the backoff ceiling has been reached. There is no fairness guarantee.
//
// The zero value is an unlocked Lock. A Lock must not be copied after first use.
type Lock struct {
	state atomic.Uint32
	_     [60]byte // keep neighbouring locks off this cache line
}

// Lock acquires the lock, blocking the calling goroutine until it is available.
func (l *Lock) Lock() {
	if l.state.CompareAndSwap(0, 1) {
		return
	}
	l.lockSlow()
}

func (l *Lock) lockSlow() {
	backoff := 1
	capped := 0
	for {
		if l.state.Load() == 0 && l.state.CompareAndSwap(0, 1) {
			return
		}
		if backoff < maxBackoff {
			for range backoff {
				runtime.Gosched()
			}
			backoff <<= 1
			continue
		}
		if capped < sleepAfter {
			capped++
			for range backoff {
				runtime.Gosched()
			}
			continue
		}
		time.Sleep(sleepFor)
	}
}

// TryLock acquires the lock without waiting and reports whether it succeeded.
func (l *Lock) TryLock() bool {
	return l.state.Load() == 0 && l.state.CompareAndSwap(0, 1)
}

// Unlock releases the lock. Unlocking an unlocked Lock panics.
func (l *Lock) Unlock() {
	if l.state.Swap(0) != 1 {
		panic("spin: unlock of unlocked lock")
	}
}
