package chans

import (
	"context"
	"math"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// cellState is the tagged state of a SyncCell. It only ever advances
// Ready -> Pointer or Ready/Pointer -> Done; see SyncCell.setState.
type cellState int32

const (
	cellReady cellState = iota
	cellPointer
	cellDone
)

// cellPayload is the boxed contents of a SyncCell's data slot. Boxing a
// plain any behind a pointer lets the slot be stored in an
// atomic.Pointer[cellPayload] regardless of what's inside it (a value
// pointer for a rendezvous handoff, or a Selection for a winning select
// arm), which a bare atomic.Value could not do once more than one
// concrete type starts flowing through the same cell across its lifetime.
type cellPayload struct {
	v any
}

// Selection identifies which arm of a Select registered a given SyncCell,
// and is what a winning channel writes into the cell's data slot during
// the blocking phase of selection.
type Selection struct {
	// Index is the position of the winning operation in the slice passed
	// to Select.
	Index int
	// Value is the received value, for a winning receive arm. It is the
	// zero value for a send arm or a closed-channel outcome.
	Value any
	// Received mirrors the bool half of a recv's (T, bool) result: false
	// means the channel was closed and drained.
	Received bool
	// Sent is true only for a send arm whose value was actually handed
	// off. A send arm that lost its race to a concurrent Close reports
	// Ok true, Sent false, Received false - the same shape a closed-recv
	// outcome has, except for this field, which is what lets a caller
	// tell "my send landed" apart from "nothing was sent, channel closed".
	Sent bool
	// Ok is true for every outcome Select reports, closed-channel outcomes
	// included. Only the zero Selection that SelectContext returns when ctx
	// is done before any operand fires has Ok false.
	Ok bool
}

// SyncCell is the two-phase semaphore described in the design: a
// single-use synchronization token carrying a P/V counter, a tagged state
// whose Ready->Pointer transition is the unique commit point for
// selection, and an opaque data slot valid only while the state is
// Pointer.
//
// The counter is backed by a lazily-created golang.org/x/sync/semaphore.Weighted
// of weight 1, used purely as the kernel-level parking primitive: it is
// drained to zero permits the instant it's created, so the first real
// wait always blocks until a matching signal releases one permit. This
// gives SyncCell context-based timeouts for free, and gets the
// "never release more than held" overflow guard from the semaphore
// package itself instead of a bespoke bounds check.
type SyncCell struct {
	counter atomic.Int32
	state   atomic.Int32
	payload atomic.Pointer[cellPayload]
	sem     atomic.Pointer[semaphore.Weighted]

	// refCount tracks how many parties (beyond the free-list) may still
	// observe this cell: one for the owner that obtained it, or, during a
	// Select, one per participating channel in total (the owner's own
	// reference counting as the first). SyncCellPool only ever hands out
	// cells it finds with refCount == 0.
	refCount atomic.Int32

	// success records the outcome a claimant leaves for the parked owner
	// to read after wait() returns true: true for an actual handoff,
	// false for a close-wake. Mirrors sudog.success in runtime/chan.go.
	success atomic.Bool
}

func newSyncCell() *SyncCell {
	c := &SyncCell{}
	c.refCount.Store(1)
	return c
}

// reset restores a cell to its pool-issue state: counter 0, state Ready,
// empty data slot, single (new owner's) reference, detached from any
// waiter queue. The backing kernel semaphore, if one was ever created, is
// intentionally kept: recreating golang.org/x/sync/semaphore.Weighted on every
// reuse would defeat the point of pooling, and a drained semaphore is
// exactly the state wait() expects regardless of prior use, PROVIDED the
// previous cycle's counter is back at zero (which is invariant to
// SyncCellPool.release).
func (c *SyncCell) reset() {
	c.counter.Store(0)
	c.state.Store(int32(cellReady))
	c.payload.Store(nil)
	c.refCount.Store(1)
	c.success.Store(false)
}

// retain adds one observer reference, e.g. when a Select registers this
// cell with another channel.
func (c *SyncCell) retain() {
	c.refCount.Add(1)
}

// release drops one observer reference.
func (c *SyncCell) release() {
	if c.refCount.Add(-1) < 0 {
		invariant("SyncCell: refCount dropped below zero")
	}
}

func newDrainedSemaphore() *semaphore.Weighted {
	sem := semaphore.NewWeighted(1)
	if !sem.TryAcquire(1) {
		invariant("SyncCell: fresh semaphore was already held")
	}
	return sem
}

// ensureSem lazily publishes the backing kernel semaphore, draining it on
// creation so the next Acquire genuinely blocks until a matching signal.
func (c *SyncCell) ensureSem() *semaphore.Weighted {
	if sem := c.sem.Load(); sem != nil {
		return sem
	}
	sem := newDrainedSemaphore()
	if c.sem.CompareAndSwap(nil, sem) {
		return sem
	}
	return c.sem.Load()
}

// wait implements the P side: decrement, and if the post-decrement value
// is negative, park on the kernel semaphore until signaled, canceled, or
// timed out (per the deadline/cancellation carried by ctx).
//
// A canceled or timed-out wait only restores the counter; it does not
// touch state. Whether the cancellation is safe to honor depends on
// whether this cell is still sitting in some channel's waiter queue, which
// only that channel's lock can answer - see waitq.unlink and its callers.
// If a claimant had already dequeued this cell before the cancellation was
// observed, the caller is expected to fall back to waitForever instead of
// reporting failure, since a real handoff is already in flight and would
// otherwise be silently dropped.
func (c *SyncCell) wait(ctx context.Context) bool {
	if c.counter.Add(-1) >= 0 {
		return true
	}

	sem := c.ensureSem()
	for {
		err := sem.Acquire(ctx, 1)
		if err == nil {
			return true
		}
		// Aborted system waits are retried internally; only a genuine
		// context cancellation/deadline gives up.
		if ctx.Err() != nil {
			if c.counter.Add(1) > 0 {
				// A signal landed between the failed Acquire and this
				// restore and has released (or is about to release) a
				// permit. Take it so the semaphore is drained again; the
				// restored count is what the caller's waitForever consumes.
				_ = sem.Acquire(context.Background(), 1)
			}
			return false
		}
	}
}

// waitForever blocks for the matching signal unconditionally. Used when a
// wait was canceled but the owning channel's lock showed a claimant had
// already taken this cell off the waiter queue, meaning the signal is
// already in flight and finite.
func (c *SyncCell) waitForever() {
	c.wait(context.Background())
}

// signal implements the V side: increment, and if the pre-increment value
// was negative, release one waiter. Because the kernel semaphore is
// created lazily by the first wait(), a signal that arrives first must
// briefly spin until that semaphore is published.
func (c *SyncCell) signal() {
	prev := c.counter.Add(1) - 1
	if prev >= 0 {
		return
	}
	if prev == math.MinInt32 {
		invariant("SyncCell: counter overflow")
	}

	var sem *semaphore.Weighted
	for {
		sem = c.sem.Load()
		if sem != nil {
			break
		}
		// the matching wait() hasn't published its semaphore yet.
	}
	sem.Release(1)
}

// setState attempts the requested state transition. Ready->Pointer is a
// CAS (the selection commit point: exactly one contending channel wins);
// any->Done is an unconditional store, since Done is terminal and
// idempotent. Any other target is rejected.
func (c *SyncCell) setState(target cellState) bool {
	switch target {
	case cellPointer:
		return c.state.CompareAndSwap(int32(cellReady), int32(cellPointer))
	case cellDone:
		c.state.Store(int32(cellDone))
		return true
	default:
		return false
	}
}

func (c *SyncCell) getState() cellState {
	return cellState(c.state.Load())
}

// cancelIfReady is Select's cross-channel counterpart to waitq.unlink: a
// Select registers the same cell with several channels at once, so no
// single lock can answer "is this cell still unclaimed" the way a single
// channel's own lock can for an ordinary parked call. cancelIfReady
// instead settles it with a CAS straight to Done. If it wins, no channel
// had claimed the cell yet and the caller may abandon the wait cleanly.
// If it loses, some channel already won Ready->Pointer and is in the
// middle of a handoff; the caller must fall back to waitForever rather
// than report a spurious timeout.
func (c *SyncCell) cancelIfReady() bool {
	return c.state.CompareAndSwap(int32(cellReady), int32(cellDone))
}

// setPayload writes the data slot. A claimant writes it after winning the
// Ready->Pointer transition and before signaling, so the write
// happens-before whatever wait() call observes the state change. A parking
// sender also pre-loads its value here while the cell is still Ready,
// before enqueuing it, for the claiming receiver to read.
func (c *SyncCell) setPayload(v any) {
	c.payload.Store(&cellPayload{v: v})
}

// pointer reads the data slot; it is only meaningful once the state is
// Pointer, and reads as nil otherwise.
func (c *SyncCell) pointer() any {
	if c.getState() != cellPointer {
		return nil
	}
	box := c.payload.Load()
	if box == nil {
		return nil
	}
	return box.v
}

// claimAndSignalClosed is how a channel wakes a Select registration that
// arrived after Close had already run: since the registering channel never
// got to enqueue it, there's no waiter-queue entry for Close's own wake
// loop to have found. The channel instead tries to win the cell right
// here; if some other channel already claimed it first, this is a no-op.
func claimAndSignalClosed(cell *SyncCell, index int) {
	if !cell.setState(cellPointer) {
		return
	}
	cell.setPayload(Selection{Index: index, Ok: true})
	cell.signal()
}
