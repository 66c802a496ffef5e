package chans

import (
	"context"
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

// maxBufferedNCapacity is the ceiling a requested capacity is clamped to
// before rounding up to a power of two.
const maxBufferedNCapacity = 32768

// clampMax returns v capped at max, for any ordered numeric type. Used to
// enforce BufferedNChannel's capacity ceiling before nextPow2 ever sees
// the value, the same clamp-then-round-up order catrate's ringBuffer
// sizing leans on constraints.Ordered for.
func clampMax[T constraints.Ordered](v, max T) T {
	if v > max {
		return max
	}
	return v
}

// nextPow2 returns the smallest power of two >= n, for sizing the ring's
// backing array so indexing can use a bitmask instead of a modulo.
// Grounded on catrate's ringBuffer, which sizes itself the same way for
// the same reason.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// BufferedNChannel is a fixed-capacity, FIFO-ordered buffered channel
// backed by a power-of-two ring buffer, the same indexing scheme as
// catrate's ringBuffer. Capacity is the caller's requested size, clamped
// to maxBufferedNCapacity; the backing array is then rounded up to the
// next power of two purely for the mask trick; "full" is judged against
// the (clamped) requested capacity, not the array's length.
type BufferedNChannel[T any] struct {
	mu       spinlock
	closed   atomic.Bool
	buf      []T
	mask     uint64
	head     uint64
	tail     uint64
	capacity int
	sendq    waitq
	recvq    waitq
	pool     *SyncCellPool
	nodes    *nodePool
}

func newBufferedNChannel[T any](capacity int) *BufferedNChannel[T] {
	capacity = clampMax(capacity, maxBufferedNCapacity)
	size := nextPow2(capacity)
	return &BufferedNChannel[T]{
		buf:      make([]T, size),
		mask:     uint64(size - 1),
		capacity: capacity,
		pool:     defaultSyncCellPool,
		nodes:    defaultNodePool,
	}
}

func (ch *BufferedNChannel[T]) count() int {
	return int(ch.tail - ch.head)
}

func (ch *BufferedNChannel[T]) push(v T) {
	ch.buf[ch.tail&ch.mask] = v
	ch.tail++
}

func (ch *BufferedNChannel[T]) pop() T {
	v := ch.buf[ch.head&ch.mask]
	var zero T
	ch.buf[ch.head&ch.mask] = zero
	ch.head++
	return v
}

func (ch *BufferedNChannel[T]) reclaim(n *node) {
	if n.index >= 0 {
		ch.nodes.put(n)
	}
}

// Send mirrors runtime/chan.go's chansend ordering for the buffered case:
// hand the value straight to a parked receiver if one exists, otherwise
// buffer it if there is room, otherwise park.
func (ch *BufferedNChannel[T]) Send(ctx context.Context, v T) bool {
	ch.mu.Lock()
	if ch.closed.Load() {
		ch.mu.Unlock()
		return false
	}
	for {
		n := ch.recvq.dequeue()
		if n == nil {
			break
		}
		if n.cell.setState(cellPointer) {
			deliverRecv(n, v)
			n.cell.success.Store(true)
			ch.mu.Unlock()
			n.cell.signal()
			ch.reclaim(n)
			return true
		}
		ch.reclaim(n)
	}
	if ch.count() < ch.capacity {
		ch.push(v)
		ch.mu.Unlock()
		return true
	}
	cell := ch.pool.obtain()
	cell.setPayload(v)
	n := ch.nodes.get()
	n.cell, n.index = cell, -1
	ch.sendq.enqueue(n)
	ch.mu.Unlock()

	ok := ch.awaitNode(n, ctx, &ch.sendq)
	result := ok && cell.success.Load()
	cell.release()
	ch.pool.release(cell)
	ch.nodes.put(n)
	return result
}

// Recv mirrors chanrecv's buffered case: take the oldest buffered value,
// and if a sender is parked (only possible when the buffer was already at
// capacity), immediately pull its value into the slot just vacated so the
// buffer stays topped up rather than requiring a second round trip.
func (ch *BufferedNChannel[T]) Recv(ctx context.Context) (T, bool) {
	var zero T
	ch.mu.Lock()
	if ch.count() > 0 {
		v := ch.pop()
		for {
			n := ch.sendq.dequeue()
			if n == nil {
				break
			}
			if n.cell.setState(cellPointer) {
				sv, _ := n.cell.pointer().(T)
				tagSend(n)
				ch.push(sv)
				n.cell.success.Store(true)
				ch.mu.Unlock()
				n.cell.signal()
				ch.reclaim(n)
				return v, true
			}
			ch.reclaim(n)
		}
		ch.mu.Unlock()
		return v, true
	}
	if ch.closed.Load() {
		ch.mu.Unlock()
		return zero, false
	}
	cell := ch.pool.obtain()
	n := ch.nodes.get()
	n.cell, n.index = cell, -1
	ch.recvq.enqueue(n)
	ch.mu.Unlock()

	ok := ch.awaitNode(n, ctx, &ch.recvq)
	if !ok || !cell.success.Load() {
		cell.release()
		ch.pool.release(cell)
		ch.nodes.put(n)
		return zero, false
	}
	v, _ := cell.pointer().(T)
	cell.release()
	ch.pool.release(cell)
	ch.nodes.put(n)
	return v, true
}

func (ch *BufferedNChannel[T]) awaitNode(n *node, ctx context.Context, q *waitq) bool {
	if n.cell.wait(ctx) {
		return true
	}
	ch.mu.Lock()
	unlinked := q.unlink(n)
	ch.mu.Unlock()
	if unlinked {
		return false
	}
	n.cell.waitForever()
	return true
}

func (ch *BufferedNChannel[T]) TrySend(v T) bool {
	ch.mu.Lock()
	if ch.closed.Load() {
		ch.mu.Unlock()
		return false
	}
	for {
		n := ch.recvq.dequeue()
		if n == nil {
			break
		}
		if n.cell.setState(cellPointer) {
			deliverRecv(n, v)
			n.cell.success.Store(true)
			ch.mu.Unlock()
			n.cell.signal()
			ch.reclaim(n)
			return true
		}
		ch.reclaim(n)
	}
	if ch.count() < ch.capacity {
		ch.push(v)
		ch.mu.Unlock()
		return true
	}
	ch.mu.Unlock()
	return false
}

func (ch *BufferedNChannel[T]) TryRecv() (T, TryRecvResult) {
	var zero T
	ch.mu.Lock()
	if ch.count() > 0 {
		v := ch.pop()
		for {
			n := ch.sendq.dequeue()
			if n == nil {
				break
			}
			if n.cell.setState(cellPointer) {
				sv, _ := n.cell.pointer().(T)
				tagSend(n)
				ch.push(sv)
				n.cell.success.Store(true)
				ch.mu.Unlock()
				n.cell.signal()
				ch.reclaim(n)
				return v, Found
			}
			ch.reclaim(n)
		}
		ch.mu.Unlock()
		return v, Found
	}
	closed := ch.closed.Load()
	ch.mu.Unlock()
	if closed {
		return zero, Closed
	}
	return zero, Empty
}

func (ch *BufferedNChannel[T]) Close() {
	ch.mu.Lock()
	if ch.closed.Load() {
		ch.mu.Unlock()
		return
	}
	ch.closed.Store(true)
	var woken []*node
	for n := ch.sendq.dequeue(); n != nil; n = ch.sendq.dequeue() {
		woken = append(woken, n)
	}
	for n := ch.recvq.dequeue(); n != nil; n = ch.recvq.dequeue() {
		woken = append(woken, n)
	}
	ch.mu.Unlock()
	for _, n := range woken {
		ch.closeWake(n)
	}
}

func (ch *BufferedNChannel[T]) closeWake(n *node) {
	if n.index >= 0 {
		if !n.cell.setState(cellPointer) {
			ch.nodes.put(n)
			return
		}
		deliverClose(n)
		n.cell.signal()
		ch.nodes.put(n)
		return
	}
	n.cell.signal()
}

func (ch *BufferedNChannel[T]) IsClosed() bool {
	return ch.closed.Load()
}

func (ch *BufferedNChannel[T]) IsEmpty() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.count() == 0
}

func (ch *BufferedNChannel[T]) IsFull() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.count() >= ch.capacity
}

// Len returns the number of values currently buffered.
func (ch *BufferedNChannel[T]) Len() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.count()
}

// Cap returns the channel's requested capacity.
func (ch *BufferedNChannel[T]) Cap() int {
	return ch.capacity
}

// registerSend mirrors Send's own three-phase ordering (direct handoff,
// then buffer, then park) before giving up and parking cell on sendq. A
// plain Recv can otherwise end up parked on recvq in the window between
// a Select's try() scan and this registration, and without re-checking
// here it would be left stranded opposite a sendq entry nothing is left
// to dequeue.
func (ch *BufferedNChannel[T]) registerSend(cell *SyncCell, v T, index int) {
	ch.mu.Lock()
	if ch.closed.Load() {
		ch.mu.Unlock()
		claimAndSignalClosed(cell, index)
		return
	}
	for {
		n := ch.recvq.dequeue()
		if n == nil {
			break
		}
		if n.cell.setState(cellPointer) {
			deliverRecv(n, v)
			n.cell.success.Store(true)
			ch.mu.Unlock()
			n.cell.signal()
			ch.reclaim(n)
			if cell.setState(cellPointer) {
				cell.setPayload(Selection{Index: index, Ok: true, Sent: true})
				cell.signal()
			}
			return
		}
		ch.reclaim(n)
	}
	if ch.count() < ch.capacity {
		ch.push(v)
		ch.mu.Unlock()
		if cell.setState(cellPointer) {
			cell.setPayload(Selection{Index: index, Ok: true, Sent: true})
			cell.signal()
		}
		return
	}
	cell.setPayload(v)
	n := ch.nodes.get()
	n.cell, n.index = cell, index
	ch.sendq.enqueue(n)
	ch.mu.Unlock()
}

// registerRecv is registerSend's mirror: take a buffered value (pulling a
// parked sender's value in to keep the buffer topped up) before falling
// back to parking on recvq.
func (ch *BufferedNChannel[T]) registerRecv(cell *SyncCell, index int) {
	ch.mu.Lock()
	if ch.count() > 0 {
		v := ch.pop()
		for {
			n := ch.sendq.dequeue()
			if n == nil {
				break
			}
			if n.cell.setState(cellPointer) {
				sv, _ := n.cell.pointer().(T)
				tagSend(n)
				ch.push(sv)
				n.cell.success.Store(true)
				ch.mu.Unlock()
				n.cell.signal()
				ch.reclaim(n)
				if cell.setState(cellPointer) {
					cell.setPayload(Selection{Index: index, Value: v, Received: true, Ok: true})
					cell.signal()
				}
				return
			}
			ch.reclaim(n)
		}
		ch.mu.Unlock()
		if cell.setState(cellPointer) {
			cell.setPayload(Selection{Index: index, Value: v, Received: true, Ok: true})
			cell.signal()
		}
		return
	}
	if ch.closed.Load() {
		ch.mu.Unlock()
		claimAndSignalClosed(cell, index)
		return
	}
	n := ch.nodes.get()
	n.cell, n.index = cell, index
	ch.recvq.enqueue(n)
	ch.mu.Unlock()
}

func (ch *BufferedNChannel[T]) unregisterSend(cell *SyncCell) {
	ch.unregister(&ch.sendq, cell)
}

func (ch *BufferedNChannel[T]) unregisterRecv(cell *SyncCell) {
	ch.unregister(&ch.recvq, cell)
}

func (ch *BufferedNChannel[T]) unregister(q *waitq, cell *SyncCell) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	for n := q.first; n != nil; n = n.next {
		if n.cell == cell {
			q.remove(n)
			ch.nodes.put(n)
			return
		}
	}
}
