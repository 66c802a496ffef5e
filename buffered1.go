package chans

import (
	"context"
	"sync/atomic"
)

// Buffered1Channel is the single-slot specialization of a buffered
// channel: a send that finds the slot empty completes immediately without
// waiting for a receiver, same as make(chan T, 1). It keeps its own
// sender/receiver waitqueues rather than delegating to BufferedNChannel
// with capacity 1, so the hot path never pays for ring-index arithmetic it
// has no use for.
type Buffered1Channel[T any] struct {
	mu     spinlock
	closed atomic.Bool
	full   bool
	slot   T
	sendq  waitq
	recvq  waitq
	pool   *SyncCellPool
	nodes  *nodePool
}

func newBuffered1Channel[T any]() *Buffered1Channel[T] {
	return &Buffered1Channel[T]{pool: defaultSyncCellPool, nodes: defaultNodePool}
}

func (ch *Buffered1Channel[T]) reclaim(n *node) {
	if n.index >= 0 {
		ch.nodes.put(n)
	}
}

func (ch *Buffered1Channel[T]) Send(ctx context.Context, v T) bool {
	ch.mu.Lock()
	if ch.closed.Load() {
		ch.mu.Unlock()
		return false
	}
	if ch.handOffToReceiver(v) {
		return true
	}
	if !ch.full {
		ch.slot = v
		ch.full = true
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

// handOffToReceiver tries to deliver v straight to a parked receiver,
// bypassing the slot entirely. Must be called with ch.mu held; unlocks it
// before returning true, leaves it held on a false return.
func (ch *Buffered1Channel[T]) handOffToReceiver(v T) bool {
	for {
		n := ch.recvq.dequeue()
		if n == nil {
			return false
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
}

func (ch *Buffered1Channel[T]) Recv(ctx context.Context) (T, bool) {
	var zero T
	ch.mu.Lock()
	if ch.full {
		v := ch.slot
		ch.full = false
		ch.refillFromSender()
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

// refillFromSender is called right after a receiver vacates the slot, with
// ch.mu still held; it tries to immediately top the slot back up from a
// parked sender, keeping the buffer full whenever senders are waiting for
// it. Always unlocks ch.mu before returning.
func (ch *Buffered1Channel[T]) refillFromSender() {
	for {
		n := ch.sendq.dequeue()
		if n == nil {
			ch.mu.Unlock()
			return
		}
		if n.cell.setState(cellPointer) {
			sv, _ := n.cell.pointer().(T)
			tagSend(n)
			ch.slot = sv
			ch.full = true
			n.cell.success.Store(true)
			ch.mu.Unlock()
			n.cell.signal()
			ch.reclaim(n)
			return
		}
		ch.reclaim(n)
	}
}

func (ch *Buffered1Channel[T]) awaitNode(n *node, ctx context.Context, q *waitq) bool {
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

func (ch *Buffered1Channel[T]) TrySend(v T) bool {
	ch.mu.Lock()
	if ch.closed.Load() {
		ch.mu.Unlock()
		return false
	}
	if ch.handOffToReceiver(v) {
		return true
	}
	if ch.full {
		ch.mu.Unlock()
		return false
	}
	ch.slot = v
	ch.full = true
	ch.mu.Unlock()
	return true
}

func (ch *Buffered1Channel[T]) TryRecv() (T, TryRecvResult) {
	var zero T
	ch.mu.Lock()
	if ch.full {
		v := ch.slot
		ch.full = false
		ch.refillFromSender()
		return v, Found
	}
	closed := ch.closed.Load()
	ch.mu.Unlock()
	if closed {
		return zero, Closed
	}
	return zero, Empty
}

func (ch *Buffered1Channel[T]) Close() {
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

func (ch *Buffered1Channel[T]) closeWake(n *node) {
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

func (ch *Buffered1Channel[T]) IsClosed() bool {
	return ch.closed.Load()
}

func (ch *Buffered1Channel[T]) IsEmpty() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return !ch.full
}

func (ch *Buffered1Channel[T]) IsFull() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.full
}

// registerSend mirrors Send's own ordering: a parked receiver is claimed
// directly, then the empty slot, before falling back to parking cell on
// sendq. Without this, a plain Recv sitting on recvq in the window
// between a Select's try() scan and this registration would be left
// stranded opposite a sendq entry nothing is left to dequeue.
func (ch *Buffered1Channel[T]) registerSend(cell *SyncCell, v T, index int) {
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
	if !ch.full {
		ch.slot = v
		ch.full = true
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

// registerRecv mirrors Recv's own ordering: take the slot if full,
// refilling it from a parked sender, before falling back to parking on
// recvq.
func (ch *Buffered1Channel[T]) registerRecv(cell *SyncCell, index int) {
	ch.mu.Lock()
	if ch.full {
		v := ch.slot
		ch.full = false
		ch.refillFromSender() // unlocks ch.mu
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

func (ch *Buffered1Channel[T]) unregisterSend(cell *SyncCell) {
	ch.unregister(&ch.sendq, cell)
}

func (ch *Buffered1Channel[T]) unregisterRecv(cell *SyncCell) {
	ch.unregister(&ch.recvq, cell)
}

func (ch *Buffered1Channel[T]) unregister(q *waitq, cell *SyncCell) {
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
