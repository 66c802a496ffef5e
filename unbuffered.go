package chans

import (
	"context"
	"sync/atomic"
)

// UnbufferedChannel is a zero-capacity rendezvous: a send only completes
// once a receiver is there to take the value directly out of the sender's
// hand, and vice versa. Grounded on runtime/chan.go's hchan for the
// zero-capacity case - the same direct-handoff shape, minus the scheduler
// integration a user-space library doesn't have access to.
type UnbufferedChannel[T any] struct {
	mu     spinlock
	closed atomic.Bool
	sendq  waitq
	recvq  waitq
	pool   *SyncCellPool
	nodes  *nodePool
}

func newUnbufferedChannel[T any]() *UnbufferedChannel[T] {
	return &UnbufferedChannel[T]{pool: defaultSyncCellPool, nodes: defaultNodePool}
}

// reclaim recycles a node the caller just dequeued and fully disposed of.
// Ordinary (non-select, index == -1) nodes are owned by whichever
// goroutine parked them - they alone recycle it once they wake, so a
// claimant passing by must leave it alone. A select registration
// (index >= 0) that gets claimed here will never be seen by its owning
// Selector again (it is off every queue, win or lose), so the claimant is
// the only party left to recycle it.
func (ch *UnbufferedChannel[T]) reclaim(n *node) {
	if n.index >= 0 {
		ch.nodes.put(n)
	}
}

func (ch *UnbufferedChannel[T]) Send(ctx context.Context, v T) bool {
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
		// a select arm already claimed this cell on another channel; discard.
		ch.reclaim(n)
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

func (ch *UnbufferedChannel[T]) Recv(ctx context.Context) (T, bool) {
	var zero T
	ch.mu.Lock()
	for {
		n := ch.sendq.dequeue()
		if n == nil {
			break
		}
		if n.cell.setState(cellPointer) {
			v, _ := n.cell.pointer().(T)
			tagSend(n)
			n.cell.success.Store(true)
			ch.mu.Unlock()
			n.cell.signal()
			ch.reclaim(n)
			return v, true
		}
		ch.reclaim(n)
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

// awaitNode blocks on n.cell via ctx, resolving a cancellation against q
// under ch.mu: if n is still parked, the cancellation is honored; if a
// claimant already dequeued it first, waits unconditionally for the
// in-flight signal instead of reporting a timeout that would drop a
// handoff that already happened.
func (ch *UnbufferedChannel[T]) awaitNode(n *node, ctx context.Context, q *waitq) bool {
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

func (ch *UnbufferedChannel[T]) TrySend(v T) bool {
	ch.mu.Lock()
	if ch.closed.Load() {
		ch.mu.Unlock()
		return false
	}
	for {
		n := ch.recvq.dequeue()
		if n == nil {
			ch.mu.Unlock()
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

func (ch *UnbufferedChannel[T]) TryRecv() (T, TryRecvResult) {
	var zero T
	ch.mu.Lock()
	for {
		n := ch.sendq.dequeue()
		if n == nil {
			break
		}
		if n.cell.setState(cellPointer) {
			v, _ := n.cell.pointer().(T)
			tagSend(n)
			n.cell.success.Store(true)
			ch.mu.Unlock()
			n.cell.signal()
			ch.reclaim(n)
			return v, Found
		}
		ch.reclaim(n)
	}
	closed := ch.closed.Load()
	ch.mu.Unlock()
	if closed {
		return zero, Closed
	}
	return zero, Empty
}

func (ch *UnbufferedChannel[T]) Close() {
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

// closeWake delivers a close to a single parked node. An ordinary
// (non-select) node is simply signaled - success stays false, the node
// stays with its owner to recycle on wake. A select-registered node
// additionally needs to win the Ready->Pointer race first, since the same
// cell may be parked on other channels at once; losing here just means
// another channel already served the select, so this node is discarded.
func (ch *UnbufferedChannel[T]) closeWake(n *node) {
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

func (ch *UnbufferedChannel[T]) IsClosed() bool {
	return ch.closed.Load()
}

// IsEmpty reports whether a receive would currently block: true unless a
// sender happens to already be parked waiting for one.
func (ch *UnbufferedChannel[T]) IsEmpty() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.sendq.empty()
}

// IsFull reports whether a send would currently block: true unless a
// receiver happens to already be parked waiting for one.
func (ch *UnbufferedChannel[T]) IsFull() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.recvq.empty()
}

// registerSend mirrors Send's own claim logic before parking: a plain
// Recv may already be sitting on recvq in the window between a Select's
// try() scan and this registration, and must be claimed directly rather
// than left stranded opposite a freshly-parked sendq entry that nothing
// is left to dequeue. Only once no waiting receiver can be found does
// this fall back to parking cell (pre-loaded with v) on sendq for a
// concurrent receiver (ordinary or select-driven) to claim later.
func (ch *UnbufferedChannel[T]) registerSend(cell *SyncCell, v T, index int) {
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
	cell.setPayload(v)
	n := ch.nodes.get()
	n.cell, n.index = cell, index
	ch.sendq.enqueue(n)
	ch.mu.Unlock()
}

// registerRecv is registerSend's mirror: claim a waiting sender directly
// if one is already parked on sendq before falling back to parking on
// recvq.
func (ch *UnbufferedChannel[T]) registerRecv(cell *SyncCell, index int) {
	ch.mu.Lock()
	if ch.closed.Load() {
		ch.mu.Unlock()
		claimAndSignalClosed(cell, index)
		return
	}
	for {
		n := ch.sendq.dequeue()
		if n == nil {
			break
		}
		if n.cell.setState(cellPointer) {
			v, _ := n.cell.pointer().(T)
			tagSend(n)
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
	n := ch.nodes.get()
	n.cell, n.index = cell, index
	ch.recvq.enqueue(n)
	ch.mu.Unlock()
}

func (ch *UnbufferedChannel[T]) unregisterSend(cell *SyncCell) {
	ch.unregister(&ch.sendq, cell)
}

func (ch *UnbufferedChannel[T]) unregisterRecv(cell *SyncCell) {
	ch.unregister(&ch.recvq, cell)
}

// unregister removes the Selector's node for cell from q, if it is still
// there. If it isn't, some other goroutine already claimed it concurrently
// (that party is responsible for recycling the node), and the caller
// (Select, tearing down a losing or already-decided arm) has nothing left
// to do here.
func (ch *UnbufferedChannel[T]) unregister(q *waitq, cell *SyncCell) {
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
