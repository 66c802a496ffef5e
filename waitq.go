package chans

// waitq is a FIFO of parked nodes, each wrapping a SyncCell and the arm
// index it was registered under. Channels keep one waitq per direction
// (senders waiting for a receiver, receivers waiting for a sender, and so
// on for the buffered variants' capacity waiters).
//
// Every method must be called with the owning channel's lock held; that
// lock is what makes unlink's "is this still parked here" check race free
// against a concurrent dequeue claiming the same node.
type waitq struct {
	first, last *node
}

func (q *waitq) enqueue(n *node) {
	n.prev, n.next = nil, nil
	n.linked = true
	if q.last == nil {
		q.first, q.last = n, n
		return
	}
	n.prev = q.last
	q.last.next = n
	q.last = n
}

// dequeue pops the oldest waiter, or nil if the queue is empty.
func (q *waitq) dequeue() *node {
	n := q.first
	if n == nil {
		return nil
	}
	q.remove(n)
	return n
}

// remove splices a specific, still-linked node out of the queue.
func (q *waitq) remove(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		q.first = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		q.last = n.prev
	}
	n.prev, n.next = nil, nil
	n.linked = false
}

// unlink removes n if it is still linked into this queue, reporting
// whether it did anything. Call this under the channel's lock when a wait
// was canceled: true means the cancellation is safe to honor (nobody else
// will ever claim this node); false means a claimant already dequeued it
// first, so the caller must wait for the in-flight handoff to finish
// rather than report a timeout that would silently drop it.
func (q *waitq) unlink(n *node) bool {
	if !n.linked {
		return false
	}
	q.remove(n)
	return true
}

func (q *waitq) empty() bool {
	return q.first == nil
}
