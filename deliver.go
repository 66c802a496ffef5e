package chans

// The three helpers below are what let a single shared SyncCell serve
// both an ordinary blocking call and a Select registration without the
// claiming side needing to know which one it is. A node's index is -1 for
// an ordinary Send/Recv and the arm position for anything registered
// through Select; whichever is writing the cell's outcome just asks the
// node.

// deliverRecv writes v as the outcome of satisfying a registered receive:
// a plain value for an ordinary Recv, or a tagged Selection for a Select
// arm, so the Selector can later identify which arm fired.
func deliverRecv(n *node, v any) {
	if n.index >= 0 {
		n.cell.setPayload(Selection{Index: n.index, Value: v, Received: true, Ok: true})
		return
	}
	n.cell.setPayload(v)
}

// tagSend overwrites a claimed send registration's cell with its arm's
// Selection, once the plain value has already been read out of it by the
// claiming receiver. A no-op for an ordinary (non-select) send, which has
// no Selector to inform.
func tagSend(n *node) {
	if n.index >= 0 {
		n.cell.setPayload(Selection{Index: n.index, Ok: true, Sent: true})
	}
}

// deliverClose tags a node's cell with a closed outcome before waking it
// on a Close. A no-op for an ordinary blocking call, whose own Send/Recv
// already reads failure from success == false without needing a payload.
func deliverClose(n *node) {
	if n.index >= 0 {
		n.cell.setPayload(Selection{Index: n.index, Ok: true})
	}
}
