package chans

import "fmt"

// TryRecvResult classifies the outcome of a non-blocking receive.
type TryRecvResult uint8

const (
	// Found indicates a value was received; it is the zero value so a
	// successful tryRecv reads naturally as the common case.
	Found TryRecvResult = iota
	// Empty indicates the channel had nothing to receive, but is not closed.
	Empty
	// Closed indicates the channel is closed and fully drained.
	Closed
)

func (r TryRecvResult) String() string {
	switch r {
	case Found:
		return "found"
	case Empty:
		return "empty"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("TryRecvResult(%d)", uint8(r))
	}
}

// invariant panics on a broken protocol invariant: a library bug, never a
// condition a caller can trigger through ordinary use. Mirrors the
// plainError-on-protocol-violation convention of runtime/chan.go and the
// fmt.Errorf-then-panic convention of catrate.NewLimiter.
func invariant(format string, args ...any) {
	panic(fmt.Errorf("chans: invariant violated: "+format, args...))
}
