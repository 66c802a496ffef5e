package chans

import "context"

// Chan is the common contract every channel kind in this package satisfies.
// Send and Recv require a non-nil context; pass context.Background() to
// block for as long as needed, same as any other blocking call in this
// package.
type Chan[T any] interface {
	// Send blocks until the value is accepted, the channel is closed, or
	// ctx is done. It returns false in the latter two cases.
	Send(ctx context.Context, v T) bool
	// Recv blocks until a value is available, the channel is closed and
	// drained, or ctx is done. The bool result is false in the latter two
	// cases, mirroring the built-in comma-ok receive.
	Recv(ctx context.Context) (T, bool)
	// TrySend attempts a non-blocking send, returning whether it fired.
	TrySend(v T) bool
	// TryRecv attempts a non-blocking receive.
	TryRecv() (T, TryRecvResult)
	// Close marks the channel closed. Idempotent: a second call is a no-op.
	Close()
	// IsClosed reports whether Close has been called.
	IsClosed() bool
	// IsEmpty reports whether a receive would currently block.
	IsEmpty() bool
	// IsFull reports whether a send would currently block.
	IsFull() bool
}

// selectable is the erased registration surface Select needs from a
// channel, beneath the generic Chan[T] the caller sees. All three
// constructors below return values satisfying it alongside Chan[T]; Op
// recovers it with a type assertion so select.go never needs to be
// generic over every operand's element type at once.
type selectable[T any] interface {
	registerSend(cell *SyncCell, v T, index int)
	registerRecv(cell *SyncCell, index int)
	unregisterSend(cell *SyncCell)
	unregisterRecv(cell *SyncCell)
}

// Make constructs a channel by requested capacity: 0 is an unbuffered
// rendezvous, 1 a single slot, and anything greater a fixed-capacity ring
// buffer. Negative capacities panic, the same as the built-in
// make(chan T, n).
func Make[T any](capacity int) Chan[T] {
	switch {
	case capacity < 0:
		invariant("Make: negative capacity %d", capacity)
		panic("unreachable")
	case capacity == 0:
		return newUnbufferedChannel[T]()
	case capacity == 1:
		return newBuffered1Channel[T]()
	default:
		return newBufferedNChannel[T](capacity)
	}
}
