package chans

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSelect_PicksReadyRecvOverBlockedOne(t *testing.T) {
	a := newUnbufferedChannel[int]()
	b := newUnbufferedChannel[int]()

	go func() { a.Send(context.Background(), 1) }()
	time.Sleep(10 * time.Millisecond)

	sel, ok := Select(RecvOp[int](a), RecvOp[int](b))
	assert.True(t, ok)
	assert.Equal(t, 0, sel.Index)
	assert.Equal(t, 1, sel.Value)
	assert.True(t, sel.Received)
}

func TestSelect_DefaultFiresWhenNothingReady(t *testing.T) {
	a := newUnbufferedChannel[int]()
	sel, ok := Select(RecvOp[int](a), DefaultOp())
	assert.True(t, ok)
	assert.Equal(t, 1, sel.Index)
}

func TestSelect_BlocksUntilSomeArmFires(t *testing.T) {
	a := newUnbufferedChannel[int]()
	go func() {
		time.Sleep(15 * time.Millisecond)
		a.Send(context.Background(), 5)
	}()

	sel, ok := Select(RecvOp[int](a))
	assert.True(t, ok)
	assert.Equal(t, 5, sel.Value)
}

func TestSelect_SendOpFiresOnWaitingReceiver(t *testing.T) {
	a := newUnbufferedChannel[int]()
	recvDone := make(chan int, 1)
	go func() {
		v, _ := a.Recv(context.Background())
		recvDone <- v
	}()
	time.Sleep(10 * time.Millisecond)

	sel, ok := Select(SendOp[int](a, 77))
	assert.True(t, ok)
	assert.Equal(t, 0, sel.Index)
	assert.Equal(t, 77, <-recvDone)
}

func TestSelect_CommitsExactlyOnceUnderContention(t *testing.T) {
	a := newUnbufferedChannel[int]()
	b := newUnbufferedChannel[int]()

	const trials = 1000
	for i := 0; i < trials; i++ {
		sendDone := make(chan struct{}, 2)
		go func() { a.Send(context.Background(), 1); sendDone <- struct{}{} }()
		go func() { b.Send(context.Background(), 2); sendDone <- struct{}{} }()

		sel, ok := Select(RecvOp[int](a), RecvOp[int](b))
		if !ok {
			t.Fatalf("trial %d: select failed", i)
		}
		// exactly one of the two sends completes against this Select call;
		// the other remains parked for the cleanup recv below.
		if sel.Index == 0 {
			_, _ = b.Recv(context.Background())
		} else {
			_, _ = a.Recv(context.Background())
		}
		<-sendDone
		<-sendDone
	}
}

func TestSelectContext_CancelUnblocksWhenNothingFires(t *testing.T) {
	a := newUnbufferedChannel[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	sel, ok := SelectContext(ctx, RecvOp[int](a))
	assert.False(t, ok)
	assert.Zero(t, sel.Index)
}

func TestSelect_ClosedChannelReportsClosed(t *testing.T) {
	a := newUnbufferedChannel[int]()
	a.Close()

	sel, ok := Select(RecvOp[int](a))
	assert.True(t, ok)
	assert.False(t, sel.Received)
	assert.True(t, sel.Ok)
}

func TestSelect_RegistersAfterCloseStillWakes(t *testing.T) {
	a := newUnbufferedChannel[int]()
	closed := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		a.Close()
		close(closed)
	}()
	<-closed
	// a.Close()'s own wake sweep has already run with nothing registered;
	// this registration must still resolve rather than hang.
	sel, ok := Select(RecvOp[int](a))
	assert.True(t, ok)
	assert.False(t, sel.Received)
}

// TestSelect_SendOpDistinguishesSentFromClosed locks in that a send arm's
// outcome can be told apart from a closed channel: both previously
// produced the identical {Ok:true, Received:false, Value:nil} shape.
func TestSelect_SendOpDistinguishesSentFromClosed(t *testing.T) {
	sent := newUnbufferedChannel[int]()
	recvDone := make(chan int, 1)
	go func() {
		v, _ := sent.Recv(context.Background())
		recvDone <- v
	}()
	time.Sleep(10 * time.Millisecond)

	sel, ok := Select(SendOp[int](sent, 9))
	assert.True(t, ok)
	assert.True(t, sel.Sent)
	assert.Equal(t, 9, <-recvDone)

	closedCh := newUnbufferedChannel[int]()
	closedCh.Close()
	sel, ok = Select(SendOp[int](closedCh, 1))
	assert.True(t, ok)
	assert.False(t, sel.Sent)
}

// TestSelect_RegisterClaimsAlreadyWaitingOppositeParty exercises the race
// registerSend/registerRecv must win without parking: a plain blocking
// call already sitting on one queue must be claimed directly by a
// Select's registration on the other queue, rather than both ending up
// stranded on opposite queues with nobody left to dequeue either side.
func TestSelect_RegisterClaimsAlreadyWaitingOppositeParty(t *testing.T) {
	a := newUnbufferedChannel[int]()
	recvDone := make(chan int, 1)
	go func() {
		v, _ := a.Recv(context.Background())
		recvDone <- v
	}()
	time.Sleep(10 * time.Millisecond)

	cell := defaultSyncCellPool.obtain()
	a.registerSend(cell, 42, 0)

	// registerSend never blocks the caller; it either claims the
	// already-waiting receiver synchronously (this case) or parks a node
	// for later. A successful immediate claim leaves the cell itself
	// signaled with the arm's Selection, which is what we check for here
	// instead of a queue inspection.
	sel, ok := cell.pointer().(Selection)
	assert.True(t, ok)
	assert.True(t, sel.Sent)
	assert.Equal(t, 42, <-recvDone)
	cell.release()
	defaultSyncCellPool.release(cell)
}

// TestSelect_RegisterRecvClaimsAlreadyWaitingSender is
// TestSelect_RegisterClaimsAlreadyWaitingOppositeParty's mirror for a
// full BufferedNChannel: registerRecv must pull the parked sender's
// value in directly rather than parking a second, unserviceable waiter.
func TestSelect_RegisterRecvClaimsAlreadyWaitingSender(t *testing.T) {
	ch := newBufferedNChannel[int](1)
	assert.True(t, ch.TrySend(1)) // fill the buffer

	sendDone := make(chan bool, 1)
	go func() {
		sendDone <- ch.Send(context.Background(), 2)
	}()
	time.Sleep(10 * time.Millisecond)

	cell := defaultSyncCellPool.obtain()
	ch.registerRecv(cell, 0)

	sel, ok := cell.pointer().(Selection)
	assert.True(t, ok)
	assert.True(t, sel.Received)
	assert.Equal(t, 1, sel.Value)
	assert.True(t, <-sendDone)
	cell.release()
	defaultSyncCellPool.release(cell)
}
