package chans

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextPow2(t *testing.T) {
	cases := []struct{ n, want int }{
		{1, 1},
		{2, 2},
		{3, 4},
		{4, 4},
		{5, 8},
		{9, 16},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, nextPow2(c.n), "nextPow2(%d)", c.n)
	}
}

func TestBufferedNChannel_CapacityClampedToMaximum(t *testing.T) {
	ch := newBufferedNChannel[int](1 << 20)
	assert.Equal(t, maxBufferedNCapacity, ch.Cap())
	assert.Equal(t, maxBufferedNCapacity, len(ch.buf))
}

func TestBufferedNChannel_FillsToCapacityWithoutBlocking(t *testing.T) {
	ch := newBufferedNChannel[int](3)
	for i := 0; i < 3; i++ {
		assert.True(t, ch.TrySend(i))
	}
	assert.True(t, ch.IsFull())
	assert.False(t, ch.TrySend(99))
	assert.Equal(t, 3, ch.Len())
	assert.Equal(t, 3, ch.Cap())
}

func TestBufferedNChannel_FIFOOrdering(t *testing.T) {
	ch := newBufferedNChannel[int](4)
	for i := 0; i < 4; i++ {
		assert.True(t, ch.TrySend(i))
	}
	for i := 0; i < 4; i++ {
		v, ok := ch.Recv(context.Background())
		assert.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestBufferedNChannel_SendBlocksWhenFullThenUnblocksOnRecv(t *testing.T) {
	ch := newBufferedNChannel[int](2)
	assert.True(t, ch.TrySend(1))
	assert.True(t, ch.TrySend(2))

	sendDone := make(chan struct{})
	go func() {
		ch.Send(context.Background(), 3)
		close(sendDone)
	}()

	select {
	case <-sendDone:
		t.Fatal("send on a full buffer should have blocked")
	case <-time.After(20 * time.Millisecond):
	}

	v, ok := ch.Recv(context.Background())
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	<-sendDone

	// the parked sender's value should have been pulled straight into the
	// vacated slot, keeping the buffer topped up.
	assert.Equal(t, 2, ch.Len())
}

func TestBufferedNChannel_RecvBlocksWhenEmpty(t *testing.T) {
	ch := newBufferedNChannel[int](2)
	recvDone := make(chan int, 1)
	go func() {
		v, _ := ch.Recv(context.Background())
		recvDone <- v
	}()
	time.Sleep(10 * time.Millisecond)
	assert.True(t, ch.TrySend(42))
	assert.Equal(t, 42, <-recvDone)
}

func TestBufferedNChannel_TryRecvClosedAndEmpty(t *testing.T) {
	ch := newBufferedNChannel[int](2)
	ch.Close()
	_, res := ch.TryRecv()
	assert.Equal(t, Closed, res)
}

func TestBufferedNChannel_CloseDrainsBufferedValuesFirst(t *testing.T) {
	ch := newBufferedNChannel[int](3)
	assert.True(t, ch.TrySend(1))
	assert.True(t, ch.TrySend(2))
	ch.Close()

	v, ok := ch.Recv(context.Background())
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = ch.Recv(context.Background())
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = ch.Recv(context.Background())
	assert.False(t, ok)
}

func TestBufferedNChannel_CloseWakesBlockedSenderAndReceiver(t *testing.T) {
	ch := newBufferedNChannel[int](1)
	assert.True(t, ch.TrySend(1)) // fill it

	var sendOK, recvOK bool
	sendDone := make(chan struct{})
	recvDone := make(chan struct{})
	go func() {
		defer close(sendDone)
		sendOK = ch.Send(context.Background(), 2)
	}()

	ch2 := newBufferedNChannel[int](1)
	go func() {
		defer close(recvDone)
		_, recvOK = ch2.Recv(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	ch.Close()
	ch2.Close()
	<-sendDone
	<-recvDone
	assert.False(t, sendOK)
	assert.False(t, recvOK)
}
