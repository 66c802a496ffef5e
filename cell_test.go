package chans

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSyncCell_WaitSignal(t *testing.T) {
	c := newSyncCell()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ok := c.wait(context.Background())
		assert.True(t, ok)
	}()

	time.Sleep(10 * time.Millisecond)
	c.signal()
	<-done
}

func TestSyncCell_SetStateReadyToPointerIsExclusive(t *testing.T) {
	c := newSyncCell()

	var wg sync.WaitGroup
	var wins int32
	const n = 32
	wg.Add(n)
	var mu sync.Mutex
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if c.setState(cellPointer) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins, "exactly one goroutine should win the claim")
}

func TestSyncCell_WaitTimesOutWhenNeverSignaled(t *testing.T) {
	c := newSyncCell()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ok := c.wait(ctx)
	assert.False(t, ok)
}

func TestSyncCell_PayloadOnlyVisibleAfterPointer(t *testing.T) {
	c := newSyncCell()
	assert.Nil(t, c.pointer())
	c.setPayload("hello")
	// still Ready: payload is written, but not yet "visible" per the
	// state-gated read.
	assert.Nil(t, c.pointer())
	assert.True(t, c.setState(cellPointer))
	assert.Equal(t, "hello", c.pointer())
}

func TestSyncCell_ResetRestoresPoolIssueState(t *testing.T) {
	c := newSyncCell()
	c.setPayload(1)
	assert.True(t, c.setState(cellPointer))
	c.success.Store(true)
	c.retain()

	c.reset()

	assert.EqualValues(t, cellReady, c.getState())
	assert.Nil(t, c.pointer())
	assert.False(t, c.success.Load())
	assert.EqualValues(t, 1, c.refCount.Load())
}

func TestSyncCell_CancelIfReadyLosesToConcurrentClaim(t *testing.T) {
	c := newSyncCell()
	assert.True(t, c.setState(cellPointer))
	assert.False(t, c.cancelIfReady(), "cancelIfReady must not override a winning claim")
	assert.EqualValues(t, cellPointer, c.getState())
}

func TestSyncCell_CancelIfReadyWinsWhenUnclaimed(t *testing.T) {
	c := newSyncCell()
	assert.True(t, c.cancelIfReady())
	assert.EqualValues(t, cellDone, c.getState())
	assert.False(t, c.setState(cellPointer), "a canceled cell must not still be claimable")
}

func TestClaimAndSignalClosed(t *testing.T) {
	c := newSyncCell()
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.wait(context.Background())
	}()
	time.Sleep(10 * time.Millisecond)
	claimAndSignalClosed(c, 3)
	<-done
	sel, ok := c.pointer().(Selection)
	assert.True(t, ok)
	assert.Equal(t, 3, sel.Index)
	assert.True(t, sel.Ok)
}
