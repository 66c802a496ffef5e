package chans

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncCellPool_ObtainReusesReleasedCell(t *testing.T) {
	p := NewSyncCellPool()
	c1 := p.obtain()
	c1.release()
	p.release(c1)

	c2 := p.obtain()
	assert.Same(t, c1, c2, "a released cell with refCount 0 should be reused")
	assert.EqualValues(t, cellReady, c2.getState())
}

func TestSyncCellPool_ObtainSkipsStillObservedCell(t *testing.T) {
	p := NewSyncCellPool()
	c1 := p.obtain()
	c1.retain() // still observed by a second party (e.g. a select registration)
	p.release(c1)

	c2 := p.obtain()
	assert.NotSame(t, c1, c2, "a cell still under observation must not be handed back out")
}

func TestSyncCellPool_ReleaseDropsBeyondCapacity(t *testing.T) {
	p := &SyncCellPool{items: make([]*SyncCell, 0, 2)}
	a := newSyncCell()
	b := newSyncCell()
	c := newSyncCell()
	a.refCount.Store(0)
	b.refCount.Store(0)
	c.refCount.Store(0)

	p.release(a)
	p.release(b)
	p.release(c) // capacity is 2, this one should just be dropped

	assert.Len(t, p.items, 2)
}

func TestSyncCellPool_ObtainAllocatesWhenEmpty(t *testing.T) {
	p := NewSyncCellPool()
	c := p.obtain()
	assert.NotNil(t, c)
	assert.EqualValues(t, cellReady, c.getState())
	assert.EqualValues(t, 1, c.refCount.Load())
}
