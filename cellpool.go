package chans

// syncCellPoolCapacity bounds the free list so a burst of selection
// activity can't pin an unbounded number of idle cells in memory.
const syncCellPoolCapacity = 256

// SyncCellPool is a bounded free-list cache of idle SyncCells, reused
// across sends, receives, and selections to keep their hot paths off the
// allocator. It is intentionally not sync.Pool: sync.Pool items can be
// dropped by the GC at any time, which is fine for sync.Pool's own stated
// use case (amortizing allocation for short-lived scratch buffers) but
// wrong here, where obtain() needs an explicit, deterministic uniqueness
// check (see below) rather than "whatever didn't get collected".
type SyncCellPool struct {
	mu    spinlock
	items []*SyncCell
}

// NewSyncCellPool constructs an empty pool with the standard bounded
// capacity.
func NewSyncCellPool() *SyncCellPool {
	return &SyncCellPool{items: make([]*SyncCell, 0, syncCellPoolCapacity)}
}

// obtain scans from the top of the free list for a cell no other party
// still observes (refCount == 0) and returns it reset to
// (counter=0, state=Ready, pointer=nil). If none qualifies, a fresh cell
// is allocated. The scan-and-skip (rather than scan-and-stop) behavior is
// deliberate: a cell a timed-out waiter is still mid-race with must not
// be revived out from under it, even if that leaves it stranded in the
// free list for a while.
func (p *SyncCellPool) obtain() *SyncCell {
	p.mu.Lock()
	for i := len(p.items) - 1; i >= 0; i-- {
		c := p.items[i]
		if c.refCount.Load() == 0 {
			p.items = append(p.items[:i], p.items[i+1:]...)
			p.mu.Unlock()
			c.reset()
			return c
		}
	}
	p.mu.Unlock()
	return newSyncCell()
}

// release returns a cell to the free list if there is room, dropping it
// (for the GC to reclaim) otherwise. Callers are expected to have already
// dropped their own reference (SyncCell.release) before calling this;
// release does not itself touch refCount, matching the plain
// "push if space remains, otherwise drop" contract.
func (p *SyncCellPool) release(c *SyncCell) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.items) >= cap(p.items) {
		return
	}
	p.items = append(p.items, c)
}

// defaultSyncCellPool is shared by every channel constructed via Make, the
// way a process-wide pool is described in the design; tests that want
// isolation construct their own via NewSyncCellPool.
var defaultSyncCellPool = NewSyncCellPool()
