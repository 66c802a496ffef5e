package chans

import (
	"context"
	"math/rand"
)

// Op is an erased send, receive, or default operand for Select: erased so
// a single slice can mix operations over channels of different element
// types, the same problem generics alone can't solve for a variadic
// reflect.Select-style call.
type Op struct {
	isDefault  bool
	try        func(index int) (Selection, bool)
	register   func(cell *SyncCell, index int)
	unregister func(cell *SyncCell)
}

// SendOp builds a Select operand that sends v on ch.
func SendOp[T any](ch Chan[T], v T) Op {
	sel, ok := ch.(selectable[T])
	if !ok {
		invariant("SendOp: %T does not support selection", ch)
	}
	return Op{
		try: func(index int) (Selection, bool) {
			if ch.TrySend(v) {
				return Selection{Index: index, Ok: true, Sent: true}, true
			}
			return Selection{}, false
		},
		register:   func(cell *SyncCell, index int) { sel.registerSend(cell, v, index) },
		unregister: sel.unregisterSend,
	}
}

// RecvOp builds a Select operand that receives from ch.
func RecvOp[T any](ch Chan[T]) Op {
	sel, ok := ch.(selectable[T])
	if !ok {
		invariant("RecvOp: %T does not support selection", ch)
	}
	return Op{
		try: func(index int) (Selection, bool) {
			v, res := ch.TryRecv()
			switch res {
			case Found:
				return Selection{Index: index, Value: v, Received: true, Ok: true}, true
			case Closed:
				return Selection{Index: index, Ok: true}, true
			default:
				return Selection{}, false
			}
		},
		register:   func(cell *SyncCell, index int) { sel.registerRecv(cell, index) },
		unregister: sel.unregisterRecv,
	}
}

// DefaultOp builds the operand chosen when no other operand is ready
// without blocking. At most one may appear in a single Select call.
func DefaultOp() Op {
	return Op{isDefault: true}
}

// Select picks one ready operand, blocking if necessary. It is equivalent
// to SelectContext(context.Background(), ops...).
func Select(ops ...Op) (Selection, bool) {
	return SelectContext(context.Background(), ops...)
}

// SelectContext picks one ready operand among ops, favoring none of them:
// the scan phase visits candidates in a random order so that, under
// sustained contention across many Select calls, no single channel is
// starved in favor of another that happens to sort first. If a DefaultOp
// is present and nothing else is immediately ready, it fires without
// blocking. Otherwise SelectContext parks until an operand fires or ctx is
// done; in the latter case it returns false.
func SelectContext(ctx context.Context, ops ...Op) (Selection, bool) {
	defaultIndex := -1
	participants := 0
	for i, op := range ops {
		if op.isDefault {
			defaultIndex = i
			continue
		}
		participants++
	}
	if participants == 0 && defaultIndex < 0 {
		invariant("Select: no operands")
	}

	for _, i := range rand.Perm(len(ops)) {
		op := ops[i]
		if op.isDefault {
			continue
		}
		if sel, ok := op.try(i); ok {
			return sel, true
		}
	}
	if defaultIndex >= 0 {
		return Selection{Index: defaultIndex, Ok: true}, true
	}

	cell := defaultSyncCellPool.obtain()
	for i := 1; i < participants; i++ {
		cell.retain()
	}
	for i, op := range ops {
		if !op.isDefault {
			op.register(cell, i)
		}
	}

	release := func() {
		for _, op := range ops {
			if !op.isDefault {
				op.unregister(cell)
			}
		}
		for i := 0; i < participants; i++ {
			cell.release()
		}
		defaultSyncCellPool.release(cell)
	}

	if !cell.wait(ctx) {
		if cell.cancelIfReady() {
			release()
			return Selection{}, false
		}
		cell.waitForever()
	}

	sel, _ := cell.pointer().(Selection)
	release()
	return sel, true
}
