package book

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Handle is an opaque reference to an arena slot. Handles come from a
// single monotonically increasing sequence shared across every trading
// pair and are never reused; a handle belongs to exactly one pair.
type Handle uint64

// Arena stores every resting order in the process behind the shared
// handle sequence. Slot storage is recycled through a free list when
// orders are cancelled, so churn does not grow the arena unboundedly,
// but the handles themselves stay monotonic.
type Arena struct {
	mu    sync.RWMutex
	slots []slot
	index map[Handle]uint32
	free  []uint32
	next  Handle
}

type slot struct {
	handle Handle
	order  Order
}

// NewArena creates an empty order arena. Handle numbering starts at 1 so
// the zero Handle can serve as a null value.
func NewArena() *Arena {
	return &Arena{
		index: make(map[Handle]uint32),
		next:  1,
	}
}

// Create validates and inserts a single order, returning its handle.
func (a *Arena) Create(o Order) (Handle, error) {
	if err := o.Validate(); err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.createLocked(o), nil
}

// CreateBatch inserts a batch of orders under one lock acquisition and
// returns the handle of the first; the rest follow contiguously since the
// sequence only moves here.
func (a *Arena) CreateBatch(orders []Order) (Handle, error) {
	if len(orders) == 0 {
		return 0, fmt.Errorf("book: empty order batch")
	}
	for i := range orders {
		if err := orders[i].Validate(); err != nil {
			return 0, fmt.Errorf("book: order %d: %w", i, err)
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	first := a.next
	for i := range orders {
		a.createLocked(orders[i])
	}
	return first, nil
}

func (a *Arena) createLocked(o Order) Handle {
	h := a.next
	a.next++
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[idx] = slot{handle: h, order: o}
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{handle: h, order: o})
	}
	a.index[h] = idx
	return h
}

// Get returns a copy of the order behind a handle.
func (a *Arena) Get(h Handle) (Order, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	idx, ok := a.index[h]
	if !ok {
		return Order{}, false
	}
	return a.slots[idx].order, true
}

// Cancel zeroes the entry behind a handle and returns the balances still
// resting in it so the caller can refund them. The slot joins the free
// list; the handle is retired permanently.
func (a *Arena) Cancel(h Handle) (refundReserve, refundSecured uint64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx, exists := a.index[h]
	if !exists {
		return 0, 0, false
	}
	ord := a.slots[idx].order
	a.slots[idx] = slot{}
	delete(a.index, h)
	a.free = append(a.free, idx)
	return ord.ReserveAmount, ord.SecuredAmount, true
}

// Owner returns the owning address of a live order.
func (a *Arena) Owner(h Handle) (common.Address, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	idx, exists := a.index[h]
	if !exists {
		return common.Address{}, false
	}
	return a.slots[idx].order.Owner, true
}

// Snapshot copies the current state of the given handles. Missing handles
// are skipped. Used by the engine's rollback journal.
func (a *Arena) Snapshot(handles []Handle) map[Handle]Order {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap := make(map[Handle]Order, len(handles))
	for _, h := range handles {
		if idx, ok := a.index[h]; ok {
			snap[h] = a.slots[idx].order
		}
	}
	return snap
}

// Restore writes back a snapshot taken earlier in the same pipeline call.
// Handles cancelled since the snapshot are left retired.
func (a *Arena) Restore(snap map[Handle]Order) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for h, ord := range snap {
		if idx, ok := a.index[h]; ok {
			a.slots[idx].order = ord
		}
	}
}

// Len reports the number of live orders.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.index)
}
