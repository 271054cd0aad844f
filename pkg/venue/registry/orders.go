package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/quanta-swap/crossbook/pkg/fixedpoint"
	"github.com/quanta-swap/crossbook/pkg/venue/book"
)

// PlaceOrders registers a batch of resting orders for owner, escrowing
// both offered balances from custody up front. actor must be the owner or
// an unexpired delegate. Returns the handle of the first order; the batch
// occupies a contiguous handle range.
func (r *Registry) PlaceOrders(owner, actor common.Address, p Pair, orders []book.Order) (book.Handle, error) {
	st, err := r.state(p)
	if err != nil {
		return 0, err
	}
	if r.Halted(p) {
		return 0, fmt.Errorf("registry: pair %s is halted", p)
	}
	now := r.clock.Now().Unix()
	if !r.ledger.Approved(owner, actor, now) {
		return 0, fmt.Errorf("registry: %s is not approved to act for %s", actor.Hex(), owner.Hex())
	}
	if len(orders) == 0 {
		return 0, fmt.Errorf("registry: empty order batch")
	}

	var escrowReserve, escrowSecured uint64
	for i := range orders {
		orders[i].Owner = owner
		if err := orders[i].Validate(); err != nil {
			return 0, err
		}
		if escrowReserve, err = fixedpoint.AddU64(escrowReserve, orders[i].ReserveAmount); err != nil {
			return 0, err
		}
		if escrowSecured, err = fixedpoint.AddU64(escrowSecured, orders[i].SecuredAmount); err != nil {
			return 0, err
		}
	}

	if err := r.ledger.Debit(owner, p.Reserve, escrowReserve); err != nil {
		return 0, err
	}
	if err := r.ledger.Debit(owner, p.Secured, escrowSecured); err != nil {
		// Undo the reserve escrow before reporting failure.
		_ = r.ledger.Credit(owner, p.Reserve, escrowReserve)
		return 0, err
	}

	first, err := r.arena.CreateBatch(orders)
	if err != nil {
		_ = r.ledger.Credit(owner, p.Reserve, escrowReserve)
		_ = r.ledger.Credit(owner, p.Secured, escrowSecured)
		return 0, err
	}

	r.mu.Lock()
	for i := range orders {
		st.handles = append(st.handles, first+book.Handle(i))
	}
	r.mu.Unlock()

	r.log.Info("orders_placed",
		zap.String("pair", p.String()),
		zap.String("owner", owner.Hex()),
		zap.Int("count", len(orders)),
		zap.Uint64("first_handle", uint64(first)),
	)
	return first, nil
}

// CancelOrders cancels a batch of handles on a pair and refunds whatever
// balances still rest in each order, rotated fills included. Every handle
// must belong to the named pair, or the whole batch is rejected before
// any refund: a handle placed on another pair escrowed different assets,
// and refunding it here would mint value. actor must be the owner or a
// delegate of each order's owner. Cancellation is allowed even while the
// pair is halted. Returns the total refunds.
func (r *Registry) CancelOrders(actor common.Address, p Pair, handles []book.Handle) (refundReserve, refundSecured uint64, err error) {
	if _, err = r.state(p); err != nil {
		return 0, 0, err
	}
	for _, h := range handles {
		if !r.OwnsHandle(p, h) {
			return 0, 0, fmt.Errorf("registry: handle %d does not belong to pair %s", h, p)
		}
	}
	now := r.clock.Now().Unix()

	for _, h := range handles {
		owner, ok := r.arena.Owner(h)
		if !ok {
			continue
		}
		if !r.ledger.Approved(owner, actor, now) {
			return refundReserve, refundSecured,
				fmt.Errorf("registry: %s is not approved to cancel for %s", actor.Hex(), owner.Hex())
		}
		rAmt, sAmt, ok := r.arena.Cancel(h)
		if !ok {
			continue
		}
		if err := r.ledger.Credit(owner, p.Reserve, rAmt); err != nil {
			return refundReserve, refundSecured, err
		}
		if err := r.ledger.Credit(owner, p.Secured, sAmt); err != nil {
			return refundReserve, refundSecured, err
		}
		refundReserve += rAmt
		refundSecured += sAmt
		r.dropHandle(p, h)
	}

	r.log.Info("orders_cancelled",
		zap.String("pair", p.String()),
		zap.Int("count", len(handles)),
		zap.Uint64("refund_reserve", refundReserve),
		zap.Uint64("refund_secured", refundSecured),
	)
	return refundReserve, refundSecured, nil
}

// dropHandle removes a cancelled handle from the pair's roster.
func (r *Registry) dropHandle(p Pair, h book.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.pairs[p]
	if !ok {
		return
	}
	for i, own := range st.handles {
		if own == h {
			st.handles = append(st.handles[:i], st.handles[i+1:]...)
			return
		}
	}
}

// PairHandles returns the handles a pair has accumulated, in submission
// order. Cancellation removes a handle from the roster; drained orders
// keep theirs.
func (r *Registry) PairHandles(p Pair) []book.Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.pairs[p]
	if !ok {
		return nil
	}
	out := make([]book.Handle, len(st.handles))
	copy(out, st.handles)
	return out
}

// OwnsHandle reports whether the pair owns a handle. A handle never
// belongs to more than one pair.
func (r *Registry) OwnsHandle(p Pair, h book.Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.pairs[p]
	if !ok {
		return false
	}
	for _, own := range st.handles {
		if own == h {
			return true
		}
	}
	return false
}

// OwnedHandles filters hs down to the handles the pair owns, preserving
// order. Handles from other pairs are silently dropped.
func (r *Registry) OwnedHandles(p Pair, hs []book.Handle) []book.Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.pairs[p]
	if !ok {
		return nil
	}
	owned := make(map[book.Handle]struct{}, len(st.handles))
	for _, h := range st.handles {
		owned[h] = struct{}{}
	}
	out := make([]book.Handle, 0, len(hs))
	for _, h := range hs {
		if _, ok := owned[h]; ok {
			out = append(out, h)
		}
	}
	return out
}
