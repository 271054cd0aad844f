package book

import (
	"github.com/holiman/uint256"

	"github.com/quanta-swap/crossbook/pkg/fixedpoint"
)

// CompareFeePPM is the fee factor baked into every book-versus-pool price
// comparison. It is a fixed worst-case constant, deliberately decoupled
// from the rates the fee engine charges later: the comparison only decides
// venue preference, and a pessimistic constant biases every close call
// toward the reference venue.
const CompareFeePPM uint64 = 3000

// NoCap disables the optional output cap on a sweep.
const NoCap = ^uint64(0)

// SweepResult describes one directional sweep. It is call-scoped and never
// persisted.
type SweepResult struct {
	// Consumed is the total input taken from the sweep budget.
	Consumed uint64
	// Obtained is the total output drained from the swept orders.
	Obtained uint64
	// Cursor indexes the first still-active order the sweep declined to
	// fill, or len(handles) when the whole range was exhausted.
	Cursor int
	// Exhausted is the end-of-book sentinel: the full candidate range was
	// consumed with nonzero activity.
	Exhausted bool
}

// EffectivePrice returns the order's fee-scaled Q64.64 price for venue
// comparison. For ReserveIn the price is scaled up, for SecuredIn down,
// so that after the worst-case fee the order still sits strictly in front
// of the pool reference.
func EffectivePrice(dir Direction, tick int32) (*uint256.Int, error) {
	p, err := fixedpoint.PriceFromTick(tick)
	if err != nil {
		return nil, err
	}
	eff := new(uint256.Int)
	if dir == ReserveIn {
		eff.Mul(p, uint256.NewInt(fixedpoint.FeeScale))
		eff.Div(eff, uint256.NewInt(fixedpoint.FeeScale-CompareFeePPM))
	} else {
		eff.Mul(p, uint256.NewInt(fixedpoint.FeeScale-CompareFeePPM))
		eff.Div(eff, uint256.NewInt(fixedpoint.FeeScale))
	}
	return eff, nil
}

// attractive reports whether an effective book price sits strictly in front
// of the reference, on the side the pool would move through anyway: below
// it for ReserveIn, above it for SecuredIn. Ties stop the sweep.
func attractive(dir Direction, effective, reference *uint256.Int) bool {
	if dir == ReserveIn {
		return effective.Cmp(reference) < 0
	}
	return effective.Cmp(reference) > 0
}

// Sweep walks the caller's pre-sorted candidate handles from the lowest
// index upward, filling every active order whose fee-scaled price is
// strictly in front of referenceX64, until the budget (or the optional
// output cap) runs out or the next active order is no longer attractive. Filled orders
// rotate in place: the consumed amount lands on their received side and
// the paid amount leaves their offered side.
func (a *Arena) Sweep(dir Direction, handles []Handle, budget uint64, referenceX64 *uint256.Int, outputCap uint64, now int64) (SweepResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var res SweepResult
	capRemaining := outputCap

	i := 0
	for ; i < len(handles); i++ {
		if budget == 0 || capRemaining == 0 {
			break
		}
		idx, ok := a.index[handles[i]]
		if !ok {
			continue
		}
		o := &a.slots[idx].order
		if !o.Active(dir, now) {
			continue
		}
		eff, err := EffectivePrice(dir, o.priceTick(dir))
		if err != nil {
			return SweepResult{}, err
		}
		if !attractive(dir, eff, referenceX64) {
			break
		}
		price, err := o.Price(dir)
		if err != nil {
			return SweepResult{}, err
		}
		consumed, obtained, err := fillOrder(o, dir, price, budget, capRemaining)
		if err != nil {
			return SweepResult{}, err
		}
		if consumed == 0 && obtained == 0 {
			continue
		}
		res.Consumed += consumed
		res.Obtained += obtained
		budget -= consumed
		if capRemaining != NoCap {
			capRemaining -= obtained
		}
	}

	res.Cursor = i
	if i == len(handles) && (res.Consumed > 0 || res.Obtained > 0) {
		res.Exhausted = true
	}
	return res, nil
}

// NextActive scans forward from start and returns the index and effective
// comparison price of the next active candidate, or ok=false when none
// remains.
func (a *Arena) NextActive(dir Direction, handles []Handle, start int, now int64) (int, *uint256.Int, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for i := start; i < len(handles); i++ {
		idx, ok := a.index[handles[i]]
		if !ok {
			continue
		}
		o := &a.slots[idx].order
		if !o.Active(dir, now) {
			continue
		}
		eff, err := EffectivePrice(dir, o.priceTick(dir))
		if err != nil {
			continue
		}
		return i, eff, true
	}
	return len(handles), nil, false
}

// FillOne fills a single order as far as the budget allows, with no
// reference comparison. The slam stage uses this after the pool has been
// price-bounded to the order's level.
func (a *Arena) FillOne(dir Direction, h Handle, budget uint64, now int64) (consumed, obtained uint64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx, ok := a.index[h]
	if !ok {
		return 0, 0, nil
	}
	o := &a.slots[idx].order
	if !o.Active(dir, now) {
		return 0, 0, nil
	}
	price, err := o.Price(dir)
	if err != nil {
		return 0, 0, err
	}
	return fillOrder(o, dir, price, budget, NoCap)
}

// fillOrder computes the fill against one order at its fixed price and
// applies the rotation. Output rounding always truncates in the order's
// favor.
func fillOrder(o *Order, dir Direction, priceX64 *uint256.Int, budget, capRemaining uint64) (uint64, uint64, error) {
	offered := o.offered(dir)

	// Input needed to fully drain the offered side, rounded up so the
	// drain is actually reachable.
	var need uint64
	var err error
	if dir == ReserveIn {
		need, err = fixedpoint.InverseQuoteAtPrice(offered, priceX64, true)
	} else {
		need, err = fixedpoint.QuoteAtPrice(offered, priceX64, true)
	}
	if err != nil {
		return 0, 0, err
	}

	consume := need
	if consume > budget {
		consume = budget
	}
	if consume == 0 {
		return 0, 0, nil
	}

	var out uint64
	if dir == ReserveIn {
		out, err = fixedpoint.QuoteAtPrice(consume, priceX64, false)
	} else {
		out, err = fixedpoint.InverseQuoteAtPrice(consume, priceX64, false)
	}
	if err != nil {
		return 0, 0, err
	}
	if out > offered {
		out = offered
	}
	if capRemaining != NoCap && out > capRemaining {
		out = capRemaining
		// Shrink the input to what the capped output actually costs.
		if dir == ReserveIn {
			consume, err = fixedpoint.InverseQuoteAtPrice(out, priceX64, true)
		} else {
			consume, err = fixedpoint.QuoteAtPrice(out, priceX64, true)
		}
		if err != nil {
			return 0, 0, err
		}
		if consume > budget {
			consume = budget
		}
	}
	if out == 0 {
		return 0, 0, nil
	}

	if dir == ReserveIn {
		r, err := fixedpoint.AddU64(o.ReserveAmount, consume)
		if err != nil {
			return 0, 0, err
		}
		o.ReserveAmount = r
		o.SecuredAmount -= out
	} else {
		s, err := fixedpoint.AddU64(o.SecuredAmount, consume)
		if err != nil {
			return 0, 0, err
		}
		o.SecuredAmount = s
		o.ReserveAmount -= out
	}
	return consume, out, nil
}
