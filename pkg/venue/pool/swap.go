package pool

import (
	"github.com/holiman/uint256"

	"github.com/quanta-swap/crossbook/pkg/fixedpoint"
	"github.com/quanta-swap/crossbook/pkg/venue/book"
)

// BoundedSwap pushes amountIn through the constant product, optionally
// stopping at a Q64.64 limit price. With a limit, the maximum usable input
// is derived algebraically from k and the limit: for reserve-in trades the
// secured-per-reserve price falls toward the limit from above, for
// secured-in trades it rises toward it from below. Zero usable input is a
// valid outcome, not a failure.
//
// Returns the unused input and the output obtained. A pool with either
// reserve at zero fills nothing.
func (p *Pool) BoundedSwap(dir book.Direction, amountIn uint64, limitX64 *uint256.Int) (leftover, out uint64) {
	if amountIn == 0 || !p.Initialized() {
		return amountIn, 0
	}

	k := new(uint256.Int).Mul(uint256.NewInt(p.ReserveAmount), uint256.NewInt(p.SecuredAmount))

	usable := amountIn
	if limitX64 != nil && !limitX64.IsZero() {
		usable = boundInput(dir, k, p.ReserveAmount, p.SecuredAmount, amountIn, limitX64)
		if usable == 0 {
			return amountIn, 0
		}
	}

	var same, other uint64
	if dir == book.ReserveIn {
		same, other = p.ReserveAmount, p.SecuredAmount
	} else {
		same, other = p.SecuredAmount, p.ReserveAmount
	}

	newSame, err := fixedpoint.AddU64(same, usable)
	if err != nil {
		// Input would overflow the reserve; treat the excess as unusable.
		return amountIn, 0
	}

	// out = floor(other*usable/newSame), i.e. the new opposite reserve is
	// k/newSame rounded in the pool's favor. Truncation never pays out
	// more than the exact real-valued formula.
	outWide := new(uint256.Int).Mul(uint256.NewInt(other), uint256.NewInt(usable))
	outWide.Div(outWide, uint256.NewInt(newSame))
	got := outWide.Uint64()
	if got == 0 {
		// An input too small to buy a single unit is left untouched
		// rather than donated to the pool.
		return amountIn, 0
	}

	if dir == book.ReserveIn {
		p.ReserveAmount = newSame
		p.SecuredAmount = other - got
	} else {
		p.SecuredAmount = newSame
		p.ReserveAmount = other - got
	}
	return amountIn - usable, got
}

// boundInput solves for the largest input that keeps the post-trade price
// within the limit. The bounding same-side reserve value comes from k and
// the limit via the integer square root; the inequality direction depends
// on the trade direction.
func boundInput(dir book.Direction, k *uint256.Int, reserve, secured, amountIn uint64, limitX64 *uint256.Int) uint64 {
	var bound *uint256.Int
	var same uint64
	if dir == book.ReserveIn {
		// Post price k/r'^2 >= limit  =>  r' <= sqrt(k*2^64/limit).
		n := new(uint256.Int).Lsh(k, 64)
		n.Div(n, limitX64)
		bound = fixedpoint.IntegerSqrt(n)
		same = reserve
	} else {
		// Post price s'^2/k <= limit  =>  s' <= sqrt(k*limit/2^64).
		n := new(uint256.Int).Mul(k, limitX64)
		n.Rsh(n, 64)
		bound = fixedpoint.IntegerSqrt(n)
		same = secured
	}
	sameW := uint256.NewInt(same)
	if bound.Cmp(sameW) <= 0 {
		return 0
	}
	maxIn := new(uint256.Int).Sub(bound, sameW)
	if !maxIn.IsUint64() || maxIn.Uint64() >= amountIn {
		return amountIn
	}
	return maxIn.Uint64()
}
