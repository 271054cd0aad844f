package fixedpoint

import (
	"fmt"

	"github.com/holiman/uint256"
)

// FeeScale is the full-scale denominator for every rate in the system:
// fee rates, discount factors, protocol shares and referral rates are all
// expressed in parts per million.
const FeeScale uint64 = 1_000_000

// FeeBreakdown is the outcome of splitting one raw fee charge.
type FeeBreakdown struct {
	// Protocol is the share accrued to the protocol treasury.
	Protocol uint64
	// Liquidity is the share credited to the pool's reserve balance.
	Liquidity uint64
	// Tip is the referral payment to the transaction submitter. It is
	// computed from the referral rate alone and is never discounted.
	Tip uint64
}

// Total returns the full amount withheld from the trade.
func (b FeeBreakdown) Total() uint64 {
	return b.Protocol + b.Liquidity + b.Tip
}

// FeeSplit computes the protocol / liquidity-provider / referral split of a
// fee charge on amount.
//
// When outside is true the fee is added on top of the amount:
// raw = amount*rate/FeeScale. When false the fee is embedded in the amount:
// raw = amount*rate/(FeeScale+rate), so that raw equals rate applied to the
// net remainder. The discount scales the raw fee down linearly; the referral
// tip uses the same inside/outside formula with its own rate and ignores the
// discount. All intermediate products are 256-bit; results truncate to
// uint64, and truncation dust is never redistributed.
func FeeSplit(outside bool, amount, rate, discount, protocolShare, referralRate uint64) (FeeBreakdown, error) {
	if rate > FeeScale {
		return FeeBreakdown{}, fmt.Errorf("fixedpoint: fee rate %d exceeds scale", rate)
	}
	if discount > FeeScale {
		return FeeBreakdown{}, fmt.Errorf("fixedpoint: discount %d exceeds scale", discount)
	}
	if protocolShare > FeeScale {
		return FeeBreakdown{}, fmt.Errorf("fixedpoint: protocol share %d exceeds scale", protocolShare)
	}
	if referralRate > FeeScale {
		return FeeBreakdown{}, fmt.Errorf("fixedpoint: referral rate %d exceeds scale", referralRate)
	}

	raw := rawFee(outside, amount, rate)
	discounted := mulDivU64(raw, FeeScale-discount, FeeScale)
	protocol := mulDivU64(discounted, protocolShare, FeeScale)

	return FeeBreakdown{
		Protocol:  protocol,
		Liquidity: discounted - protocol,
		Tip:       rawFee(outside, amount, referralRate),
	}, nil
}

// rawFee applies the outside (added on top) or inside (embedded) fee formula.
func rawFee(outside bool, amount, rate uint64) uint64 {
	if outside {
		return mulDivU64(amount, rate, FeeScale)
	}
	return mulDivU64(amount, rate, FeeScale+rate)
}

// DiscountFactor maps a discount balance onto [0, FeeScale] as a linear
// ramp: zero balance earns no discount, a balance of unit earns the full
// scale. A balance above unit is a caller error.
func DiscountFactor(balance, unit uint64) (uint64, error) {
	if unit == 0 {
		return 0, fmt.Errorf("fixedpoint: discount unit must be nonzero")
	}
	if balance > unit {
		return 0, fmt.Errorf("fixedpoint: discount balance %d exceeds unit %d", balance, unit)
	}
	return mulDivU64(balance, FeeScale, unit), nil
}

// mulDivU64 computes a*b/den with a 256-bit intermediate, truncated to
// uint64. Callers guarantee the quotient fits; b and den are rate-sized so
// the quotient never exceeds a.
func mulDivU64(a, b, den uint64) uint64 {
	n := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	n.Div(n, uint256.NewInt(den))
	return n.Uint64()
}
