package fixedpoint

import (
	"fmt"

	"github.com/holiman/uint256"
)

// QuoteAtPrice converts an input amount through a Q64.64 price:
// result = amount * price / 2^64, rounded down, or up when roundUp is set.
// Errors if the result does not fit uint64.
func QuoteAtPrice(amount uint64, priceX64 *uint256.Int, roundUp bool) (uint64, error) {
	n := new(uint256.Int).Mul(uint256.NewInt(amount), priceX64)
	if roundUp {
		n.AddUint64(n, 1<<64-1)
	}
	n.Rsh(n, 64)
	if !n.IsUint64() {
		return 0, fmt.Errorf("fixedpoint: quote of %d overflows uint64", amount)
	}
	return n.Uint64(), nil
}

// InverseQuoteAtPrice converts through the reciprocal of a Q64.64 price:
// result = amount * 2^64 / price, rounded down, or up when roundUp is set.
// Errors on a zero price or a result that does not fit uint64.
func InverseQuoteAtPrice(amount uint64, priceX64 *uint256.Int, roundUp bool) (uint64, error) {
	if priceX64.IsZero() {
		return 0, fmt.Errorf("fixedpoint: inverse quote through zero price")
	}
	n := new(uint256.Int).Lsh(uint256.NewInt(amount), 64)
	if roundUp {
		rem := new(uint256.Int)
		n.DivMod(n, priceX64, rem)
		if !rem.IsZero() {
			n.AddUint64(n, 1)
		}
	} else {
		n.Div(n, priceX64)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("fixedpoint: inverse quote of %d overflows uint64", amount)
	}
	return n.Uint64(), nil
}

// RatioX64 returns num/den in Q64.64, the encoding used for realized
// average prices. Errors on a zero denominator or 128-bit overflow.
func RatioX64(num, den uint64) (*uint256.Int, error) {
	if den == 0 {
		return nil, fmt.Errorf("fixedpoint: ratio with zero denominator")
	}
	r := new(uint256.Int).Lsh(uint256.NewInt(num), 64)
	r.Div(r, uint256.NewInt(den))
	if r.BitLen() > 128 {
		return nil, ErrPriceOverflow
	}
	return r, nil
}
