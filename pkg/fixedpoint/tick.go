// Package fixedpoint implements the integer price math used by the venue:
// tick to square-root-price conversion on the 1.0001 geometric ladder,
// Q64.96 -> Q64.64 rescaling, fee splitting, and integer square roots.
// All arithmetic is done on widened integers; floating point is never used.
package fixedpoint

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

const (
	// MinTick and MaxTick bound the geometric price ladder. Outside this
	// range the Q64.96 square-root price no longer fits its encoding.
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// ErrPriceOverflow is returned when a price does not fit its fixed-point
// domain. For ticks within [MinTick, MaxTick] the square-root conversion
// never overflows; the squared Q64.64 price can.
var ErrPriceOverflow = errors.New("fixedpoint: price exceeds 128-bit domain")

// sqrtLadder holds the precomputed Q128.128 multipliers for the binary
// decomposition of 1.0001^(-2^i / 2). Entry 0 is the seed used when bit 0
// of |tick| is set; entries 1..19 cover bits 1..19.
var sqrtLadder = [20]*uint256.Int{
	uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),
	uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
	uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
	uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
	uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
	uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
	uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
	uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
	uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
	uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
	uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
	uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
	uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
	uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
	uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
	uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
	uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
	uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
	uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
	uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
}

// q128 is 1.0 in the Q128.128 encoding used by the ladder walk.
var q128 = uint256.MustFromHex("0x100000000000000000000000000000000")

// SqrtPriceFromTick maps a tick to the square root of 1.0001^tick in the
// Q64.96 encoding. The walk multiplies the Q128.128 seed by one ladder
// constant per set bit of |tick|, then inverts for positive ticks.
func SqrtPriceFromTick(tick int32) (*uint256.Int, error) {
	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}
	if absTick > MaxTick {
		return nil, fmt.Errorf("fixedpoint: tick %d outside [%d, %d]", tick, MinTick, MaxTick)
	}

	ratio := new(uint256.Int)
	if absTick&1 != 0 {
		ratio.Set(sqrtLadder[0])
	} else {
		ratio.Set(q128)
	}
	for i := 1; i < len(sqrtLadder); i++ {
		if absTick&(1<<i) != 0 {
			// ratio and the ladder entry are both < 2^128 so the
			// full product fits 256 bits.
			ratio.Mul(ratio, sqrtLadder[i])
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		inv := new(uint256.Int).SetAllOne()
		ratio.Div(inv, ratio)
	}

	// Q128.128 -> Q64.96, rounding up so round-trips through the inverse
	// stay on the correct side of the tick boundary.
	rem := new(uint256.Int).And(ratio, uint256.NewInt(1<<32-1))
	ratio.Rsh(ratio, 32)
	if !rem.IsZero() {
		ratio.AddUint64(ratio, 1)
	}
	return ratio, nil
}

// PriceFromSqrt squares a Q64.96 square-root price into a Q64.64 price.
// The square is taken at full double width before rescaling so no bits are
// truncated early. Fails with ErrPriceOverflow when the result does not fit
// the 128-bit Q64.64 domain.
func PriceFromSqrt(sqrtX96 *uint256.Int) (*uint256.Int, error) {
	price, overflow := new(uint256.Int).MulOverflow(sqrtX96, sqrtX96)
	if overflow {
		return nil, ErrPriceOverflow
	}
	// (s * 2^96)^2 = s^2 * 2^192; dropping 128 bits leaves Q64.64.
	price.Rsh(price, 128)
	if price.BitLen() > 128 {
		return nil, ErrPriceOverflow
	}
	return price, nil
}

// PriceFromTick composes SqrtPriceFromTick and PriceFromSqrt.
func PriceFromTick(tick int32) (*uint256.Int, error) {
	sqrt, err := SqrtPriceFromTick(tick)
	if err != nil {
		return nil, err
	}
	return PriceFromSqrt(sqrt)
}
