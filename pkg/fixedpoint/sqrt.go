package fixedpoint

import "github.com/holiman/uint256"

// IntegerSqrt returns the floor of the square root of x using Babylonian
// iteration. The initial guess 1<<((bitlen+1)/2) is always at or above the
// true root, so the sequence decreases monotonically and the first
// non-decreasing step is the floor value.
func IntegerSqrt(x *uint256.Int) *uint256.Int {
	if x.IsZero() {
		return new(uint256.Int)
	}
	z := new(uint256.Int).Lsh(uint256.NewInt(1), uint((x.BitLen()+1)/2))
	y := new(uint256.Int)
	for {
		y.Div(x, z)
		y.Add(y, z)
		y.Rsh(y, 1)
		if y.Cmp(z) >= 0 {
			return z
		}
		z.Set(y)
	}
}
