package fixedpoint

import "fmt"

// AddU64 adds two uint64 values, erroring on overflow. Balance arithmetic
// throughout the venue goes through this rather than the bare operator so
// an out-of-domain result surfaces as an error instead of silent
// wraparound.
func AddU64(a, b uint64) (uint64, error) {
	if a > ^uint64(0)-b {
		return 0, fmt.Errorf("fixedpoint: uint64 addition overflow (%d + %d)", a, b)
	}
	return a + b, nil
}

