package engine

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/quanta-swap/crossbook/pkg/fixedpoint"
)

// checkCorridor verifies that the realized average price of each traded
// leg lies inside the caller's [minPrice, maxPrice] corridor, both bounds
// inclusive, expressed as secured-per-reserve Q64.64. The reserve leg's
// average is securedOut over the reserve consumed; the secured leg's is
// the secured consumed over reserveOut. A leg that moved no volume has no
// realized price and is exempt. Amounts are gross of fees: the corridor
// bounds the trade itself, not the fee schedule.
func checkCorridor(minPrice, maxPrice *uint256.Int, out pipelineOut, reserveConsumed, securedConsumed uint64) error {
	if reserveConsumed > 0 || out.securedOut > 0 {
		avg, err := legAverage(out.securedOut, reserveConsumed)
		if err != nil {
			return err
		}
		if avg.Lt(minPrice) || maxPrice.Lt(avg) {
			return fmt.Errorf("%w: reserve leg average outside corridor", ErrGuardrail)
		}
	}
	if securedConsumed > 0 || out.reserveOut > 0 {
		avg, err := legAverage(securedConsumed, out.reserveOut)
		if err != nil {
			return err
		}
		if avg.Lt(minPrice) || maxPrice.Lt(avg) {
			return fmt.Errorf("%w: secured leg average outside corridor", ErrGuardrail)
		}
	}
	return nil
}

// legAverage computes secured/reserve as Q64.64. Volume on exactly one
// side of a leg has no finite average and always violates the corridor;
// it is reported as a guardrail breach rather than a division error.
func legAverage(secured, reserve uint64) (*uint256.Int, error) {
	if reserve == 0 {
		return nil, fmt.Errorf("%w: one-sided leg volume", ErrGuardrail)
	}
	avg, err := fixedpoint.RatioX64(secured, reserve)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOverflow, err)
	}
	return avg, nil
}
