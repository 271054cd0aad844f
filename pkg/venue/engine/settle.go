package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// settle pays out the pipeline's results. Each side's output is split
// pro-rata across the contributions that actually funded that side,
// floored per contributor. Rounding dust is never credited to anyone; it
// is retired permanently. Unconsumed input is refunded the same way. The
// referral tip accumulated on the journal is credited to the submitter
// last. All movements go through the journal so a failure leaves the
// call fully reversible.
func (e *Engine) settle(
	j *journal,
	req *CrossRequest,
	reserveUsed, securedUsed []Contribution,
	netReserveOut uint64,
	out pipelineOut,
) error {
	// Reserve contributors sold reserve: they receive the secured output
	// and any reserve they submitted that never traded.
	if err := distribute(j, req.Pair.Secured, reserveUsed, out.securedOut); err != nil {
		return err
	}
	if err := distribute(j, req.Pair.Reserve, reserveUsed, out.reserveLeftover); err != nil {
		return err
	}

	// Secured contributors sold secured: they receive the reserve output
	// net of the output fee, plus their untraded remainder.
	if err := distribute(j, req.Pair.Reserve, securedUsed, netReserveOut); err != nil {
		return err
	}
	if err := distribute(j, req.Pair.Secured, securedUsed, out.securedLeftover); err != nil {
		return err
	}

	return j.credit(req.Submitter, req.Pair.Reserve, j.tip)
}

// distribute splits total across contribs in proportion to their amounts,
// floored per contributor. The floor remainder is not paid to anyone:
// retiring it keeps every participant's share independent of batch order
// and is an invariant other accounting relies on.
func distribute(j *journal, asset common.Address, contribs []Contribution, total uint64) error {
	if total == 0 || len(contribs) == 0 {
		return nil
	}
	var sum uint64
	for _, c := range contribs {
		sum += c.Amount
	}
	if sum == 0 {
		return nil
	}

	den := uint256.NewInt(sum)
	big := new(uint256.Int)
	for _, c := range contribs {
		big.Mul(uint256.NewInt(c.Amount), uint256.NewInt(total))
		share := big.Div(big, den).Uint64()
		if err := j.credit(c.Owner, asset, share); err != nil {
			return err
		}
	}
	return nil
}
