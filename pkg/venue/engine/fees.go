package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quanta-swap/crossbook/pkg/fixedpoint"
	"github.com/quanta-swap/crossbook/pkg/venue/registry"
)

// collectSide pulls one side's contributions into the pipeline. The
// input-side fee (reserve side only: feePPM > 0) is charged outside the
// submitted amount, per contributor, so the amounts that reach matching
// are exactly what was submitted. Exclusions are silent and partial:
//   - an unusable asset (Unsupported or ProbeFailed) excludes the side,
//   - an unapproved delegation excludes that contribution,
//   - an unfunded debit excludes that contribution.
//
// Returns the total collected and the contributions actually included.
func (e *Engine) collectSide(
	j *journal,
	req *CrossRequest,
	asset common.Address,
	contribs []Contribution,
	feePPM, discount uint64,
	now int64,
) (uint64, []Contribution, error) {
	if len(contribs) == 0 {
		return 0, nil, nil
	}
	ledger := e.reg.Ledger()
	if !ledger.Probe(asset).Usable() {
		e.log.Warn("side_excluded_unsupported_asset")
		return 0, nil, nil
	}

	var total uint64
	included := make([]Contribution, 0, len(contribs))
	for _, c := range contribs {
		if !ledger.Approved(c.Owner, req.Submitter, now) {
			continue
		}

		charge := c.Amount
		var bd fixedpoint.FeeBreakdown
		if feePPM > 0 {
			var err error
			bd, err = fixedpoint.FeeSplit(true, c.Amount, feePPM, discount, e.cfg.ProtocolSharePPM, req.ReferralRate)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: %v", ErrValidation, err)
			}
			charge, err = fixedpoint.AddU64(c.Amount, bd.Total())
			if err != nil {
				return 0, nil, fmt.Errorf("%w: %v", ErrOverflow, err)
			}
		}
		if err := j.debit(c.Owner, asset, charge); err != nil {
			// Insufficient funds: exclude this contribution only.
			continue
		}

		next, err := fixedpoint.AddU64(total, c.Amount)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrOverflow, err)
		}
		total = next
		included = append(included, c)

		if feePPM > 0 {
			if err := e.accrueFee(j, asset, bd); err != nil {
				return 0, nil, err
			}
		}
	}
	return total, included, nil
}

// applyOutputFee embeds the output-side fee in the gross reserve output
// and returns the net amount the secured side receives.
func (e *Engine) applyOutputFee(j *journal, pair registry.Pair, grossReserveOut, discount, referralRate uint64) (uint64, error) {
	if grossReserveOut == 0 {
		return 0, nil
	}
	bd, err := fixedpoint.FeeSplit(false, grossReserveOut, e.cfg.OutputFeePPM, discount, e.cfg.ProtocolSharePPM, referralRate)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	total := bd.Total()
	if total > grossReserveOut {
		return 0, fmt.Errorf("%w: output fee exceeds output", ErrOverflow)
	}
	if err := e.accrueFee(j, pair.Reserve, bd); err != nil {
		return 0, err
	}
	return grossReserveOut - total, nil
}

// accrueFee books one fee breakdown: the protocol share to the global
// per-asset accrual, the liquidity share into the pool's reserve balance
// (the only fee that compounds into later pricing), and the referral tip
// onto the journal for payment at settlement.
func (e *Engine) accrueFee(j *journal, asset common.Address, bd fixedpoint.FeeBreakdown) error {
	if err := e.reg.AccrueProtocolFee(asset, bd.Protocol); err != nil {
		return fmt.Errorf("%w: %v", ErrOverflow, err)
	}
	if err := j.pl.AccrueReserveFee(bd.Liquidity); err != nil {
		return fmt.Errorf("%w: %v", ErrOverflow, err)
	}
	tip, err := fixedpoint.AddU64(j.tip, bd.Tip)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOverflow, err)
	}
	j.tip = tip
	return nil
}
