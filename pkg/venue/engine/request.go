package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quanta-swap/crossbook/pkg/fixedpoint"
	"github.com/quanta-swap/crossbook/pkg/venue/book"
	"github.com/quanta-swap/crossbook/pkg/venue/registry"
)

// Contribution is one party's stake in a cross: the owner whose funds are
// pulled and the amount they put in.
type Contribution struct {
	Owner  common.Address
	Amount uint64
}

// CrossRequest carries one multi-party cross-trade through the pipeline.
// It is call-scoped: fed into the engine once and never persisted.
type CrossRequest struct {
	Pair registry.Pair

	// Submitter drives the transaction and receives the referral tip.
	Submitter common.Address

	// Per-side contributions. Either side may be empty.
	ReserveContribs []Contribution
	SecuredContribs []Contribution

	// Pre-sorted candidate order handles per side, best price first.
	// Sorting is the caller's responsibility; the sweep trusts the order.
	ReserveCandidates []book.Handle
	SecuredCandidates []book.Handle

	// MinTick and MaxTick bound the acceptable realized average price,
	// inclusive on both ends.
	MinTick int32
	MaxTick int32

	// ReferralRate prices the submitter's tip in parts per million.
	ReferralRate uint64

	// DiscountBalance scales the fee discount; it may not exceed the
	// engine's discount unit.
	DiscountBalance uint64
}

// CrossResult reports the net amounts the cross produced on each leg.
type CrossResult struct {
	// NetReserveOut is the reserve paid to secured-side contributors,
	// after the output-side fee.
	NetReserveOut uint64
	// NetSecuredOut is the secured paid to reserve-side contributors.
	// Fees are levied in the reserve asset only, so this leg carries no
	// output fee.
	NetSecuredOut uint64
}

// validate applies every precondition that can be checked before any
// state is touched. All failures here are ErrValidation.
func (e *Engine) validate(req *CrossRequest) error {
	if err := req.Pair.Valid(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.MinTick > req.MaxTick {
		return fmt.Errorf("%w: corridor ticks crossed (%d > %d)", ErrValidation, req.MinTick, req.MaxTick)
	}
	if req.MinTick < fixedpoint.MinTick || req.MaxTick > fixedpoint.MaxTick {
		return fmt.Errorf("%w: corridor tick outside [%d, %d]", ErrValidation, fixedpoint.MinTick, fixedpoint.MaxTick)
	}
	if req.ReferralRate > e.cfg.ReferralCapPPM {
		return fmt.Errorf("%w: referral rate %d above cap %d", ErrValidation, req.ReferralRate, e.cfg.ReferralCapPPM)
	}
	if req.DiscountBalance > e.cfg.DiscountUnit {
		return fmt.Errorf("%w: discount balance %d exceeds unit %d", ErrValidation, req.DiscountBalance, e.cfg.DiscountUnit)
	}
	for _, c := range req.ReserveContribs {
		if c.Amount == 0 {
			return fmt.Errorf("%w: zero reserve contribution from %s", ErrValidation, c.Owner.Hex())
		}
	}
	for _, c := range req.SecuredContribs {
		if c.Amount == 0 {
			return fmt.Errorf("%w: zero secured contribution from %s", ErrValidation, c.Owner.Hex())
		}
	}
	return nil
}
