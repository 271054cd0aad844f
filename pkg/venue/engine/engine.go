// Package engine runs the cross-trade pipeline: fee charge on the way in,
// the four-stage match against book and pool, fee charge on the way out,
// the price-corridor guardrail, and pro-rata settlement. A call either
// completes in full or rolls back every mutation it made.
package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/quanta-swap/crossbook/pkg/fixedpoint"
	"github.com/quanta-swap/crossbook/pkg/venue/registry"
)

// Config carries the engine's fee schedule. All rates are parts per
// million against fixedpoint.FeeScale.
type Config struct {
	// InputFeePPM is charged on reserve contributions, added on top of
	// the submitted amounts.
	InputFeePPM uint64
	// OutputFeePPM is embedded in the reserve output leg.
	OutputFeePPM uint64
	// ProtocolSharePPM is the protocol's cut of each discounted fee.
	ProtocolSharePPM uint64
	// ReferralCapPPM bounds the per-request referral rate.
	ReferralCapPPM uint64
	// DiscountUnit is the balance that earns the full fee discount.
	DiscountUnit uint64
}

// DefaultConfig mirrors the venue's production fee schedule: 0.10% in,
// 0.20% out, 20% protocol share, referral capped at 5%.
func DefaultConfig() Config {
	return Config{
		InputFeePPM:      1_000,
		OutputFeePPM:     2_000,
		ProtocolSharePPM: 200_000,
		ReferralCapPPM:   50_000,
		DiscountUnit:     1_000_000_000,
	}
}

func (c Config) validate() error {
	if c.InputFeePPM > fixedpoint.FeeScale || c.OutputFeePPM > fixedpoint.FeeScale {
		return fmt.Errorf("engine: fee rate exceeds scale")
	}
	if c.ProtocolSharePPM > fixedpoint.FeeScale {
		return fmt.Errorf("engine: protocol share exceeds scale")
	}
	if c.DiscountUnit == 0 {
		return fmt.Errorf("engine: discount unit must be nonzero")
	}
	return nil
}

// Engine orchestrates cross-trade execution over the registry's state.
type Engine struct {
	reg *registry.Registry
	cfg Config
	log *zap.Logger
}

// New creates an engine over a registry.
func New(reg *registry.Registry, cfg Config, log *zap.Logger) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{reg: reg, cfg: cfg, log: log}, nil
}

// Execute runs one cross-trade to completion. The whole pipeline holds
// the pair's exclusive execution context: no other operation observes the
// pair's state mid-call, and nested re-entry is rejected. Every outcome
// is either a fully successful (possibly zero-effect) call or a fully
// atomic abort with no observable state change.
func (e *Engine) Execute(req CrossRequest) (CrossResult, error) {
	if err := e.validate(&req); err != nil {
		return CrossResult{}, err
	}
	discount, err := fixedpoint.DiscountFactor(req.DiscountBalance, e.cfg.DiscountUnit)
	if err != nil {
		return CrossResult{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	minPrice, err := fixedpoint.PriceFromTick(req.MinTick)
	if err != nil {
		return CrossResult{}, fmt.Errorf("%w: corridor: %v", ErrOverflow, err)
	}
	maxPrice, err := fixedpoint.PriceFromTick(req.MaxTick)
	if err != nil {
		return CrossResult{}, fmt.Errorf("%w: corridor: %v", ErrOverflow, err)
	}

	release, err := e.reg.LockPair(req.Pair)
	if err != nil {
		return CrossResult{}, fmt.Errorf("%w: %v", ErrReentrancy, err)
	}
	defer release()

	if e.reg.Halted(req.Pair) {
		return CrossResult{}, fmt.Errorf("%w: pair %s", ErrHalted, req.Pair)
	}

	pl, err := e.reg.Pool(req.Pair)
	if err != nil {
		return CrossResult{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	now := e.reg.Clock().Now().Unix()

	// Candidates from other pairs are dropped: filling them here would
	// settle against the wrong escrowed assets.
	req.ReserveCandidates = e.reg.OwnedHandles(req.Pair, req.ReserveCandidates)
	req.SecuredCandidates = e.reg.OwnedHandles(req.Pair, req.SecuredCandidates)

	j := newJournal(e.reg, req.Pair, pl)

	// Pull funds. Unapproved or unfunded contributions are excluded
	// silently so one bad actor cannot block cooperating participants;
	// an unusable asset excludes its whole side.
	reserveIn, reserveUsed, err := e.collectSide(j, &req, req.Pair.Reserve, req.ReserveContribs, e.cfg.InputFeePPM, discount, now)
	if err != nil {
		j.rollback()
		return CrossResult{}, err
	}
	securedIn, securedUsed, err := e.collectSide(j, &req, req.Pair.Secured, req.SecuredContribs, 0, 0, now)
	if err != nil {
		j.rollback()
		return CrossResult{}, err
	}

	if reserveIn == 0 && securedIn == 0 {
		// Successful no-op: nothing was pulled, nothing to undo.
		return CrossResult{}, nil
	}

	j.snapshotOrders(req.ReserveCandidates, req.SecuredCandidates)

	out, err := e.runPipeline(&req, pl, reserveIn, securedIn, now)
	if err != nil {
		j.rollback()
		return CrossResult{}, err
	}

	// Output-side fee, embedded in the reserve leg only.
	netReserveOut, err := e.applyOutputFee(j, req.Pair, out.reserveOut, discount, req.ReferralRate)
	if err != nil {
		j.rollback()
		return CrossResult{}, err
	}

	if err := checkCorridor(minPrice, maxPrice, out, reserveIn-out.reserveLeftover, securedIn-out.securedLeftover); err != nil {
		j.rollback()
		return CrossResult{}, err
	}

	// All internal bookkeeping is final past this point; the remaining
	// credits are the only operations that hand value (and potentially
	// control) outward.
	if err := e.settle(j, &req, reserveUsed, securedUsed, netReserveOut, out); err != nil {
		j.rollback()
		return CrossResult{}, err
	}

	e.log.Info("cross_executed",
		zap.String("pair", req.Pair.String()),
		zap.Uint64("reserve_in", reserveIn),
		zap.Uint64("secured_in", securedIn),
		zap.Uint64("net_reserve_out", netReserveOut),
		zap.Uint64("net_secured_out", out.securedOut),
	)
	return CrossResult{NetReserveOut: netReserveOut, NetSecuredOut: out.securedOut}, nil
}

// IsValidation reports whether err belongs to the validation class.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
