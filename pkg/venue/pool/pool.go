// Package pool implements the constant-product side of the venue: the
// per-pair reserve pair, the price-bounded swap the matching engine calls,
// and the liquidity-share math behind deposits and withdrawals.
package pool

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/quanta-swap/crossbook/pkg/fixedpoint"
)

// Pool is one pair's constant-product state. The product
// ReserveAmount*SecuredAmount holds modulo fee accrual: the liquidity
// provider fee share is added straight to the reserve balance, nudging k
// upward over time on purpose.
type Pool struct {
	ReserveAmount uint64
	SecuredAmount uint64

	// TotalShares is the outstanding liquidity-share supply. It lives in
	// a 128-bit domain; uint256 carries it with headroom for the share
	// mint math.
	TotalShares *uint256.Int
}

// New returns an empty pool with zero shares outstanding.
func New() *Pool {
	return &Pool{TotalShares: new(uint256.Int)}
}

// Initialized reports whether both reserves are funded. A pool with either
// side at zero cannot price or fill anything.
func (p *Pool) Initialized() bool {
	return p.ReserveAmount > 0 && p.SecuredAmount > 0
}

// PriceX64 returns the pool's secured-per-reserve reference price in
// Q64.64, or ok=false when the pool cannot price.
func (p *Pool) PriceX64() (*uint256.Int, bool) {
	if !p.Initialized() {
		return nil, false
	}
	r, err := fixedpoint.RatioX64(p.SecuredAmount, p.ReserveAmount)
	if err != nil {
		return nil, false
	}
	return r, true
}

// InversePriceX64 returns reserve-per-secured in Q64.64.
func (p *Pool) InversePriceX64() (*uint256.Int, bool) {
	if !p.Initialized() {
		return nil, false
	}
	r, err := fixedpoint.RatioX64(p.ReserveAmount, p.SecuredAmount)
	if err != nil {
		return nil, false
	}
	return r, true
}

// AccrueReserveFee folds a liquidity-provider fee share into the reserve
// balance. This is the only fee that compounds into subsequent pricing.
func (p *Pool) AccrueReserveFee(amount uint64) error {
	r, err := fixedpoint.AddU64(p.ReserveAmount, amount)
	if err != nil {
		return err
	}
	p.ReserveAmount = r
	return nil
}

// Clone copies the pool for the engine's rollback journal.
func (p *Pool) Clone() *Pool {
	return &Pool{
		ReserveAmount: p.ReserveAmount,
		SecuredAmount: p.SecuredAmount,
		TotalShares:   new(uint256.Int).Set(p.TotalShares),
	}
}

// Restore overwrites the pool from an earlier clone.
func (p *Pool) Restore(from *Pool) {
	p.ReserveAmount = from.ReserveAmount
	p.SecuredAmount = from.SecuredAmount
	p.TotalShares.Set(from.TotalShares)
}

// SharesForDeposit returns the shares a deposit of (dr, ds) mints. The
// first deposit mints sqrt(dr*ds); later deposits mint the smaller of the
// two pro-rata ratios so an unbalanced deposit cannot dilute existing
// holders.
func (p *Pool) SharesForDeposit(dr, ds uint64) (*uint256.Int, error) {
	if dr == 0 || ds == 0 {
		return nil, fmt.Errorf("pool: deposit requires both sides nonzero")
	}
	if p.TotalShares.IsZero() {
		prod := new(uint256.Int).Mul(uint256.NewInt(dr), uint256.NewInt(ds))
		return fixedpoint.IntegerSqrt(prod), nil
	}
	if !p.Initialized() {
		return nil, fmt.Errorf("pool: shares outstanding against empty reserves")
	}
	byReserve := new(uint256.Int).Mul(uint256.NewInt(dr), p.TotalShares)
	byReserve.Div(byReserve, uint256.NewInt(p.ReserveAmount))
	bySecured := new(uint256.Int).Mul(uint256.NewInt(ds), p.TotalShares)
	bySecured.Div(bySecured, uint256.NewInt(p.SecuredAmount))
	if byReserve.Cmp(bySecured) < 0 {
		return byReserve, nil
	}
	return bySecured, nil
}

// Deposit adds liquidity and mints shares.
func (p *Pool) Deposit(dr, ds uint64) (*uint256.Int, error) {
	shares, err := p.SharesForDeposit(dr, ds)
	if err != nil {
		return nil, err
	}
	if shares.IsZero() {
		return nil, fmt.Errorf("pool: deposit too small to mint shares")
	}
	r, err := fixedpoint.AddU64(p.ReserveAmount, dr)
	if err != nil {
		return nil, err
	}
	s, err := fixedpoint.AddU64(p.SecuredAmount, ds)
	if err != nil {
		return nil, err
	}
	p.ReserveAmount = r
	p.SecuredAmount = s
	p.TotalShares.Add(p.TotalShares, shares)
	return shares, nil
}

// Withdraw burns shares and pays out the floor pro-rata slice of both
// reserves. Rounding dust stays in the pool.
func (p *Pool) Withdraw(shares *uint256.Int) (dr, ds uint64, err error) {
	if shares.IsZero() || shares.Cmp(p.TotalShares) > 0 {
		return 0, 0, fmt.Errorf("pool: invalid share burn")
	}
	outR := new(uint256.Int).Mul(uint256.NewInt(p.ReserveAmount), shares)
	outR.Div(outR, p.TotalShares)
	outS := new(uint256.Int).Mul(uint256.NewInt(p.SecuredAmount), shares)
	outS.Div(outS, p.TotalShares)
	if !outR.IsUint64() || !outS.IsUint64() {
		return 0, 0, fmt.Errorf("pool: withdrawal overflows uint64")
	}
	dr, ds = outR.Uint64(), outS.Uint64()
	p.ReserveAmount -= dr
	p.SecuredAmount -= ds
	p.TotalShares.Sub(p.TotalShares, shares)
	return dr, ds, nil
}
