package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// AddLiquidity deposits both assets into the pair's pool and credits the
// owner with freshly minted shares. actor must be the owner or an
// unexpired delegate.
func (r *Registry) AddLiquidity(owner, actor common.Address, p Pair, reserveAmt, securedAmt uint64) (*uint256.Int, error) {
	st, err := r.state(p)
	if err != nil {
		return nil, err
	}
	if r.Halted(p) {
		return nil, fmt.Errorf("registry: pair %s is halted", p)
	}
	now := r.clock.Now().Unix()
	if !r.ledger.Approved(owner, actor, now) {
		return nil, fmt.Errorf("registry: %s is not approved to act for %s", actor.Hex(), owner.Hex())
	}
	if !r.ledger.Probe(p.Reserve).Usable() || !r.ledger.Probe(p.Secured).Usable() {
		return nil, fmt.Errorf("registry: pair %s has an unsupported asset", p)
	}

	if err := r.ledger.Debit(owner, p.Reserve, reserveAmt); err != nil {
		return nil, err
	}
	if err := r.ledger.Debit(owner, p.Secured, securedAmt); err != nil {
		_ = r.ledger.Credit(owner, p.Reserve, reserveAmt)
		return nil, err
	}

	r.mu.Lock()
	shares, err := st.pool.Deposit(reserveAmt, securedAmt)
	if err != nil {
		r.mu.Unlock()
		_ = r.ledger.Credit(owner, p.Reserve, reserveAmt)
		_ = r.ledger.Credit(owner, p.Secured, securedAmt)
		return nil, err
	}
	held, ok := st.shares[owner]
	if !ok {
		held = new(uint256.Int)
		st.shares[owner] = held
	}
	held.Add(held, shares)
	r.mu.Unlock()

	r.log.Info("liquidity_added",
		zap.String("pair", p.String()),
		zap.String("owner", owner.Hex()),
		zap.Uint64("reserve", reserveAmt),
		zap.Uint64("secured", securedAmt),
		zap.String("shares", shares.Dec()),
	)
	return shares, nil
}

// RemoveLiquidity burns shares and credits the owner with the floor
// pro-rata slice of both reserves. Rounding dust stays in the pool.
func (r *Registry) RemoveLiquidity(owner, actor common.Address, p Pair, shares *uint256.Int) (reserveOut, securedOut uint64, err error) {
	st, err := r.state(p)
	if err != nil {
		return 0, 0, err
	}
	if r.Halted(p) {
		return 0, 0, fmt.Errorf("registry: pair %s is halted", p)
	}
	now := r.clock.Now().Unix()
	if !r.ledger.Approved(owner, actor, now) {
		return 0, 0, fmt.Errorf("registry: %s is not approved to act for %s", actor.Hex(), owner.Hex())
	}

	r.mu.Lock()
	held, ok := st.shares[owner]
	if !ok || held.Cmp(shares) < 0 {
		r.mu.Unlock()
		return 0, 0, fmt.Errorf("registry: %s holds insufficient shares in %s", owner.Hex(), p)
	}
	reserveOut, securedOut, err = st.pool.Withdraw(shares)
	if err != nil {
		r.mu.Unlock()
		return 0, 0, err
	}
	held.Sub(held, shares)
	r.mu.Unlock()

	if err := r.ledger.Credit(owner, p.Reserve, reserveOut); err != nil {
		return 0, 0, err
	}
	if err := r.ledger.Credit(owner, p.Secured, securedOut); err != nil {
		return 0, 0, err
	}

	r.log.Info("liquidity_removed",
		zap.String("pair", p.String()),
		zap.String("owner", owner.Hex()),
		zap.Uint64("reserve", reserveOut),
		zap.Uint64("secured", securedOut),
	)
	return reserveOut, securedOut, nil
}

// Shares returns the owner's share balance in a pair.
func (r *Registry) Shares(p Pair, owner common.Address) *uint256.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.pairs[p]
	if !ok {
		return new(uint256.Int)
	}
	held, ok := st.shares[owner]
	if !ok {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(held)
}
