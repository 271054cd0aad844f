package engine

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/quanta-swap/crossbook/pkg/venue/book"
	"github.com/quanta-swap/crossbook/pkg/venue/pool"
	"github.com/quanta-swap/crossbook/pkg/venue/registry"
)

// transfer records one custody movement so it can be undone.
type transfer struct {
	owner  common.Address
	asset  common.Address
	amount uint64
}

// journal is the call-scoped rollback record for one pipeline execution.
// It snapshots the pool, the candidate orders and the fee accruals before
// mutation, and tracks every custody movement so an abort anywhere in the
// pipeline restores the exact pre-call state.
type journal struct {
	reg  *registry.Registry
	pair registry.Pair
	pl   *pool.Pool

	poolSnap  *pool.Pool
	orderSnap map[book.Handle]book.Order
	protoSnap map[common.Address]uint64

	debits  []transfer
	credits []transfer

	// tip accumulates the referral payment owed to the submitter,
	// credited only at settlement.
	tip uint64
}

func newJournal(reg *registry.Registry, pair registry.Pair, pl *pool.Pool) *journal {
	return &journal{
		reg:      reg,
		pair:     pair,
		pl:       pl,
		poolSnap: pl.Clone(),
		protoSnap: map[common.Address]uint64{
			pair.Reserve: reg.ProtocolFee(pair.Reserve),
			pair.Secured: reg.ProtocolFee(pair.Secured),
		},
	}
}

// snapshotOrders captures the candidate orders of both sides before the
// sweeps may rotate them.
func (j *journal) snapshotOrders(reserveCandidates, securedCandidates []book.Handle) {
	all := make([]book.Handle, 0, len(reserveCandidates)+len(securedCandidates))
	all = append(all, reserveCandidates...)
	all = append(all, securedCandidates...)
	j.orderSnap = j.reg.Arena().Snapshot(all)
}

// debit performs a custody debit and records it for refund on abort.
func (j *journal) debit(owner, asset common.Address, amount uint64) error {
	if err := j.reg.Ledger().Debit(owner, asset, amount); err != nil {
		return err
	}
	j.debits = append(j.debits, transfer{owner, asset, amount})
	return nil
}

// credit performs a custody credit and records it for reversal on abort.
func (j *journal) credit(owner, asset common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := j.reg.Ledger().Credit(owner, asset, amount); err != nil {
		return err
	}
	j.credits = append(j.credits, transfer{owner, asset, amount})
	return nil
}

// rollback undoes every mutation the call performed, in reverse order of
// effect: credits are pulled back, book and pool state restored, fee
// accruals reset, and debited funds returned. Rollback operations on the
// internal ledger cannot themselves fail short of corruption; errors are
// deliberately ignored to keep every exit path unwinding.
func (j *journal) rollback() {
	ledger := j.reg.Ledger()
	for i := len(j.credits) - 1; i >= 0; i-- {
		t := j.credits[i]
		_ = ledger.Debit(t.owner, t.asset, t.amount)
	}
	if j.orderSnap != nil {
		j.reg.Arena().Restore(j.orderSnap)
	}
	j.pl.Restore(j.poolSnap)
	for asset, amount := range j.protoSnap {
		j.reg.SetProtocolFee(asset, amount)
	}
	for i := len(j.debits) - 1; i >= 0; i-- {
		t := j.debits[i]
		_ = ledger.Credit(t.owner, t.asset, t.amount)
	}
}
