// Package custody is the venue's fund collaborator: a per-(owner, asset)
// balance ledger with debit/credit semantics, expiry-bounded broker
// delegation, and tri-state token capability probing. The matching core
// only invokes these operations; it never implements transfer semantics
// itself.
package custody

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quanta-swap/crossbook/pkg/fixedpoint"
)

// Capability is the outcome of probing an asset for transfer support.
type Capability int8

const (
	// Supported means the asset answered the probe affirmatively.
	Supported Capability = iota
	// Unsupported means the asset answered negatively.
	Unsupported
	// ProbeFailed means the probe itself failed. Callers must treat it
	// exactly like Unsupported; a failing probe never propagates an
	// error into the matching pipeline.
	ProbeFailed
)

// Usable collapses the tri-state to the only question the pipeline asks.
func (c Capability) Usable() bool { return c == Supported }

// ProbeFunc asks an external token whether it supports venue transfers.
// An error return maps to ProbeFailed.
type ProbeFunc func(asset common.Address) (bool, error)

// Ledger holds balances and delegations, with optional pebble persistence.
// All operations are serialized through one mutex; the engine's per-pair
// guard provides the coarser exclusivity the pipeline needs.
type Ledger struct {
	mu        sync.RWMutex
	balances  map[common.Address]map[common.Address]uint64 // owner -> asset -> amount
	approvals map[common.Address]map[common.Address]int64  // owner -> actor -> expiry
	caps      map[common.Address]Capability
	probe     ProbeFunc
	store     *Store
}

// NewLedger creates an in-memory ledger. probe may be nil, in which case
// every asset probes as Supported.
func NewLedger(probe ProbeFunc) *Ledger {
	return &Ledger{
		balances:  make(map[common.Address]map[common.Address]uint64),
		approvals: make(map[common.Address]map[common.Address]int64),
		caps:      make(map[common.Address]Capability),
		probe:     probe,
	}
}

// NewLedgerWithStore creates a ledger backed by a pebble database and
// loads the persisted balances and approvals into memory.
func NewLedgerWithStore(probe ProbeFunc, dbPath string) (*Ledger, error) {
	store, err := NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("custody: open store: %w", err)
	}
	l := NewLedger(probe)
	l.store = store
	if err := store.LoadAll(l.balances, l.approvals); err != nil {
		store.Close()
		return nil, fmt.Errorf("custody: load state: %w", err)
	}
	return l, nil
}

// Close closes the backing store, if any.
func (l *Ledger) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}

// Balance returns the owner's balance of an asset.
func (l *Ledger) Balance(owner, asset common.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[owner][asset]
}

// Debit removes amount from the owner's balance, failing on insufficient
// funds without mutating anything.
func (l *Ledger) Debit(owner, asset common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	have := l.balances[owner][asset]
	if have < amount {
		return fmt.Errorf("custody: insufficient %s balance for %s: have %d, need %d",
			asset.Hex(), owner.Hex(), have, amount)
	}
	l.setLocked(owner, asset, have-amount)
	return nil
}

// Credit adds amount to the recipient's balance.
func (l *Ledger) Credit(recipient, asset common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	have := l.balances[recipient][asset]
	next, err := fixedpoint.AddU64(have, amount)
	if err != nil {
		return fmt.Errorf("custody: credit overflow for %s: %w", recipient.Hex(), err)
	}
	l.setLocked(recipient, asset, next)
	return nil
}

func (l *Ledger) setLocked(owner, asset common.Address, amount uint64) {
	m, ok := l.balances[owner]
	if !ok {
		m = make(map[common.Address]uint64)
		l.balances[owner] = m
	}
	m[asset] = amount
	if l.store != nil {
		// Persistence failures log at the store level but do not fail
		// the transfer; the in-memory ledger stays authoritative.
		_ = l.store.SaveBalance(owner, asset, amount)
	}
}

// Approve grants actor the right to act on owner's funds and orders until
// the expiry timestamp. A zero expiry revokes.
func (l *Ledger) Approve(owner, actor common.Address, expiry int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.approvals[owner]
	if !ok {
		m = make(map[common.Address]int64)
		l.approvals[owner] = m
	}
	if expiry == 0 {
		delete(m, actor)
	} else {
		m[actor] = expiry
	}
	if l.store != nil {
		_ = l.store.SaveApproval(owner, actor, expiry)
	}
}

// Approved reports whether actor may act for owner at the given time.
// Owners always act for themselves.
func (l *Ledger) Approved(owner, actor common.Address, now int64) bool {
	if owner == actor {
		return true
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	expiry, ok := l.approvals[owner][actor]
	return ok && expiry > now
}

// Probe asks whether an asset supports venue transfers, caching the
// answer. A failed probe is recorded as ProbeFailed and treated as
// Unsupported by callers; the failure never escapes as an error.
func (l *Ledger) Probe(asset common.Address) Capability {
	l.mu.RLock()
	c, ok := l.caps[asset]
	l.mu.RUnlock()
	if ok {
		return c
	}

	c = Supported
	if l.probe != nil {
		supported, err := l.probe(asset)
		switch {
		case err != nil:
			c = ProbeFailed
		case !supported:
			c = Unsupported
		}
	}

	l.mu.Lock()
	l.caps[asset] = c
	l.mu.Unlock()
	return c
}
