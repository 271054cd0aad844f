// Package registry owns the pair-keyed pool records and everything that
// surrounds the matching core: governance halt switches, the per-pair
// exclusive execution guard, batch order plumbing, the liquidity-share
// ledger, and the global protocol fee accrual.
package registry

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/quanta-swap/crossbook/pkg/fixedpoint"
	"github.com/quanta-swap/crossbook/pkg/util"
	"github.com/quanta-swap/crossbook/pkg/venue/book"
	"github.com/quanta-swap/crossbook/pkg/venue/custody"
	"github.com/quanta-swap/crossbook/pkg/venue/pool"
)

// Pair identifies a trading pair by its two asset addresses. Fees are
// always levied in the reserve asset.
type Pair struct {
	Reserve common.Address
	Secured common.Address
}

func (p Pair) String() string {
	return p.Reserve.Hex() + "/" + p.Secured.Hex()
}

// Valid rejects degenerate pairs.
func (p Pair) Valid() error {
	if p.Reserve == p.Secured {
		return fmt.Errorf("registry: pair assets must differ")
	}
	if (p.Reserve == common.Address{}) || (p.Secured == common.Address{}) {
		return fmt.Errorf("registry: pair asset must be nonzero")
	}
	return nil
}

// pairState bundles everything owned per pair.
type pairState struct {
	pool    *pool.Pool
	handles []book.Handle
	shares  map[common.Address]*uint256.Int
	paused  bool

	// exec serializes pipeline execution for the pair; entered catches
	// nested re-entry from the same call path, which is rejected rather
	// than deadlocked on.
	exec    sync.Mutex
	entered bool
	enterMu sync.Mutex
}

// Registry is the pair-keyed root of venue state.
type Registry struct {
	mu     sync.RWMutex
	pairs  map[Pair]*pairState
	arena  *book.Arena
	ledger *custody.Ledger
	clock  util.Clock
	log    *zap.Logger

	globalPause  bool
	protocolFees map[common.Address]uint64
}

// New creates a registry over the given collaborators.
func New(arena *book.Arena, ledger *custody.Ledger, clock util.Clock, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		pairs:        make(map[Pair]*pairState),
		arena:        arena,
		ledger:       ledger,
		clock:        clock,
		log:          log,
		protocolFees: make(map[common.Address]uint64),
	}
}

// Arena exposes the shared order arena.
func (r *Registry) Arena() *book.Arena { return r.arena }

// Ledger exposes the custody collaborator.
func (r *Registry) Ledger() *custody.Ledger { return r.ledger }

// Clock exposes the venue clock.
func (r *Registry) Clock() util.Clock { return r.clock }

// CreatePair registers an empty pool for a new pair. Duplicate pairs are
// rejected.
func (r *Registry) CreatePair(p Pair) error {
	if err := p.Valid(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pairs[p]; exists {
		return fmt.Errorf("registry: pair %s already exists", p)
	}
	r.pairs[p] = &pairState{
		pool:   pool.New(),
		shares: make(map[common.Address]*uint256.Int),
	}
	r.log.Info("pair_created", zap.String("pair", p.String()))
	return nil
}

// Pool returns the pool record for a pair.
func (r *Registry) Pool(p Pair) (*pool.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.pairs[p]
	if !ok {
		return nil, fmt.Errorf("registry: pair %s not found", p)
	}
	return st.pool, nil
}

// Pairs lists every registered pair.
func (r *Registry) Pairs() []Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Pair, 0, len(r.pairs))
	for p := range r.pairs {
		out = append(out, p)
	}
	return out
}

func (r *Registry) state(p Pair) (*pairState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.pairs[p]
	if !ok {
		return nil, fmt.Errorf("registry: pair %s not found", p)
	}
	return st, nil
}

// LockPair enters the pair's exclusive execution context. Concurrent
// callers queue on the pair mutex; a nested re-entry from the same call
// path is rejected outright. The returned release function must run on
// every exit path.
func (r *Registry) LockPair(p Pair) (func(), error) {
	st, err := r.state(p)
	if err != nil {
		return nil, err
	}
	st.enterMu.Lock()
	if st.entered {
		st.enterMu.Unlock()
		return nil, fmt.Errorf("registry: reentrant pipeline execution on pair %s", p)
	}
	st.entered = true
	st.enterMu.Unlock()

	st.exec.Lock()
	return func() {
		st.exec.Unlock()
		st.enterMu.Lock()
		st.entered = false
		st.enterMu.Unlock()
	}, nil
}

// Pause halts one pair. Crosses, order placement and liquidity operations
// reject while paused; cancellation stays allowed.
func (r *Registry) Pause(p Pair) error {
	st, err := r.state(p)
	if err != nil {
		return err
	}
	r.mu.Lock()
	st.paused = true
	r.mu.Unlock()
	r.log.Warn("pair_paused", zap.String("pair", p.String()))
	return nil
}

// Resume lifts a pair halt.
func (r *Registry) Resume(p Pair) error {
	st, err := r.state(p)
	if err != nil {
		return err
	}
	r.mu.Lock()
	st.paused = false
	r.mu.Unlock()
	r.log.Info("pair_resumed", zap.String("pair", p.String()))
	return nil
}

// PauseAll throws the global halt switch.
func (r *Registry) PauseAll() {
	r.mu.Lock()
	r.globalPause = true
	r.mu.Unlock()
	r.log.Warn("global_pause")
}

// ResumeAll lifts the global halt.
func (r *Registry) ResumeAll() {
	r.mu.Lock()
	r.globalPause = false
	r.mu.Unlock()
	r.log.Info("global_resume")
}

// Halted reports whether trading on the pair is currently halted.
func (r *Registry) Halted(p Pair) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.globalPause {
		return true
	}
	st, ok := r.pairs[p]
	return !ok || st.paused
}

// AccrueProtocolFee adds to the global per-asset protocol accrual.
func (r *Registry) AccrueProtocolFee(asset common.Address, amount uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next, err := fixedpoint.AddU64(r.protocolFees[asset], amount)
	if err != nil {
		return err
	}
	r.protocolFees[asset] = next
	return nil
}

// SetProtocolFee overwrites the accrual for an asset. Used by the
// engine's rollback journal.
func (r *Registry) SetProtocolFee(asset common.Address, amount uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.protocolFees[asset] = amount
}

// ProtocolFee returns the accrued protocol fees for an asset.
func (r *Registry) ProtocolFee(asset common.Address) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.protocolFees[asset]
}
