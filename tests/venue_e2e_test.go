// Package tests exercises the venue end to end: a persistent custody
// ledger, pair creation, pool liquidity, resting orders, and a cross
// that sweeps the book and slams the pool, with conservation checked
// across every account at the end.
package tests

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/quanta-swap/crossbook/pkg/util"
	"github.com/quanta-swap/crossbook/pkg/venue/book"
	"github.com/quanta-swap/crossbook/pkg/venue/custody"
	"github.com/quanta-swap/crossbook/pkg/venue/engine"
	"github.com/quanta-swap/crossbook/pkg/venue/registry"
)

var (
	wrapped = common.HexToAddress("0x1000000000000000000000000000000000000001")
	stable  = common.HexToAddress("0x2000000000000000000000000000000000000002")

	provider = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	quoter   = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	trader   = common.HexToAddress("0x00000000000000000000000000000000000000f3")
)

// totalHeld sums an asset across every party plus the venue's internal
// sinks (pool reserves and order escrow live inside the registry, so
// only external balances are counted here).
func totalHeld(ledger *custody.Ledger, asset common.Address, parties ...common.Address) uint64 {
	var sum uint64
	for _, p := range parties {
		sum += ledger.Balance(p, asset)
	}
	return sum
}

func TestVenueLifecycle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "custody")
	ledger, err := custody.NewLedgerWithStore(nil, dbPath)
	require.NoError(t, err)
	defer ledger.Close()

	clock := util.NewManualClock(time.Unix(1_700_000_000, 0))
	reg := registry.New(book.NewArena(), ledger, clock, nil)
	pair := registry.Pair{Reserve: wrapped, Secured: stable}
	require.NoError(t, reg.CreatePair(pair))

	eng, err := engine.New(reg, engine.Config{DiscountUnit: 1_000_000_000}, nil)
	require.NoError(t, err)

	// Fund everyone and record the system totals for the final
	// conservation check.
	require.NoError(t, ledger.Credit(provider, wrapped, 2_000_000))
	require.NoError(t, ledger.Credit(provider, stable, 2_000_000))
	require.NoError(t, ledger.Credit(quoter, stable, 10_000))
	require.NoError(t, ledger.Credit(trader, wrapped, 5_000))
	const totalWrapped = 2_005_000
	const totalStable = 2_010_000

	// Provider seeds the pool at 1.0.
	shares, err := reg.AddLiquidity(provider, provider, pair, 1_000_000, 1_000_000)
	require.NoError(t, err)
	require.False(t, shares.IsZero())

	// Quoter rests an offer slightly above the pool price.
	h, err := reg.PlaceOrders(quoter, quoter, pair, []book.Order{
		{SecuredAmount: 500, PaySecuredTick: 100, PayReserveTick: 200},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(9_500), ledger.Balance(quoter, stable))

	// Trader crosses 600 reserve: the book order fills first, the pool
	// absorbs the remainder.
	res, err := eng.Execute(engine.CrossRequest{
		Pair:              pair,
		Submitter:         trader,
		ReserveContribs:   []engine.Contribution{{Owner: trader, Amount: 600}},
		ReserveCandidates: []book.Handle{h},
		MinTick:           -10_000,
		MaxTick:           10_000,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(603), res.NetSecuredOut)
	require.Equal(t, uint64(4_400), ledger.Balance(trader, wrapped))
	require.Equal(t, uint64(603), ledger.Balance(trader, stable))

	// The quoter's order rotated into the reserve it bought; cancelling
	// returns it to their balance.
	refR, refS, err := reg.CancelOrders(quoter, pair, []book.Handle{h})
	require.NoError(t, err)
	require.Equal(t, uint64(496), refR)
	require.Zero(t, refS)

	// Provider exits fully; the pool keeps the swap surplus inside its
	// reserves, so the withdrawal reflects the trade.
	wOut, sOut, err := reg.RemoveLiquidity(provider, provider, pair, shares)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_104), wOut)
	require.Equal(t, uint64(999_897), sOut)

	// Conservation: every unit minted at the start is back in an
	// external balance now that the pool and book are empty.
	require.Equal(t, uint64(totalWrapped),
		totalHeld(ledger, wrapped, provider, quoter, trader))
	require.Equal(t, uint64(totalStable),
		totalHeld(ledger, stable, provider, quoter, trader))
	require.Empty(t, reg.PairHandles(pair))
}

func TestVenuePersistenceAcrossRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "custody")

	ledger, err := custody.NewLedgerWithStore(nil, dbPath)
	require.NoError(t, err)
	require.NoError(t, ledger.Credit(trader, wrapped, 777))
	require.NoError(t, ledger.Close())

	reopened, err := custody.NewLedgerWithStore(nil, dbPath)
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, uint64(777), reopened.Balance(trader, wrapped))
}
