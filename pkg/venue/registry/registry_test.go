package registry

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/quanta-swap/crossbook/pkg/util"
	"github.com/quanta-swap/crossbook/pkg/venue/book"
	"github.com/quanta-swap/crossbook/pkg/venue/custody"
)

var (
	reserveAsset = common.HexToAddress("0x0000000000000000000000000000000000000011")
	securedAsset = common.HexToAddress("0x0000000000000000000000000000000000000022")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob          = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func testPair() Pair {
	return Pair{Reserve: reserveAsset, Secured: securedAsset}
}

func newTestRegistry(t *testing.T) (*Registry, *custody.Ledger, *util.ManualClock) {
	t.Helper()
	ledger := custody.NewLedger(nil)
	clock := util.NewManualClock(time.Unix(1_000_000, 0))
	reg := New(book.NewArena(), ledger, clock, nil)
	if err := reg.CreatePair(testPair()); err != nil {
		t.Fatal(err)
	}
	return reg, ledger, clock
}

func fund(t *testing.T, l *custody.Ledger, who common.Address, reserve, secured uint64) {
	t.Helper()
	if err := l.Credit(who, reserveAsset, reserve); err != nil {
		t.Fatal(err)
	}
	if err := l.Credit(who, securedAsset, secured); err != nil {
		t.Fatal(err)
	}
}

func TestCreatePair(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	if err := reg.CreatePair(testPair()); err == nil {
		t.Error("duplicate pair accepted")
	}
	if err := reg.CreatePair(Pair{Reserve: reserveAsset, Secured: reserveAsset}); err == nil {
		t.Error("self pair accepted")
	}
	if err := reg.CreatePair(Pair{Secured: securedAsset}); err == nil {
		t.Error("zero asset accepted")
	}

	if len(reg.Pairs()) != 1 {
		t.Errorf("Pairs() = %d entries, want 1", len(reg.Pairs()))
	}
}

func TestHaltSwitches(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	p := testPair()

	if reg.Halted(p) {
		t.Fatal("fresh pair reports halted")
	}
	if err := reg.Pause(p); err != nil {
		t.Fatal(err)
	}
	if !reg.Halted(p) {
		t.Error("paused pair not halted")
	}
	if err := reg.Resume(p); err != nil {
		t.Fatal(err)
	}
	if reg.Halted(p) {
		t.Error("resumed pair still halted")
	}

	reg.PauseAll()
	if !reg.Halted(p) {
		t.Error("global pause not observed")
	}
	reg.ResumeAll()
	if reg.Halted(p) {
		t.Error("global resume not observed")
	}

	// Unknown pairs always read as halted.
	unknown := Pair{Reserve: alice, Secured: bob}
	if !reg.Halted(unknown) {
		t.Error("unknown pair not halted")
	}
}

func TestPlaceOrdersEscrowsBothSides(t *testing.T) {
	reg, ledger, _ := newTestRegistry(t)
	p := testPair()
	fund(t, ledger, alice, 1_000, 2_000)

	first, err := reg.PlaceOrders(alice, alice, p, []book.Order{
		{ReserveAmount: 300, SecuredAmount: 500, PaySecuredTick: -100, PayReserveTick: 100},
		{ReserveAmount: 200, SecuredAmount: 0, PaySecuredTick: -100, PayReserveTick: 100},
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := ledger.Balance(alice, reserveAsset); got != 500 {
		t.Errorf("reserve balance after escrow = %d, want 500", got)
	}
	if got := ledger.Balance(alice, securedAsset); got != 1_500 {
		t.Errorf("secured balance after escrow = %d, want 1500", got)
	}

	handles := reg.PairHandles(p)
	if len(handles) != 2 || handles[0] != first || handles[1] != first+1 {
		t.Errorf("PairHandles = %v, want contiguous from %d", handles, first)
	}
	if !reg.OwnsHandle(p, first) || reg.OwnsHandle(p, first+100) {
		t.Error("handle ownership wrong")
	}
}

func TestPlaceOrdersFailuresLeaveBalancesIntact(t *testing.T) {
	reg, ledger, _ := newTestRegistry(t)
	p := testPair()
	fund(t, ledger, alice, 1_000, 100)

	// Secured escrow fails after the reserve escrow succeeded; the
	// reserve debit must be returned.
	_, err := reg.PlaceOrders(alice, alice, p, []book.Order{
		{ReserveAmount: 300, SecuredAmount: 500, PaySecuredTick: -100, PayReserveTick: 100},
	})
	if err == nil {
		t.Fatal("underfunded placement accepted")
	}
	if got := ledger.Balance(alice, reserveAsset); got != 1_000 {
		t.Errorf("reserve balance = %d, want untouched 1000", got)
	}

	// Unapproved actor.
	if _, err := reg.PlaceOrders(alice, bob, p, []book.Order{
		{SecuredAmount: 10, PaySecuredTick: -100, PayReserveTick: 100},
	}); err == nil {
		t.Error("unapproved actor accepted")
	}

	// Halted pair.
	reg.Pause(p)
	if _, err := reg.PlaceOrders(alice, alice, p, []book.Order{
		{SecuredAmount: 10, PaySecuredTick: -100, PayReserveTick: 100},
	}); err == nil {
		t.Error("placement on halted pair accepted")
	}
}

func TestCancelOrdersRefunds(t *testing.T) {
	reg, ledger, clock := newTestRegistry(t)
	p := testPair()
	fund(t, ledger, alice, 1_000, 1_000)

	first, err := reg.PlaceOrders(alice, alice, p, []book.Order{
		{ReserveAmount: 400, SecuredAmount: 600, PaySecuredTick: -100, PayReserveTick: 100},
	})
	if err != nil {
		t.Fatal(err)
	}

	// A delegate may cancel; cancellation works even while halted.
	ledger.Approve(alice, bob, clock.Now().Unix()+3600)
	reg.Pause(p)

	r, s, err := reg.CancelOrders(bob, p, []book.Handle{first})
	if err != nil {
		t.Fatal(err)
	}
	if r != 400 || s != 600 {
		t.Errorf("refunds = (%d, %d), want (400, 600)", r, s)
	}
	if got := ledger.Balance(alice, reserveAsset); got != 1_000 {
		t.Errorf("reserve balance = %d, want restored 1000", got)
	}

	// Cancellation removed the handle from the pair's roster, so a
	// second cancel is rejected rather than refunded again.
	if hs := reg.PairHandles(p); len(hs) != 0 {
		t.Errorf("PairHandles = %v, want empty after cancel", hs)
	}
	if _, _, err := reg.CancelOrders(alice, p, []book.Handle{first}); err == nil {
		t.Error("re-cancel accepted")
	}
	if got := ledger.Balance(alice, reserveAsset); got != 1_000 {
		t.Errorf("reserve balance = %d, want unchanged by rejected re-cancel", got)
	}
}

func TestCancelOrdersRejectsForeignPair(t *testing.T) {
	reg, ledger, _ := newTestRegistry(t)
	p := testPair()
	fund(t, ledger, alice, 1_000, 1_000)

	// Same assets, opposite orientation: a distinct pair whose refund
	// legs would credit the wrong assets.
	flipped := Pair{Reserve: p.Secured, Secured: p.Reserve}
	if err := reg.CreatePair(flipped); err != nil {
		t.Fatal(err)
	}

	first, err := reg.PlaceOrders(alice, alice, p, []book.Order{
		{ReserveAmount: 400, SecuredAmount: 600, PaySecuredTick: -100, PayReserveTick: 100},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := reg.CancelOrders(alice, flipped, []book.Handle{first}); err == nil {
		t.Fatal("cancel through a foreign pair accepted")
	}
	// Nothing was refunded and the order still rests on its own pair.
	if got := ledger.Balance(alice, reserveAsset); got != 600 {
		t.Errorf("reserve balance = %d, want escrow still held (600)", got)
	}
	if got := ledger.Balance(alice, securedAsset); got != 400 {
		t.Errorf("secured balance = %d, want escrow still held (400)", got)
	}
	if !reg.OwnsHandle(p, first) {
		t.Error("order lost its pair after rejected cancel")
	}

	r, s, err := reg.CancelOrders(alice, p, []book.Handle{first})
	if err != nil {
		t.Fatal(err)
	}
	if r != 400 || s != 600 {
		t.Errorf("refunds = (%d, %d), want (400, 600)", r, s)
	}
}

func TestCancelOrdersRejectsUnapprovedActor(t *testing.T) {
	reg, ledger, _ := newTestRegistry(t)
	p := testPair()
	fund(t, ledger, alice, 100, 100)

	first, err := reg.PlaceOrders(alice, alice, p, []book.Order{
		{SecuredAmount: 100, PaySecuredTick: -100, PayReserveTick: 100},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := reg.CancelOrders(bob, p, []book.Handle{first}); err == nil {
		t.Error("unapproved cancel accepted")
	}
}

func TestLiquidityRoundTrip(t *testing.T) {
	reg, ledger, _ := newTestRegistry(t)
	p := testPair()
	fund(t, ledger, alice, 1_000_000, 1_000_000)

	shares, err := reg.AddLiquidity(alice, alice, p, 400_000, 100_000)
	if err != nil {
		t.Fatal(err)
	}
	if shares.Uint64() != 200_000 {
		t.Errorf("minted %s shares, want 200000", shares.Dec())
	}
	if got := reg.Shares(p, alice); got.Cmp(shares) != 0 {
		t.Errorf("share ledger = %s, want %s", got.Dec(), shares.Dec())
	}
	if got := ledger.Balance(alice, reserveAsset); got != 600_000 {
		t.Errorf("reserve balance = %d, want 600000", got)
	}

	dr, ds, err := reg.RemoveLiquidity(alice, alice, p, shares)
	if err != nil {
		t.Fatal(err)
	}
	if dr != 400_000 || ds != 100_000 {
		t.Errorf("withdrawal = (%d, %d), want original amounts", dr, ds)
	}
	if got := reg.Shares(p, alice); !got.IsZero() {
		t.Errorf("share ledger = %s after full burn, want 0", got.Dec())
	}
	if got := ledger.Balance(alice, reserveAsset); got != 1_000_000 {
		t.Errorf("reserve balance = %d, want fully restored", got)
	}
}

func TestRemoveLiquidityRejectsOverBurn(t *testing.T) {
	reg, ledger, _ := newTestRegistry(t)
	p := testPair()
	fund(t, ledger, alice, 1_000, 1_000)

	shares, err := reg.AddLiquidity(alice, alice, p, 1_000, 1_000)
	if err != nil {
		t.Fatal(err)
	}
	over := new(uint256.Int).AddUint64(shares, 1)
	if _, _, err := reg.RemoveLiquidity(alice, alice, p, over); err == nil {
		t.Error("burning more than held accepted")
	}
}

func TestLockPairRejectsReentry(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	p := testPair()

	release, err := reg.LockPair(p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.LockPair(p); err == nil {
		t.Fatal("nested lock accepted")
	}
	release()

	release, err = reg.LockPair(p)
	if err != nil {
		t.Fatalf("relock after release failed: %v", err)
	}
	release()
}

func TestProtocolFeeAccrual(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	if err := reg.AccrueProtocolFee(reserveAsset, 100); err != nil {
		t.Fatal(err)
	}
	if err := reg.AccrueProtocolFee(reserveAsset, 50); err != nil {
		t.Fatal(err)
	}
	if got := reg.ProtocolFee(reserveAsset); got != 150 {
		t.Errorf("ProtocolFee = %d, want 150", got)
	}

	reg.SetProtocolFee(reserveAsset, 10)
	if got := reg.ProtocolFee(reserveAsset); got != 10 {
		t.Errorf("ProtocolFee after reset = %d, want 10", got)
	}

	if err := reg.AccrueProtocolFee(securedAsset, ^uint64(0)); err != nil {
		t.Fatal(err)
	}
	if err := reg.AccrueProtocolFee(securedAsset, 1); err == nil {
		t.Error("accrual overflow accepted")
	}
}
