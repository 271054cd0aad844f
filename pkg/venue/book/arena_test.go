package book

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func testOrder(owner common.Address, reserve, secured uint64) Order {
	return Order{
		Owner:          owner,
		ReserveAmount:  reserve,
		SecuredAmount:  secured,
		PaySecuredTick: -100,
		PayReserveTick: 100,
	}
}

func TestOrderValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Order)
		wantErr bool
	}{
		{"valid", func(o *Order) {}, false},
		{"crossed ticks", func(o *Order) { o.PaySecuredTick = 100; o.PayReserveTick = 100 }, true},
		{"inverted ticks", func(o *Order) { o.PaySecuredTick = 200; o.PayReserveTick = -200 }, true},
		{"tick below range", func(o *Order) { o.PaySecuredTick = -900000 }, true},
		{"tick above range", func(o *Order) { o.PayReserveTick = 900000 }, true},
		{"empty both sides", func(o *Order) { o.ReserveAmount = 0; o.SecuredAmount = 0 }, true},
		{"one side empty is fine", func(o *Order) { o.ReserveAmount = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := testOrder(alice, 100, 100)
			tt.mutate(&o)
			err := o.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOrderActive(t *testing.T) {
	o := testOrder(alice, 100, 200)

	if !o.Active(ReserveIn, 0) || !o.Active(SecuredIn, 0) {
		t.Fatal("fresh two-sided order must be active both ways")
	}

	drained := o
	drained.SecuredAmount = 0
	if drained.Active(ReserveIn, 0) {
		t.Error("order with no secured cannot fill reserve-in")
	}
	if !drained.Active(SecuredIn, 0) {
		t.Error("order with reserve left must still fill secured-in")
	}

	expired := o
	expired.Expiry = 50
	if expired.Active(ReserveIn, 50) {
		t.Error("order at its expiry instant must be inactive")
	}
	if !expired.Active(ReserveIn, 49) {
		t.Error("order before expiry must be active")
	}

	cancelled := o
	cancelled.Cancelled = true
	if cancelled.Active(ReserveIn, 0) {
		t.Error("cancelled order must be inactive")
	}
}

func TestArenaHandlesAreMonotonic(t *testing.T) {
	a := NewArena()

	h1, err := a.Create(testOrder(alice, 10, 10))
	if err != nil {
		t.Fatal(err)
	}
	if h1 != 1 {
		t.Fatalf("first handle = %d, want 1", h1)
	}

	first, err := a.CreateBatch([]Order{
		testOrder(alice, 1, 1),
		testOrder(bob, 2, 2),
		testOrder(bob, 3, 3),
	})
	if err != nil {
		t.Fatal(err)
	}
	if first != 2 {
		t.Fatalf("batch first handle = %d, want 2", first)
	}
	for i := Handle(0); i < 3; i++ {
		if _, ok := a.Get(first + i); !ok {
			t.Errorf("batch handle %d missing", first+i)
		}
	}

	// Cancelling recycles the slot but never the handle.
	if _, _, ok := a.Cancel(h1); !ok {
		t.Fatal("cancel failed")
	}
	h5, err := a.Create(testOrder(alice, 5, 5))
	if err != nil {
		t.Fatal(err)
	}
	if h5 != 5 {
		t.Errorf("handle after cancel = %d, want 5", h5)
	}
	if _, ok := a.Get(h1); ok {
		t.Error("cancelled handle still resolves")
	}
	if a.Len() != 4 {
		t.Errorf("Len() = %d, want 4", a.Len())
	}
}

func TestArenaCancelRefundsRestingBalances(t *testing.T) {
	a := NewArena()
	h, err := a.Create(testOrder(bob, 123, 456))
	if err != nil {
		t.Fatal(err)
	}

	owner, ok := a.Owner(h)
	if !ok || owner != bob {
		t.Fatalf("Owner(%d) = %v, %v", h, owner, ok)
	}

	r, s, ok := a.Cancel(h)
	if !ok {
		t.Fatal("cancel failed")
	}
	if r != 123 || s != 456 {
		t.Errorf("refunds = (%d, %d), want (123, 456)", r, s)
	}

	if _, _, ok := a.Cancel(h); ok {
		t.Error("double cancel succeeded")
	}
}

func TestArenaSnapshotRestore(t *testing.T) {
	a := NewArena()
	h, err := a.Create(testOrder(alice, 0, 1000))
	if err != nil {
		t.Fatal(err)
	}

	snap := a.Snapshot([]Handle{h, 999})
	if len(snap) != 1 {
		t.Fatalf("snapshot size = %d, want 1 (missing handles skipped)", len(snap))
	}

	// Mutate through a fill, then restore.
	if _, _, err := a.FillOne(ReserveIn, h, 500, 0); err != nil {
		t.Fatal(err)
	}
	mutated, _ := a.Get(h)
	if mutated.SecuredAmount == 1000 {
		t.Fatal("fill did not rotate the order")
	}

	a.Restore(snap)
	restored, _ := a.Get(h)
	if restored.SecuredAmount != 1000 || restored.ReserveAmount != 0 {
		t.Errorf("restore left order at (%d, %d), want (0, 1000)",
			restored.ReserveAmount, restored.SecuredAmount)
	}
}
